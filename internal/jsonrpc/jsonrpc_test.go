package jsonrpc

import (
	"encoding/json"
	"testing"
)

func TestNewRequestMarshalsParams(t *testing.T) {
	id := json.RawMessage(`1`)
	req, err := NewRequest(id, "tools/call", map[string]string{"name": "echo"})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if req.JSONRPC != Version {
		t.Errorf("JSONRPC = %q, want %q", req.JSONRPC, Version)
	}
	if req.Method != "tools/call" {
		t.Errorf("Method = %q", req.Method)
	}
	var decoded map[string]string
	if err := json.Unmarshal(req.Params, &decoded); err != nil {
		t.Fatalf("Params did not decode: %v", err)
	}
	if decoded["name"] != "echo" {
		t.Errorf("Params = %+v", decoded)
	}
}

func TestNewRequestNilParams(t *testing.T) {
	req, err := NewRequest(json.RawMessage(`1`), "ping", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if req.Params != nil {
		t.Errorf("expected nil Params, got %s", req.Params)
	}
}

func TestNewNotificationHasNoID(t *testing.T) {
	n, err := NewNotification("notifications/initialized", nil)
	if err != nil {
		t.Fatalf("NewNotification: %v", err)
	}
	if n.Method != "notifications/initialized" {
		t.Errorf("Method = %q", n.Method)
	}
}

func TestNewResultAndNewError(t *testing.T) {
	id := json.RawMessage(`7`)
	res, err := NewResult(id, map[string]int{"ok": 1})
	if err != nil {
		t.Fatalf("NewResult: %v", err)
	}
	if res.Error != nil {
		t.Errorf("expected no error on success response")
	}
	if string(res.Result) == "" {
		t.Errorf("expected marshaled result")
	}

	errResp := NewError(id, -32601, "method not found", nil)
	if errResp.Result != nil {
		t.Errorf("expected nil result on error response")
	}
	if errResp.Error.Code != -32601 {
		t.Errorf("Error.Code = %d", errResp.Error.Code)
	}
}

func TestEnvelopeClassification(t *testing.T) {
	cases := []struct {
		name           string
		raw            string
		wantResponse   bool
		wantNotification bool
	}{
		{"request with id", `{"jsonrpc":"2.0","id":1,"method":"tools/call"}`, false, false},
		{"notification", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, false, true},
		{"success response", `{"jsonrpc":"2.0","id":1,"result":{}}`, true, false},
		{"error response", `{"jsonrpc":"2.0","id":1,"error":{"code":-32600,"message":"bad"}}`, true, false},
	}
	for _, c := range cases {
		var env Envelope
		if err := json.Unmarshal([]byte(c.raw), &env); err != nil {
			t.Fatalf("%s: unmarshal: %v", c.name, err)
		}
		if got := env.IsResponse(); got != c.wantResponse {
			t.Errorf("%s: IsResponse() = %v, want %v", c.name, got, c.wantResponse)
		}
		if got := env.IsNotification(); got != c.wantNotification {
			t.Errorf("%s: IsNotification() = %v, want %v", c.name, got, c.wantNotification)
		}
	}
}

func TestIDGeneratorMonotonic(t *testing.T) {
	var g IDGenerator
	var prev uint64
	for i := 0; i < 100; i++ {
		raw := g.Next()
		var n uint64
		if err := json.Unmarshal(raw, &n); err != nil {
			t.Fatalf("Next() produced invalid number: %v", err)
		}
		if n <= prev {
			t.Fatalf("id did not increase: prev=%d got=%d", prev, n)
		}
		prev = n
	}
}

func TestIDGeneratorConcurrentUnique(t *testing.T) {
	var g IDGenerator
	const n = 200
	ids := make(chan uint64, n)
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		go func() {
			raw := g.Next()
			var v uint64
			json.Unmarshal(raw, &v)
			ids <- v
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
	close(ids)
	seen := make(map[uint64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d unique ids, want %d", len(seen), n)
	}
}
