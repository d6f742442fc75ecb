package mcperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(CodeTransportError, "dial failed", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
	if got := err.Error(); got != "dial failed: boom" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", New(CodeToolNotFound, "no such tool"))
	if CodeOf(wrapped) != CodeToolNotFound {
		t.Fatalf("CodeOf did not unwrap through fmt.Errorf")
	}
	if CodeOf(errors.New("plain")) != CodeInternalError {
		t.Fatalf("CodeOf should default to InternalError for non-taxonomy errors")
	}
}

func TestIsRetryableDefaults(t *testing.T) {
	cases := map[Code]bool{
		CodeServiceUnavailable: true,
		CodeTimeout:            true,
		CodeTransportError:     true,
		CodeToolExecutionError: true,
		CodeToolNotFound:       false,
		CodeServiceNotFound:    false,
		CodeProtocolError:      false,
		CodeConfigError:        false,
	}
	for code, want := range cases {
		if got := IsRetryable(code); got != want {
			t.Errorf("IsRetryable(%s) = %v, want %v", code, got, want)
		}
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(CodeConfigError) {
		t.Error("ConfigError should be fatal")
	}
	if IsFatal(CodeTimeout) {
		t.Error("Timeout should not be fatal")
	}
}

func TestJSONRPCCodeMapping(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeToolNotFound, -32601},
		{CodeProtocolError, -32600},
		{CodeServiceNotFound, -32001},
		{CodeServiceUnavailable, -32002},
		{CodeTimeout, -32003},
		{CodeTransportError, -32004},
		{CodeToolExecutionError, -32005},
		{CodeConfigError, -32006},
		{Code("SomethingElse"), -32603},
	}
	for _, c := range cases {
		if got := JSONRPCCode(c.code); got != c.want {
			t.Errorf("JSONRPCCode(%s) = %d, want %d", c.code, got, c.want)
		}
	}
}
