package endpoint

import (
	"errors"
	"testing"

	"github.com/coder/websocket"
)

func TestCloseCodeExtractsStatus(t *testing.T) {
	err := errors.New("plain error, no status")
	if got := closeCode(err); got != 1006 {
		t.Errorf("closeCode(plain error) = %d, want 1006 (abnormal closure sentinel)", got)
	}
}

func TestCloseCodeFromWebsocketCloseError(t *testing.T) {
	wrapped := websocket.CloseError{Code: websocket.StatusNormalClosure, Reason: "bye"}
	if got := closeCode(wrapped); got != int(websocket.StatusNormalClosure) {
		t.Errorf("closeCode(CloseError) = %d, want %d", got, websocket.StatusNormalClosure)
	}
}
