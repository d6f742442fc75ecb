package endpoint

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// wsConn wraps coder/websocket with a thread-safe writer. Endpoint frames
// are JSON text, so Write uses MessageText.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// dialWS opens the outbound connection to an upstream endpoint peer: the
// bridge is the WebSocket client but behaves as the MCP server once
// connected.
func dialWS(ctx context.Context, wsURL string, headers map[string]string) (*wsConn, error) {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: h})
	if err != nil {
		return nil, fmt.Errorf("endpoint: ws dial: %w", err)
	}
	conn.SetReadLimit(4 << 20) // 4MB: tool call payloads can be larger than Zalo's chat frames
	return &wsConn{conn: conn}, nil
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// Ping sends a WebSocket ping frame and blocks until the pong arrives or ctx
// expires. Used directly as the heartbeat mechanism rather than an
// application-level ping RPC.
func (c *wsConn) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

// closeCode extracts the close status from a coder/websocket error.
func closeCode(err error) int {
	code := int(websocket.CloseStatus(err))
	if code == -1 {
		return 1006
	}
	return code
}
