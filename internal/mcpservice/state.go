package mcpservice

import "encoding/json"

// ConnectionState is the lifecycle state of a single Service.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "Disconnected"
	StateConnecting   ConnectionState = "Connecting"
	StateConnected    ConnectionState = "Connected"
	StateReconnecting ConnectionState = "Reconnecting"
	StateFailed       ConnectionState = "Failed"
)

// ToolDescriptor describes one tool exposed by a Service. A Service sets
// Name to the tool's local name; the Service Manager's catalog copies
// rewrite Name to the external name once collision prefixing is resolved.
type ToolDescriptor struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	InputSchema   json.RawMessage `json:"inputSchema"`
	OwningService string          `json:"owningService"`
}
