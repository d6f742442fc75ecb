package jsonrpc

import (
	"encoding/json"
	"sync/atomic"
)

// IDGenerator allocates monotonically increasing JSON-RPC request ids for a
// single session. JSON-RPC ids only need to be unique per session, so a
// per-session counter is simpler and cheaper than a UUID per call. Neither
// Service nor Endpoint holds one: the Endpoint answers with the peer's ids,
// and mcp-go numbers the Service's requests.
type IDGenerator struct {
	counter atomic.Uint64
}

// Next returns the next id as a JSON-RPC-compatible raw number.
func (g *IDGenerator) Next() json.RawMessage {
	n := g.counter.Add(1)
	b, _ := json.Marshal(n)
	return b
}
