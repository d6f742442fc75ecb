package endpoint

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/mcpbridge/internal/jsonrpc"
	"github.com/nextlevelbuilder/mcpbridge/internal/mcperr"
)

// serverInfo identifies the bridge to an upstream peer during initialize,
// mirroring mcpservice's clientInfo on the downstream side.
var serverInfo = struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}{Name: "mcpbridge", Version: "0.1.0"}

type initializeResult struct {
	ProtocolVersion string `json:"protocolVersion"`
	Capabilities    struct {
		Tools struct {
			ListChanged bool `json:"listChanged"`
		} `json:"tools"`
	} `json:"capabilities"`
	ServerInfo interface{} `json:"serverInfo"`
}

type toolWire struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type listToolsResult struct {
	Tools []toolWire `json:"tools"`
}

type callToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type callToolResult struct {
	Content json.RawMessage `json:"content"`
	IsError bool            `json:"isError,omitempty"`
}

// codeMethodNotFound is the JSON-RPC 2.0 MethodNotFound error code.
const codeMethodNotFound = -32601

// dispatch decodes one inbound frame and, for requests, writes a response.
// Unmatched response frames are logged and dropped; notifications are
// dropped silently.
func (e *Endpoint) dispatch(ctx context.Context, conn *wsConn, raw []byte) {
	var env jsonrpc.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Warn("endpoint.frame_decode_error", "url", e.cfg.URL, "error", err)
		return
	}

	if env.IsResponse() {
		slog.Debug("endpoint.unmatched_response_dropped", "url", e.cfg.URL)
		return
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		slog.Warn("endpoint.request_decode_error", "url", e.cfg.URL, "error", err)
		return
	}

	if env.IsNotification() {
		// The bridge has nothing to act on for peer-originated notifications
		// (e.g. notifications/cancelled) yet; drop silently.
		return
	}

	resp := e.handle(ctx, req)
	body, err := json.Marshal(resp)
	if err != nil {
		slog.Error("endpoint.response_encode_error", "url", e.cfg.URL, "error", err)
		return
	}
	if err := conn.Write(ctx, body); err != nil {
		slog.Warn("endpoint.write_error", "url", e.cfg.URL, "error", err)
	}
}

func (e *Endpoint) handle(ctx context.Context, req jsonrpc.Request) *jsonrpc.Response {
	switch req.Method {
	case "initialize":
		return e.handleInitialize(req)
	case "ping":
		return mustResult(req.ID, struct{}{})
	case "tools/list":
		return e.handleListTools(req)
	case "tools/call":
		return e.handleCallTool(ctx, req)
	case "prompts/list":
		return mustResult(req.ID, struct {
			Prompts []interface{} `json:"prompts"`
		}{})
	case "resources/list":
		return mustResult(req.ID, struct {
			Resources []interface{} `json:"resources"`
		}{})
	default:
		return jsonrpc.NewError(req.ID, codeMethodNotFound, "method not found: "+req.Method, nil)
	}
}

func (e *Endpoint) handleInitialize(req jsonrpc.Request) *jsonrpc.Response {
	result := initializeResult{ProtocolVersion: e.cfg.Version(), ServerInfo: serverInfo}
	result.Capabilities.Tools.ListChanged = true
	return mustResult(req.ID, result)
}

func (e *Endpoint) handleListTools(req jsonrpc.Request) *jsonrpc.Response {
	descs := e.catalog.ListTools()
	tools := make([]toolWire, 0, len(descs))
	for _, d := range descs {
		schema := d.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage("{}")
		}
		tools = append(tools, toolWire{Name: d.Name, Description: d.Description, InputSchema: schema})
	}
	return mustResult(req.ID, listToolsResult{Tools: tools})
}

func (e *Endpoint) handleCallTool(ctx context.Context, req jsonrpc.Request) *jsonrpc.Response {
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return jsonrpc.NewError(req.ID, mcperr.JSONRPCCode(mcperr.CodeProtocolError), "invalid tools/call params: "+err.Error(), nil)
	}

	callID := uuid.NewString()

	if e.limiter != nil && !e.limiter.Allow() {
		slog.Warn("endpoint.tool_call_rate_limited", "url", e.cfg.URL, "call_id", callID, "tool", params.Name)
		err := mcperr.New(mcperr.CodeServiceUnavailable, "endpoint: rate limit exceeded")
		return jsonrpc.NewError(req.ID, mcperr.JSONRPCCode(mcperr.CodeOf(err)), err.Error(), nil)
	}

	slog.Debug("endpoint.tool_call_dispatched", "url", e.cfg.URL, "call_id", callID, "tool", params.Name)
	result, err := callToolWithRetry(ctx, e.catalog, e.cfg.Retry, params.Name, params.Arguments)
	if err != nil {
		code := mcperr.CodeOf(err)
		slog.Warn("endpoint.tool_call_failed", "url", e.cfg.URL, "call_id", callID, "tool", params.Name, "error", err)
		return jsonrpc.NewError(req.ID, mcperr.JSONRPCCode(code), err.Error(), nil)
	}

	return mustResult(req.ID, callToolResult{
		Content: result.Content,
		IsError: result.IsError,
	})
}

func mustResult(id json.RawMessage, v interface{}) *jsonrpc.Response {
	resp, err := jsonrpc.NewResult(id, v)
	if err != nil {
		return jsonrpc.NewError(id, mcperr.JSONRPCCode(mcperr.CodeInternalError), "encode result: "+err.Error(), nil)
	}
	return resp
}
