package endpoint

import (
	"context"
	"encoding/json"

	"github.com/nextlevelbuilder/mcpbridge/internal/mcperr"
	"github.com/nextlevelbuilder/mcpbridge/internal/mcpservice"
)

// fakeCatalog is a hand-rolled ToolCatalog stand-in: each CallTool invocation
// pops the next scripted response off calls, so tests can script failure
// sequences (e.g. "fail twice, then succeed") without a live service.
type fakeCatalog struct {
	tools []mcpservice.ToolDescriptor
	calls []func() (*mcpservice.ToolResult, error)
	index int
}

func (f *fakeCatalog) ListTools() []mcpservice.ToolDescriptor {
	return f.tools
}

func (f *fakeCatalog) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcpservice.ToolResult, error) {
	if f.index >= len(f.calls) {
		return nil, mcperr.New(mcperr.CodeInternalError, "fakeCatalog: no more scripted calls")
	}
	fn := f.calls[f.index]
	f.index++
	return fn()
}

// succeed mirrors the content-array shape callTool produces: a list of
// {type, text} blocks, not a bare JSON string.
func succeed(text string) func() (*mcpservice.ToolResult, error) {
	return func() (*mcpservice.ToolResult, error) {
		raw, _ := json.Marshal([]map[string]string{{"type": "text", "text": text}})
		return &mcpservice.ToolResult{Content: raw}, nil
	}
}

func failWith(code mcperr.Code, msg string) func() (*mcpservice.ToolResult, error) {
	return func() (*mcpservice.ToolResult, error) {
		return nil, mcperr.New(code, msg)
	}
}
