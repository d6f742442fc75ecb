package endpoint

import (
	"context"

	"github.com/nextlevelbuilder/mcpbridge/internal/mcpservice"
)

// ToolCatalog is the dependency Endpoint dispatches tools/list and
// tools/call against. In production it is *svcmanager.Manager; tests
// substitute a hand-rolled fake rather than a mocking framework.
type ToolCatalog interface {
	ListTools() []mcpservice.ToolDescriptor
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcpservice.ToolResult, error)
}
