package mcpservice

import (
	"context"
	"encoding/json"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

// clientInfo is advertised during the initialize handshake.
var clientInfo = mcpgo.Implementation{
	Name:    "mcpbridge",
	Version: "0.1.0",
}

// doInitialize runs the initialize -> notifications/initialized exchange.
// mcp-go's Client.Initialize sends the initialized notification itself once
// the server responds; we always emit it immediately after a successful
// response.
func doInitialize(ctx context.Context, cli *mcpclient.Client, protocolVersion string) error {
	req := mcpgo.InitializeRequest{}
	req.Params.ProtocolVersion = protocolVersion
	req.Params.ClientInfo = clientInfo
	_, err := cli.Initialize(ctx, req)
	return err
}

// listTools fetches the tool table and converts it to our ToolDescriptor.
func listTools(ctx context.Context, cli *mcpclient.Client) ([]ToolDescriptor, error) {
	result, err := cli.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	out := make([]ToolDescriptor, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			schema = json.RawMessage("{}")
		}
		out = append(out, ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return out, nil
}

// ToolResult is the bridge-native rendering of an MCP tools/call response.
type ToolResult struct {
	Content json.RawMessage
	IsError bool
	errText string
}

// ErrorText returns the concatenated text content, used as the error
// message when IsError is true.
func (r *ToolResult) ErrorText() string { return r.errText }

func callTool(ctx context.Context, cli *mcpclient.Client, name string, args map[string]interface{}) (*ToolResult, error) {
	req := mcpgo.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := cli.CallTool(ctx, req)
	if err != nil {
		return nil, err
	}

	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	raw, merr := json.Marshal(result.Content)
	if merr != nil {
		raw = json.RawMessage("[]")
	}
	return &ToolResult{Content: raw, IsError: result.IsError, errText: strings.Join(parts, "\n")}, nil
}

func pingOnce(ctx context.Context, cli *mcpclient.Client) error {
	return cli.Ping(ctx)
}
