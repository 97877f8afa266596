package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeready-toolchain/mcphub/pkg/apitool"
	"github.com/codeready-toolchain/mcphub/pkg/group"
	"github.com/codeready-toolchain/mcphub/pkg/hub"
	"github.com/codeready-toolchain/mcphub/pkg/toolmanager"
	"github.com/codeready-toolchain/mcphub/pkg/version"
)

// dispatcher resolves one JSON-RPC request against a single group's view
// of the hub.
type dispatcher struct {
	hub *hub.Hub
}

func newDispatcher(h *hub.Hub) *dispatcher {
	return &dispatcher{hub: h}
}

// dispatch handles one request scoped to groupID ("" for the ungrouped,
// all-tools endpoint) and clientID (used for API-tool rate limiting).
func (d *dispatcher) dispatch(ctx context.Context, groupID, clientID string, req Request) Response {
	switch req.Method {
	case "initialize":
		return successResponse(req.ID, initializeResult{
			ProtocolVersion: "2024-11-05",
			ServerInfo:      serverInfo{Name: version.AppName, Version: version.GitCommit},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "tools/list":
		return d.toolsList(req, groupID)
	case "tools/call":
		return d.toolsCall(ctx, req, groupID, clientID)
	default:
		return errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil)
	}
}

func (d *dispatcher) toolsList(req Request, groupID string) Response {
	descriptors, err := d.hub.Tools.GetToolsForGroup(groupID)
	if err != nil {
		return errorResponse(req.ID, codeInvalidRequest, err.Error(), errorCode(err))
	}

	tools := make([]toolEntry, 0, len(descriptors))
	for _, desc := range descriptors {
		tools = append(tools, toolEntry{Name: desc.Name, Description: desc.Description, InputSchema: desc.InputSchema})
	}
	return successResponse(req.ID, toolListResult{Tools: tools})
}

func (d *dispatcher) toolsCall(ctx context.Context, req Request, groupID, clientID string) Response {
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "invalid tools/call params", nil)
	}
	if params.Name == "" {
		return errorResponse(req.ID, codeInvalidParams, "missing tool name", nil)
	}

	result, err := d.hub.Tools.ExecuteTool(ctx, groupID, params.Name, clientID, params.Arguments)
	if err != nil {
		return errorResponse(req.ID, codeInternalError, err.Error(), errorCode(err))
	}
	return successResponse(req.ID, mcpResultEnvelope(result))
}

// mcpResultEnvelope shapes a *mcpsdk.CallToolResult into the MCP wire
// form: {content:[...], isError}. A JSON API-tool response carries its
// decoded value in StructuredContent; that takes the place of the text
// rendering as a single {type:"json", data:...} block, since the SDK's
// TextContent alongside it is just the same value JSON-encoded and would
// otherwise duplicate it on the wire.
func mcpResultEnvelope(result *mcpsdk.CallToolResult) map[string]any {
	if result.StructuredContent != nil {
		content := []map[string]any{{"type": "json", "data": result.StructuredContent}}
		return map[string]any{"content": content, "isError": result.IsError}
	}

	content := make([]map[string]any, 0, len(result.Content))
	for _, c := range result.Content {
		if text, ok := c.(*mcpsdk.TextContent); ok {
			content = append(content, map[string]any{"type": "text", "text": text.Text})
		}
	}
	return map[string]any{"content": content, "isError": result.IsError}
}

// errorCode maps an internal error to one of the stable string codes the
// error taxonomy defines, for inclusion in a JSON-RPC error's Data field.
func errorCode(err error) string {
	switch {
	case errors.Is(err, toolmanager.ErrToolNotFound):
		return "ToolNotFound"
	case errors.Is(err, toolmanager.ErrNoServersAvailable):
		return "NoServersAvailable"
	case errors.Is(err, group.ErrGroupNotFound):
		return "GroupNotFound"
	case errors.Is(err, group.ErrAccessKeyRequired), errors.Is(err, group.ErrInvalidAccessKey):
		return "AccessDenied"
	default:
		var execErr *toolmanager.ToolExecutionError
		if errors.As(err, &execErr) {
			var mcpErr *apitool.McpError
			if errors.As(execErr.Cause, &mcpErr) {
				return string(mcpErr.Code)
			}
			return "ToolExecutionFailed"
		}
		return "ServerError"
	}
}
