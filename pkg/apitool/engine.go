// Package apitool implements the API-to-MCP engine: it
// turns a declarative ApiToolConfig into a callable MCP tool backed by a
// REST endpoint — validating parameters, rendering the request template,
// dispatching HTTP, shaping the response, and emitting redacted security
// records along the way.
package apitool

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeready-toolchain/mcphub/pkg/config"
)

// Engine executes calls against the configured API tools. One Engine is
// shared across all groups; it holds no per-group state.
type Engine struct {
	registry *config.APIToolRegistry

	mu      sync.Mutex
	schemas map[string]*compiledSchema

	client      *http.Client
	rateLimiter *RateLimiter
	security    *securityLogger

	envLookup func(string) (string, bool)
}

// New creates an Engine over the given API tool registry. securityKeys
// extends the default sensitive-key set used when redacting call records.
// sink, if non-nil, receives every SecurityEvent in addition to it being
// logged.
func New(registry *config.APIToolRegistry, securityKeys []string, sink func(SecurityEvent)) *Engine {
	return &Engine{
		registry:    registry,
		schemas:     make(map[string]*compiledSchema),
		client:      newHTTPClient(),
		rateLimiter: NewRateLimiter(),
		security:    newSecurityLogger(securityKeys, sink),
		envLookup:   os.LookupEnv,
	}
}

// Execute validates, renders, dispatches, and shapes one call to the
// named API tool, returning an MCP-shaped CallToolResult.
func (e *Engine) Execute(ctx context.Context, toolID, clientID string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	start := time.Now()

	tool, err := e.registry.Get(toolID)
	if err != nil {
		return nil, err
	}

	result, callErr := e.execute(ctx, tool, clientID, args)

	rec := CallRecord{
		ToolID:     toolID,
		ClientID:   clientID,
		Timestamp:  start,
		Parameters: args,
		Duration:   time.Since(start),
		Success:    callErr == nil,
	}
	if result != nil {
		rec.Response = resultText(result)
	}
	if callErr != nil {
		rec.Error = callErr.Error()
	}
	e.security.logCall(rec)

	if callErr != nil {
		return errorResult(callErr), nil
	}
	return result, nil
}

func (e *Engine) execute(ctx context.Context, tool config.ApiToolConfig, clientID string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	schema, err := e.schemaFor(tool)
	if err != nil {
		return nil, err
	}

	validated, err := schema.ValidateAndApplyDefaults(args)
	if err != nil {
		return nil, err
	}

	if tool.Security != nil {
		if outcome := e.rateLimiter.Check(tool.ID, clientID, tool.Security.RateLimit); !outcome.Allowed {
			e.security.emit(SecurityEvent{
				Type: EventRateLimitExceeded, Severity: "high", ToolID: tool.ID, ClientID: clientID,
				Message: "rate limit exceeded",
			})
			if outcome.SuspiciousActivity {
				e.security.emit(SecurityEvent{
					Type: EventSuspiciousActivity, Severity: "critical", ToolID: tool.ID, ClientID: clientID,
					Message: "repeated rate-limit violations",
				})
			}
			return nil, &McpError{Code: CodeRateLimitExceeded, Message: "rate limit exceeded for tool " + tool.ID}
		}
	}

	rr, err := renderRequest(tool.API, e.envLookup, validated)
	if err != nil {
		return nil, &McpError{Code: CodeUnresolvedTemplateVariable, Message: err.Error()}
	}

	if tool.Security != nil && len(tool.Security.DomainWhitelist) > 0 {
		if werr := checkDomainWhitelist(rr.url, tool.Security.DomainWhitelist); werr != nil {
			return nil, werr
		}
	}

	outcome, err := execute(ctx, e.client, rr)
	if err != nil {
		return nil, &McpError{Code: CodeServerError, Message: err.Error()}
	}

	if outcome.status >= 400 {
		errorPath := ""
		if tool.Response.ErrorPath != "" {
			errorPath = tool.Response.ErrorPath
		}
		msg := extractErrorMessage(outcome.body, errorPath)
		return nil, &McpError{Code: codeForStatus(outcome.status), Message: msg}
	}

	text, data, fellBack, err := shapeResponse(outcome.contentType, outcome.body, tool.Response)
	if err != nil {
		return nil, &McpError{Code: CodeServerError, Message: err.Error()}
	}
	_ = fellBack

	result := &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
		IsError: false,
	}
	// A JSON API response carries its decoded form as structured content
	// too, so a client that understands MCP's structured-content field can
	// consume {temp:17} directly instead of parsing the text block.
	if data != nil {
		result.StructuredContent = data
	}
	return result, nil
}

func (e *Engine) schemaFor(tool config.ApiToolConfig) (*compiledSchema, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.schemas[tool.ID]; ok {
		return s, nil
	}
	s, err := compileParameterSchema(tool.ID, tool.Parameters, tool.StripAdditionalProperties)
	if err != nil {
		return nil, err
	}
	e.schemas[tool.ID] = s
	return s, nil
}

// InvalidateSchema drops a cached compiled schema, used after a config
// reload changes a tool's parameter schema.
func (e *Engine) InvalidateSchema(toolID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.schemas, toolID)
}

// errorResult converts an McpError (or any other error) into an
// isError=true MCP tool result, following the go-sdk convention of
// returning errors as content rather than a Go error when the failure is
// a tool-level, not transport-level, fault.
func errorResult(err error) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}
}

// resultText concatenates text content for the security log, matching the
// shape the redactor expects rather than logging the raw SDK struct.
func resultText(result *mcpsdk.CallToolResult) string {
	var out string
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			out += tc.Text
		}
	}
	return out
}
