package config

import "time"

// ServerConfig is the per-session configuration for one downstream MCP
// server, as loaded from mcp_server.json. Exactly one of the transport
// shapes in Transport applies, selected by Transport.Type.
type ServerConfig struct {
	ID        string          `json:"-"`
	Transport TransportConfig `json:"transport"`
	Env       map[string]string `json:"env,omitempty"`
	Enabled   *bool           `json:"enabled,omitempty"`
}

// IsEnabled reports whether the server should be connected at init. A nil
// Enabled field defaults to true.
func (c ServerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TransportConfig describes how to reach one downstream MCP server.
type TransportConfig struct {
	Type TransportType `json:"type"`

	// Stdio transport
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`

	// SSE / streamable-HTTP transport
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	BearerToken string            `json:"bearerToken,omitempty"`
	VerifySSL   *bool             `json:"verifySsl,omitempty"`
	TimeoutSecs int               `json:"timeoutSeconds,omitempty"`
}

// GroupConfig is a named, optionally access-keyed subset of servers and
// tools, as loaded from group.json.
type GroupConfig struct {
	ID          string           `json:"-"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Servers     []string         `json:"servers"`
	Tools       []string         `json:"tools,omitempty"`
	Validation  *GroupValidation `json:"validation,omitempty"`

	// Fallback marks a group demoted at load time because none of its
	// configured servers resolved to a known server id. A fallback group
	// is retained (so references don't dangle) but always exports zero
	// tools.
	Fallback bool `json:"-"`
}

// GroupValidation holds the hashed access key gating a group's visibility.
type GroupValidation struct {
	Enabled     bool      `json:"enabled"`
	KeyHash     string    `json:"keyHash,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	LastUpdated time.Time `json:"lastUpdated,omitempty"`
}

// ApiToolConfig declares one REST endpoint synthesised into an MCP tool,
// as loaded from api-tools.json.
type ApiToolConfig struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	API         APIRequestConfig  `json:"api"`
	Parameters  map[string]any    `json:"parameters"` // JSON Schema document
	Response    APIResponseConfig `json:"response,omitempty"`
	Security    *APISecurityConfig `json:"security,omitempty"`

	// StripAdditionalProperties, when true, silently drops argument keys
	// the schema's "properties" does not declare instead of rejecting the
	// call outright. Default (false) keeps the schema's own
	// additionalProperties:false behaviour: reject.
	StripAdditionalProperties bool `json:"stripAdditionalProperties,omitempty"`
}

// APIRequestConfig is the template used to build the outbound HTTP request.
type APIRequestConfig struct {
	URL         string            `json:"url"`
	Method      HTTPMethod        `json:"method"`
	Headers     map[string]string `json:"headers,omitempty"`
	QueryParams map[string]string `json:"queryParams,omitempty"`
	Body        any               `json:"body,omitempty"`
}

// APIResponseConfig controls how the raw HTTP response is shaped into an
// MCP tool result.
type APIResponseConfig struct {
	Jsonata           string `json:"jsonata,omitempty"`
	FallbackJsonata   string `json:"fallbackJsonata,omitempty"`
	ErrorPath         string `json:"errorPath,omitempty"`
}

// APISecurityConfig configures rate limiting and egress restriction for an
// API tool.
type APISecurityConfig struct {
	RateLimit       *RateLimitConfig `json:"rateLimit,omitempty"`
	DomainWhitelist []string         `json:"domainWhitelist,omitempty"`
}

// RateLimitConfig parameterises the sliding-window limiter for one tool.
type RateLimitConfig struct {
	MaxRequests         int `json:"maxRequests"`
	WindowSeconds       int `json:"windowSeconds"`
	ViolationThreshold  int `json:"violationThreshold,omitempty"`  // suspicious-activity trigger
	DetectionWindowSecs int `json:"detectionWindowSeconds,omitempty"`
}

// APIToolsDocument is the top-level shape of api-tools.json.
type APIToolsDocument struct {
	Version int             `json:"version"`
	Tools   []ApiToolConfig `json:"tools"`
}

// ServerConfigDocument is the top-level shape of mcp_server.json.
type ServerConfigDocument struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// GroupConfigDocument is the top-level shape of group.json: a bare map of
// group id to GroupConfig.
type GroupConfigDocument map[string]GroupConfig
