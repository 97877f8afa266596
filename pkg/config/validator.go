package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/blues/jsonata-go"
)

// Finding is one validation result: a configuration reference or document
// that failed a check, ranked by Severity, with an
// auto-generated remediation Hint.
type Finding struct {
	Component string
	ID        string
	Field     string
	Severity  Severity
	Code      string
	Message   string
	Hint      string
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s %q field %q: %s (%s)", f.Severity, f.Component, f.ID, f.Field, f.Message, f.Hint)
}

// Report collects every Finding produced by a validation pass.
type Report struct {
	Findings []Finding
}

func (r *Report) add(f Finding) {
	r.Findings = append(r.Findings, f)
}

// Warnings renders every non-critical finding as a log-ready string.
// Critical findings are left out; Critical returns them, and Initialize
// logs them at error level instead.
func (r *Report) Warnings() []string {
	var out []string
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical {
			continue
		}
		out = append(out, f.String())
	}
	return out
}

// Critical returns every finding in the report of severity critical.
func (r *Report) Critical() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical {
			out = append(out, f)
		}
	}
	return out
}

// Validator validates loaded configuration: well-formedness of each
// document plus cross-references between groups, servers, and tools.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator bound to cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs every validation pass and returns the accumulated
// report. An error is returned only when the hub is left with zero valid
// groups: none are configured, or every one was demoted to fallback. All
// findings, critical or not, otherwise stay in the report.
func (v *Validator) ValidateAll() (*Report, error) {
	report := &Report{}

	v.validateServers(report)
	v.validateAPITools(report)
	v.validateGroups(report)

	if len(v.cfg.GroupRegistry.GetAll()) == 0 {
		return report, fmt.Errorf("%w: no groups configured", ErrValidationFailed)
	}

	allFallback := true
	for _, g := range v.cfg.GroupRegistry.GetAll() {
		if !g.Fallback {
			allFallback = false
			break
		}
	}
	if allFallback {
		return report, fmt.Errorf("%w: every configured group was demoted to fallback", ErrValidationFailed)
	}

	return report, nil
}

func (v *Validator) validateServers(report *Report) {
	for id, s := range v.cfg.ServerRegistry.GetAll() {
		if !s.Transport.Type.IsValid() {
			report.add(Finding{
				Component: "server", ID: id, Field: "transport.type",
				Severity: SeverityCritical, Code: "InvalidTransportType",
				Message: fmt.Sprintf("unknown transport type %q", s.Transport.Type),
				Hint:    "use one of stdio, sse, streamable-http",
			})
			continue
		}

		switch s.Transport.Type {
		case TransportTypeStdio:
			if s.Transport.Command == "" {
				report.add(Finding{
					Component: "server", ID: id, Field: "transport.command",
					Severity: SeverityCritical, Code: "MissingCommand",
					Message: "stdio transport requires a command",
					Hint:    "set transport.command to the executable to spawn",
				})
			}
		case TransportTypeSSE, TransportTypeStreamableHTTP:
			if s.Transport.URL == "" {
				report.add(Finding{
					Component: "server", ID: id, Field: "transport.url",
					Severity: SeverityCritical, Code: "MissingURL",
					Message: fmt.Sprintf("%s transport requires a url", s.Transport.Type),
					Hint:    "set transport.url to the server's endpoint",
				})
				continue
			}
			if _, err := url.ParseRequestURI(s.Transport.URL); err != nil {
				report.add(Finding{
					Component: "server", ID: id, Field: "transport.url",
					Severity: SeverityHigh, Code: "InvalidURL",
					Message: err.Error(),
					Hint:    "provide an absolute URL including scheme and host",
				})
			}
		}

		if HasEnvPlaceholder(s.Transport.Command) || HasEnvPlaceholder(s.Transport.URL) {
			report.add(Finding{
				Component: "server", ID: id, Field: "transport",
				Severity: SeverityMedium, Code: "UnresolvedEnvPlaceholder",
				Message: "one or more {{env.NAME}} references were not resolved",
				Hint:    "set the referenced environment variable before starting the hub",
			})
		}
	}
}

var templatePlaceholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.]*)\s*\}\}`)

func (v *Validator) validateAPITools(report *Report) {
	for id, t := range v.cfg.APIToolRegistry.GetAll() {
		if t.ID == "" || t.ID != id {
			report.add(Finding{
				Component: "api_tool", ID: id, Field: "id",
				Severity: SeverityCritical, Code: "MissingID",
				Message: "api tool id must be set and match its registry key",
				Hint:    "give the tool a stable, unique id",
			})
		}

		if !t.API.Method.IsValid() {
			report.add(Finding{
				Component: "api_tool", ID: id, Field: "api.method",
				Severity: SeverityCritical, Code: "InvalidMethod",
				Message: fmt.Sprintf("unsupported HTTP method %q", t.API.Method),
				Hint:    "use one of GET, POST, PUT, PATCH, DELETE",
			})
		}

		if t.API.URL == "" {
			report.add(Finding{
				Component: "api_tool", ID: id, Field: "api.url",
				Severity: SeverityCritical, Code: "MissingURL",
				Message: "api.url is required",
				Hint:    "set api.url, templated with {{data.*}} / {{env.*}} as needed",
			})
		} else {
			v.validateTemplateSyntax(report, id, "api.url", t.API.URL)
		}

		for k, hv := range t.API.Headers {
			v.validateTemplateSyntax(report, id, "api.headers."+k, hv)
		}
		for k, qv := range t.API.QueryParams {
			v.validateTemplateSyntax(report, id, "api.queryParams."+k, qv)
		}

		if t.Parameters != nil {
			v.validateJSONSchema(report, id, t.Parameters)
		}

		if t.Response.Jsonata != "" {
			v.validateJSONata(report, id, "response.jsonata", t.Response.Jsonata)
		}
		if t.Response.FallbackJsonata != "" {
			v.validateJSONata(report, id, "response.fallbackJsonata", t.Response.FallbackJsonata)
		}

		if t.Security != nil && t.Security.RateLimit != nil {
			rl := t.Security.RateLimit
			if rl.MaxRequests < 1 {
				report.add(Finding{
					Component: "api_tool", ID: id, Field: "security.rateLimit.maxRequests",
					Severity: SeverityHigh, Code: "InvalidRateLimit",
					Message: "maxRequests must be at least 1",
					Hint:    "set security.rateLimit.maxRequests to a positive integer",
				})
			}
			if rl.WindowSeconds < 1 {
				report.add(Finding{
					Component: "api_tool", ID: id, Field: "security.rateLimit.windowSeconds",
					Severity: SeverityHigh, Code: "InvalidRateLimit",
					Message: "windowSeconds must be at least 1",
					Hint:    "set security.rateLimit.windowSeconds to a positive integer",
				})
			}
		}

		for i, pattern := range apiWhitelistPatterns(t) {
			if pattern == "" {
				report.add(Finding{
					Component: "api_tool", ID: id, Field: fmt.Sprintf("security.domainWhitelist[%d]", i),
					Severity: SeverityMedium, Code: "EmptyWhitelistEntry",
					Message: "empty domain whitelist entry is ignored",
					Hint:    "remove the empty entry or provide a host pattern",
				})
			}
		}
	}
}

func apiWhitelistPatterns(t ApiToolConfig) []string {
	if t.Security == nil {
		return nil
	}
	return t.Security.DomainWhitelist
}

func (v *Validator) validateTemplateSyntax(report *Report, id, field, tmpl string) {
	for _, m := range templatePlaceholder.FindAllStringSubmatch(tmpl, -1) {
		ref := m[1]
		if ref == "data" || ref == "env" {
			report.add(Finding{
				Component: "api_tool", ID: id, Field: field,
				Severity: SeverityMedium, Code: "IncompleteTemplateReference",
				Message: fmt.Sprintf("template reference %q is missing a path", m[0]),
				Hint:    "reference a specific field, e.g. {{data.city}} or {{env.API_KEY}}",
			})
			continue
		}
		if len(ref) < 5 || (ref[:5] != "data." && ref[:4] != "env.") {
			report.add(Finding{
				Component: "api_tool", ID: id, Field: field,
				Severity: SeverityLow, Code: "UnknownTemplateNamespace",
				Message: fmt.Sprintf("template reference %q does not start with data. or env.", m[0]),
				Hint:    "only {{data.*}} and {{env.*}} are interpolated at call time",
			})
		}
	}
}

func (v *Validator) validateJSONSchema(report *Report, id string, schema map[string]any) {
	raw, err := json.Marshal(schema)
	if err != nil {
		report.add(Finding{
			Component: "api_tool", ID: id, Field: "parameters",
			Severity: SeverityCritical, Code: "InvalidSchemaDocument",
			Message: err.Error(),
			Hint:    "parameters must be a JSON-serialisable object",
		})
		return
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	resourceName := id + "#/parameters"
	if err := compiler.AddResource(resourceName, bytes.NewReader(raw)); err != nil {
		report.add(Finding{
			Component: "api_tool", ID: id, Field: "parameters",
			Severity: SeverityCritical, Code: "InvalidJSONSchema",
			Message: err.Error(),
			Hint:    "fix the JSON Schema document under parameters",
		})
		return
	}
	if _, err := compiler.Compile(resourceName); err != nil {
		report.add(Finding{
			Component: "api_tool", ID: id, Field: "parameters",
			Severity: SeverityCritical, Code: "InvalidJSONSchema",
			Message: err.Error(),
			Hint:    "fix the JSON Schema document under parameters",
		})
	}
}

func (v *Validator) validateJSONata(report *Report, id, field, expr string) {
	if _, err := jsonata.Compile(expr); err != nil {
		report.add(Finding{
			Component: "api_tool", ID: id, Field: field,
			Severity: SeverityHigh, Code: "InvalidJSONata",
			Message: err.Error(),
			Hint:    "fix the JSONata expression syntax",
		})
	}
}

// validateGroups enforces the GroupConfig invariants:
// servers must be a subset of known server ids (missing entries dropped
// with a warning); a group left with zero valid servers is demoted to
// fallback; tools listed but absent from any referenced server are
// dropped with a warning (deferred here — actual tool membership is only
// known once servers are connected, so this pass does not check the
// tools list at all).
func (v *Validator) validateGroups(report *Report) {
	for id, g := range v.cfg.GroupRegistry.GetAll() {
		var validServers []string
		for _, sid := range g.Servers {
			if sid == APIToolServerID || v.cfg.ServerRegistry.Has(sid) {
				validServers = append(validServers, sid)
				continue
			}
			report.add(Finding{
				Component: "group", ID: id, Field: "servers",
				Severity: SeverityMedium, Code: "UnknownServerReference",
				Message: fmt.Sprintf("server %q is not configured", sid),
				Hint:    "remove the reference or add the server to mcp_server.json",
			})
		}

		g.Servers = validServers
		if len(g.Servers) == 0 {
			g.Fallback = true
			g.Tools = nil
			report.add(Finding{
				Component: "group", ID: id, Field: "servers",
				Severity: SeverityHigh, Code: "GroupDemotedToFallback",
				Message: "group has no valid server references and was demoted to a fallback group",
				Hint:    "add at least one valid server reference to restore this group",
			})
		}

		v.cfg.GroupRegistry.Put(id, g)
	}
}
