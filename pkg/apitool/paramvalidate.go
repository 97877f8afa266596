package apitool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// compiledSchema is cached per tool id so every call does not pay JSON
// Schema compilation cost.
type compiledSchema struct {
	schema          *jsonschema.Schema
	raw             map[string]any
	stripAdditional bool
}

func compileParameterSchema(toolID string, schemaDoc map[string]any, stripAdditional bool) (*compiledSchema, error) {
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %q: %w", toolID, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	compiler.Formats["url"] = isURL
	resourceName := toolID + ".schema.json"
	if err := compiler.AddResource(resourceName, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", toolID, err)
	}

	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", toolID, err)
	}

	return &compiledSchema{schema: schema, raw: schemaDoc, stripAdditional: stripAdditional}, nil
}

// isURL backs the "url" format: a string must parse as an absolute URL
// with both a scheme and a host. Non-string values are left to "type".
func isURL(v any) bool {
	s, ok := v.(string)
	if !ok {
		return true
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// ValidateAndApplyDefaults validates args against the tool's JSON Schema
// and returns a copy with schema defaults filled in for any property the
// caller omitted. When the tool is configured to strip rather than reject
// additional properties, unknown keys are dropped before validation so a
// schema's own additionalProperties:false never fires on them.
func (c *compiledSchema) ValidateAndApplyDefaults(args map[string]any) (map[string]any, error) {
	withDefaults := applyDefaults(c.raw, cloneMap(args))
	if c.stripAdditional {
		withDefaults = stripAdditionalProperties(c.raw, withDefaults)
	}

	if err := c.schema.Validate(withDefaults); err != nil {
		return nil, &McpError{Code: CodeInvalidParams, Message: err.Error(), Detail: err}
	}
	return withDefaults, nil
}

// stripAdditionalProperties recursively drops keys from data that
// schemaDoc's "properties" does not declare, honouring the "silently
// strip" option for additionalProperties (the "reject" option is already
// the schema library's own default behaviour).
func stripAdditionalProperties(schemaDoc map[string]any, data map[string]any) map[string]any {
	props, ok := schemaDoc["properties"].(map[string]any)
	if !ok {
		return data
	}

	for key, val := range data {
		propSchema, declared := props[key].(map[string]any)
		if !declared {
			delete(data, key)
			continue
		}
		if nested, ok := val.(map[string]any); ok {
			data[key] = stripAdditionalProperties(propSchema, nested)
		}
	}
	return data
}

// applyDefaults recursively fills `default` values from a JSON Schema
// document into data for properties the caller did not supply.
func applyDefaults(schemaDoc map[string]any, data map[string]any) map[string]any {
	props, ok := schemaDoc["properties"].(map[string]any)
	if !ok {
		return data
	}

	for name, rawPropSchema := range props {
		propSchema, ok := rawPropSchema.(map[string]any)
		if !ok {
			continue
		}

		if _, present := data[name]; !present {
			if def, hasDefault := propSchema["default"]; hasDefault {
				data[name] = def
				continue
			}
		}

		if nested, ok := data[name].(map[string]any); ok {
			data[name] = applyDefaults(propSchema, nested)
		}
	}
	return data
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
