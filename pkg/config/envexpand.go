package config

import (
	"regexp"
)

// envPlaceholder matches `{{env.NAME}}` references used throughout
// server/group/api-tool configuration values.
var envPlaceholder = regexp.MustCompile(`\{\{\s*env\.([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// EnvLookupFunc resolves an environment variable name to its value and
// whether it is set. Tests substitute a fake to avoid touching the real
// process environment.
type EnvLookupFunc func(name string) (string, bool)

// ExpandEnvString substitutes every `{{env.NAME}}` placeholder in s using
// lookup. A variable that lookup reports as unset leaves its placeholder
// untouched in the result and is appended to missing: missing variables
// are never silently dropped to empty string.
func ExpandEnvString(s string, lookup EnvLookupFunc) (result string, missing []string) {
	seen := make(map[string]bool)
	result = envPlaceholder.ReplaceAllStringFunc(s, func(match string) string {
		sub := envPlaceholder.FindStringSubmatch(match)
		name := sub[1]
		if value, ok := lookup(name); ok {
			return value
		}
		if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
		return match
	})
	return result, missing
}

// ExpandEnvStringMap applies ExpandEnvString to every value in m in place
// and returns the union of all missing variable names encountered.
func ExpandEnvStringMap(m map[string]string, lookup EnvLookupFunc) []string {
	var allMissing []string
	for k, v := range m {
		expanded, missing := ExpandEnvString(v, lookup)
		m[k] = expanded
		allMissing = append(allMissing, missing...)
	}
	return allMissing
}

// HasEnvPlaceholder reports whether s contains at least one `{{env.NAME}}`
// reference, used by the config validator to flag fields that still need
// expansion after a lookup pass left some unresolved.
func HasEnvPlaceholder(s string) bool {
	return envPlaceholder.MatchString(s)
}
