package apitool

import (
	"net/url"
	"strings"
)

// checkDomainWhitelist enforces the configured domain whitelist: the
// request URL's host must match one of the allowed patterns, where a
// leading "*." matches any subdomain of the remainder.
func checkDomainWhitelist(rawURL string, whitelist []string) error {
	if len(whitelist) == 0 {
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return &McpError{Code: CodeAccessDenied, Message: "cannot parse request URL: " + err.Error()}
	}
	host := strings.ToLower(u.Hostname())

	for _, pattern := range whitelist {
		if hostMatches(host, strings.ToLower(pattern)) {
			return nil
		}
	}
	return &McpError{Code: CodeAccessDenied, Message: "host " + host + " is not in the domain whitelist"}
}

func hostMatches(host, pattern string) bool {
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:] // keep the leading dot
		return strings.HasSuffix(host, suffix) && host != suffix[1:]
	}
	return host == pattern
}
