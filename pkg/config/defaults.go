package config

import "dario.cat/mergo"

// defaultRateLimit carries the built-in numbers the suspicious-activity
// detector needs when an operator sets maxRequests/windowSeconds in
// api-tools.json but leaves the violation-tracking fields unset. Mirrors
// the teacher's own mergo-based "defaults merged under a partial
// operator config" pattern from its own config loader.
var defaultRateLimit = RateLimitConfig{
	ViolationThreshold:  3,
	DetectionWindowSecs: 300,
}

// applyRateLimitDefaults merges defaultRateLimit into cfg's zero-valued
// fields. mergo.Merge only fills fields still at their zero value, so an
// operator-supplied ViolationThreshold or DetectionWindowSeconds is never
// overwritten.
func applyRateLimitDefaults(cfg *RateLimitConfig) error {
	return mergo.Merge(cfg, defaultRateLimit)
}
