package apitool

import (
	"sync"
	"time"

	"github.com/codeready-toolchain/mcphub/pkg/config"
)

// rateLimitKey identifies one sliding window: a tool plus an optional
// caller identity: a sliding window keyed on (toolID, clientID).
type rateLimitKey struct {
	toolID   string
	clientID string
}

// window tracks recent call timestamps and violation history for one key.
type window struct {
	mu         sync.Mutex
	calls      []time.Time
	violations []time.Time
}

// RateLimiter enforces the sliding-window policy declared on each API
// tool's security config and raises SUSPICIOUS_ACTIVITY once a client
// crosses the violation threshold within the detection window.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[rateLimitKey]*window
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter using the real wall clock.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{windows: make(map[rateLimitKey]*window), now: time.Now}
}

// Outcome reports the result of a rate-limit check for logging/eventing.
type Outcome struct {
	Allowed           bool
	ViolationCount     int
	SuspiciousActivity bool
}

// Check records a call attempt and reports whether it is within the
// configured limit. A nil cfg means rate limiting is not configured for
// this tool and every call is allowed.
func (r *RateLimiter) Check(toolID, clientID string, cfg *config.RateLimitConfig) Outcome {
	if cfg == nil || cfg.MaxRequests <= 0 {
		return Outcome{Allowed: true}
	}

	w := r.windowFor(toolID, clientID)
	w.mu.Lock()
	defer w.mu.Unlock()

	now := r.now()
	windowStart := now.Add(-time.Duration(cfg.WindowSeconds) * time.Second)
	w.calls = pruneBefore(w.calls, windowStart)

	if len(w.calls) >= cfg.MaxRequests {
		w.violations = append(w.violations, now)

		detectionSecs := cfg.DetectionWindowSecs
		if detectionSecs <= 0 {
			detectionSecs = cfg.WindowSeconds
		}
		detectionStart := now.Add(-time.Duration(detectionSecs) * time.Second)
		w.violations = pruneBefore(w.violations, detectionStart)

		suspicious := cfg.ViolationThreshold > 0 && len(w.violations) >= cfg.ViolationThreshold

		return Outcome{Allowed: false, ViolationCount: len(w.violations), SuspiciousActivity: suspicious}
	}

	w.calls = append(w.calls, now)
	return Outcome{Allowed: true}
}

func (r *RateLimiter) windowFor(toolID, clientID string) *window {
	key := rateLimitKey{toolID: toolID, clientID: clientID}

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[key]
	if !ok {
		w = &window{}
		r.windows[key] = w
	}
	return w
}

func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	out := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}
