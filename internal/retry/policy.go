package retry

import (
	"time"

	"github.com/mochivi/lifecycle-agent/internal/action"
	"github.com/mochivi/lifecycle-agent/internal/config"
)

// Policy decides whether a failed action is attempted again and how long to wait before it.
type Policy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func NewPolicy(cfg config.RetryConfig) Policy {
	defaults := config.DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = 0
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return Policy{
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
	}
}

func (p Policy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry reports whether another attempt should follow the given one.
// Status results are never retried: hiding a down component behind retries would corrupt monitoring.
func (p Policy) ShouldRetry(kind action.Kind, result action.Result, attempt int) bool {
	if kind == action.Status {
		return false
	}
	if result.Outcome != action.Failed && result.Outcome != action.TimedOut {
		return false
	}
	return attempt < p.maxAttempts
}

// BackoffDelay is the wait after the given failed attempt: base * 2^(attempt-1), capped at the max delay.
func (p Policy) BackoffDelay(attempt int) time.Duration {
	if attempt < 1 || p.baseDelay == 0 {
		return 0
	}
	delay := p.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.maxDelay || delay <= 0 { // also guards against overflow
			return p.maxDelay
		}
	}
	if delay > p.maxDelay {
		return p.maxDelay
	}
	return delay
}
