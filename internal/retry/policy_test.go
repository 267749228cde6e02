package retry

import (
	"testing"
	"time"

	"github.com/mochivi/lifecycle-agent/internal/action"
	"github.com/mochivi/lifecycle-agent/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestPolicy_ShouldRetry(t *testing.T) {
	policy := NewPolicy(config.RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second})

	tests := []struct {
		name     string
		kind     action.Kind
		outcome  action.Outcome
		attempt  int
		expected bool
	}{
		{name: "failed first attempt", kind: action.Start, outcome: action.Failed, attempt: 1, expected: true},
		{name: "timed out second attempt", kind: action.Install, outcome: action.TimedOut, attempt: 2, expected: true},
		{name: "failed at max attempts", kind: action.Start, outcome: action.Failed, attempt: 3, expected: false},
		{name: "failed past max attempts", kind: action.Start, outcome: action.Failed, attempt: 4, expected: false},
		{name: "success", kind: action.Start, outcome: action.Success, attempt: 1, expected: false},
		{name: "skipped", kind: action.Stop, outcome: action.Skipped, attempt: 1, expected: false},
		{name: "status failed", kind: action.Status, outcome: action.Failed, attempt: 1, expected: false},
		{name: "status timed out", kind: action.Status, outcome: action.TimedOut, attempt: 1, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := action.Result{Outcome: tt.outcome, Attempt: tt.attempt}
			assert.Equal(t, tt.expected, policy.ShouldRetry(tt.kind, result, tt.attempt))
		})
	}
}

func TestPolicy_BackoffDelay(t *testing.T) {
	policy := NewPolicy(config.RetryConfig{MaxAttempts: 10, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second})

	assert.Equal(t, time.Duration(0), policy.BackoffDelay(0))
	assert.Equal(t, 100*time.Millisecond, policy.BackoffDelay(1))
	assert.Equal(t, 200*time.Millisecond, policy.BackoffDelay(2))
	assert.Equal(t, 400*time.Millisecond, policy.BackoffDelay(3))
	assert.Equal(t, 800*time.Millisecond, policy.BackoffDelay(4))
	assert.Equal(t, time.Second, policy.BackoffDelay(5))
	assert.Equal(t, time.Second, policy.BackoffDelay(500))
}

func TestNewPolicy_Defaults(t *testing.T) {
	policy := NewPolicy(config.RetryConfig{})
	assert.Equal(t, 3, policy.MaxAttempts())
	assert.Equal(t, time.Duration(0), policy.BackoffDelay(1))

	inverted := NewPolicy(config.RetryConfig{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: time.Millisecond})
	assert.Equal(t, time.Second, inverted.BackoffDelay(3), "max delay below base is raised to base")
}
