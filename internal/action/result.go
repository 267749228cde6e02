package action

import (
	"fmt"
	"strings"
	"time"
)

type Outcome int

const (
	Success Outcome = iota
	Failed
	TimedOut
	Skipped
)

// Exit codes used when an outcome is reported by a one-shot command.
const (
	ExitSuccess  = 0
	ExitFailed   = 1
	ExitTimedOut = 124
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

func ParseOutcome(s string) (Outcome, error) {
	for _, o := range []Outcome{Success, Failed, TimedOut, Skipped} {
		if strings.EqualFold(o.String(), s) {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

// ExitCode maps the outcome to the process exit code of a one-shot invocation.
func (o Outcome) ExitCode() int {
	switch o {
	case Success, Skipped:
		return ExitSuccess
	case TimedOut:
		return ExitTimedOut
	default:
		return ExitFailed
	}
}

// Result is the outcome of one action execution. It is passed by value and never mutated after creation.
type Result struct {
	Outcome    Outcome
	Message    string
	DurationMs int64
	Attempt    int
	// Abandoned is set when the handler was still running after its cancel grace expired.
	// The effect of the action on the component is unknown. Not part of the wire contract.
	Abandoned bool
}

func NewResult(outcome Outcome, message string, duration time.Duration, attempt int) Result {
	ms := duration.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return Result{
		Outcome:    outcome,
		Message:    message,
		DurationMs: ms,
		Attempt:    attempt,
	}
}

func (r Result) Succeeded() bool {
	return r.Outcome == Success || r.Outcome == Skipped
}

// AsAbandoned returns a copy of the result marked as abandoned.
func (r Result) AsAbandoned() Result {
	r.Abandoned = true
	return r
}

// WithAttempt returns a copy of the result stamped with the given attempt number.
func (r Result) WithAttempt(attempt int) Result {
	r.Attempt = attempt
	return r
}

func (r Result) String() string {
	return fmt.Sprintf("%s (attempt %d, %dms): %s", r.Outcome, r.Attempt, r.DurationMs, r.Message)
}
