package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mochivi/lifecycle-agent/internal/action"
	"github.com/mochivi/lifecycle-agent/internal/common"
	"github.com/mochivi/lifecycle-agent/pkg/logging"
)

// How long a timed out handler gets to observe cancellation before it is abandoned
const DefaultCancelGrace = 2 * time.Second

type ActionExecutor interface {
	Execute(ctx context.Context, req Request, timeout time.Duration) action.Result
}

// Executor runs a handler under a timeout and turns whatever happens into an action.Result.
// At most one handler run is in flight per Executor: a run abandoned after a timeout blocks the
// next run until it returns or the next run's own deadline expires.
type Executor struct {
	handler     Handler
	cancelGrace time.Duration
	logger      *slog.Logger

	mu     sync.Mutex
	orphan <-chan struct{} // closed when the last abandoned handler returns, nil if none
}

func NewExecutor(handler Handler, cancelGrace time.Duration, logger *slog.Logger) *Executor {
	if cancelGrace <= 0 {
		cancelGrace = DefaultCancelGrace
	}
	return &Executor{
		handler:     handler,
		cancelGrace: cancelGrace,
		logger:      logger,
	}
}

type handlerReturn struct {
	message string
	err     error
}

// Execute never returns an error: every failure mode is reported through the result outcome.
// A timeout <= 0 disables the deadline. A result with Abandoned set means the handler is still
// running in the background and the component's state can not be trusted.
func (e *Executor) Execute(ctx context.Context, req Request, timeout time.Duration) action.Result {
	logger := logging.OperationLogger(e.logger, common.OpExecute,
		slog.String(common.LogComponent, req.Component.Name()),
		slog.String(common.LogAction, req.Action.String()),
		slog.Int(common.LogAttempt, req.Attempt))

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	if e.orphan != nil {
		select {
		case <-e.orphan:
			logger.Info("Previously abandoned handler has returned")
			e.orphan = nil
		case <-runCtx.Done():
			logger.Error("Previously abandoned handler is still running, not starting a new run")
			return action.NewResult(action.TimedOut, "previous run is still in progress", time.Since(start), req.Attempt).AsAbandoned()
		}
	}

	done := make(chan handlerReturn, 1) // buffered so an abandoned handler can still finish
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer func() {
			if r := recover(); r != nil {
				done <- handlerReturn{err: fmt.Errorf("%w: %v", ErrHandlerPanic, r)}
			}
		}()
		message, err := e.handler.Handle(runCtx, req)
		done <- handlerReturn{message: message, err: err}
	}()

	select {
	case ret := <-done:
		elapsed := time.Since(start)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			// The deadline passed before the result was read, the run is over budget whatever it returned
			msg := fmt.Sprintf("timed out after %s", timeout)
			if ret.err != nil {
				msg = fmt.Sprintf("%s: %v", msg, ret.err)
			}
			return action.NewResult(action.TimedOut, msg, elapsed, req.Attempt)
		}
		return resultFor(ret, elapsed, req.Attempt)

	case <-runCtx.Done():
		elapsed := time.Since(start)
		cause := runCtx.Err()
		cancel()

		abandoned := false
		select {
		case <-done:
			logger.Debug("Handler stopped after cancellation")
		case <-time.After(e.cancelGrace):
			// Non-preemptible handler, leave the goroutine behind and hold off the next run until it returns
			logger.Error("Handler did not stop after cancellation, abandoning it", slog.Duration("grace", e.cancelGrace))
			e.orphan = finished
			abandoned = true
		}

		var result action.Result
		if errors.Is(cause, context.DeadlineExceeded) {
			result = action.NewResult(action.TimedOut, fmt.Sprintf("timed out after %s", timeout), elapsed, req.Attempt)
		} else {
			result = action.NewResult(action.Failed, fmt.Sprintf("cancelled: %v", cause), elapsed, req.Attempt)
		}
		if abandoned {
			result = result.AsAbandoned()
		}
		return result
	}
}

func resultFor(ret handlerReturn, elapsed time.Duration, attempt int) action.Result {
	switch {
	case ret.err == nil:
		return action.NewResult(action.Success, ret.message, elapsed, attempt)
	case errors.Is(ret.err, ErrSkipped):
		return action.NewResult(action.Skipped, ret.err.Error(), elapsed, attempt)
	default:
		return action.NewResult(action.Failed, ret.err.Error(), elapsed, attempt)
	}
}
