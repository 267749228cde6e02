package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/mochivi/lifecycle-agent/internal/action"
	"github.com/mochivi/lifecycle-agent/internal/common"
	"github.com/mochivi/lifecycle-agent/internal/component"
	"github.com/mochivi/lifecycle-agent/internal/config"
	"github.com/mochivi/lifecycle-agent/internal/executor"
	"github.com/mochivi/lifecycle-agent/internal/retry"
	"github.com/mochivi/lifecycle-agent/pkg/logging"
)

const tracerName = "github.com/mochivi/lifecycle-agent/internal/dispatcher"

// ComponentDispatcher is what the transport layer and controllers depend on.
type ComponentDispatcher interface {
	Dispatch(ctx context.Context, componentName, actionName string, params map[string]string) (action.Result, error)
	DispatchBatch(ctx context.Context, commands []Command) []BatchResult
	Components() []string
	Descriptor(componentName string) (*component.Descriptor, error)
	Status(componentName string) (ComponentStatus, error)
	Snapshot() []ComponentStatus
}

// Dispatcher runs lifecycle actions on registered components.
// Actions on different components run in parallel, actions on the same component are serialized
// in arrival order. The lock of a component is held for the whole retry loop, backoff included.
// An abandoned attempt ends the loop and leaves the component unknown until a Status succeeds.
type Dispatcher struct {
	registry  *component.Registry
	executors map[string]executor.ActionExecutor
	locks     map[string]*semaphore.Weighted // built once, never resized
	policy    retry.Policy
	config    config.DispatcherConfig
	states    *stateTracker
	tracer    trace.Tracer
	logger    *slog.Logger

	sleep func(time.Duration) // for testing
}

// NewDispatcher wires one executor and one lock per registered component.
// Every component must have a handler, a missing one is a startup misconfiguration.
func NewDispatcher(registry *component.Registry, handlers map[string]executor.Handler, policy retry.Policy,
	cfg config.DispatcherConfig, logger *slog.Logger) (*Dispatcher, error) {

	if len(handlers) != registry.Len() {
		return nil, fmt.Errorf("got %d handlers for %d registered components", len(handlers), registry.Len())
	}

	executors := make(map[string]executor.ActionExecutor, registry.Len())
	locks := make(map[string]*semaphore.Weighted, registry.Len())
	for _, name := range registry.Names() {
		handler, ok := handlers[name]
		if !ok || handler == nil {
			return nil, fmt.Errorf("no handler for component %s", name)
		}
		executors[name] = executor.NewExecutor(handler, cfg.CancelGrace, logger)
		locks[name] = semaphore.NewWeighted(1)
	}

	return &Dispatcher{
		registry:  registry,
		executors: executors,
		locks:     locks,
		policy:    policy,
		config:    cfg,
		states:    newStateTracker(registry.Names()),
		tracer:    otel.Tracer(tracerName),
		logger:    logger,
		sleep:     time.Sleep,
	}, nil
}

// Dispatch resolves the component and action, then runs the action to completion, timeout or retry exhaustion.
// The returned error is only ever a caller-input error; execution failures are reported in the result.
// Cancelling ctx does not interrupt a dispatched action.
func (d *Dispatcher) Dispatch(ctx context.Context, componentName, actionName string, params map[string]string) (action.Result, error) {
	descriptor, err := d.registry.Lookup(componentName)
	if err != nil {
		return action.Result{}, err
	}

	kind, err := action.ParseKind(actionName)
	if err != nil {
		return action.Result{}, fmt.Errorf("%w: %v", component.ErrUnsupportedAction, err)
	}
	if !descriptor.Supports(kind) {
		return action.Result{}, fmt.Errorf("%w: %s does not support %s", component.ErrUnsupportedAction, componentName, kind)
	}

	return d.run(context.WithoutCancel(ctx), descriptor, kind, maps.Clone(params)), nil
}

func (d *Dispatcher) run(ctx context.Context, descriptor *component.Descriptor, kind action.Kind, params map[string]string) action.Result {
	name := descriptor.Name()
	dispatchID := uuid.NewString()
	logger := logging.OperationLogger(d.logger, common.OpDispatch,
		slog.String(common.LogComponent, name),
		slog.String(common.LogAction, kind.String()),
		slog.String(common.LogDispatchID, dispatchID))
	ctx = logging.WithLogger(ctx, logger)

	ctx, span := d.tracer.Start(ctx, "dispatch", trace.WithAttributes(
		attribute.String(common.LogComponent, name),
		attribute.String(common.LogAction, kind.String()),
		attribute.String(common.LogDispatchID, dispatchID),
	))
	defer span.End()

	lock := d.locks[name]
	waitStart := time.Now()
	if err := lock.Acquire(ctx, 1); err != nil {
		// ctx is detached from the caller, this only happens if the semaphore itself is misused
		span.SetStatus(otelcodes.Error, err.Error())
		return action.NewResult(action.Failed, fmt.Sprintf("failed to acquire component lock: %v", err), 0, 1)
	}
	defer lock.Release(1)
	if waited := time.Since(waitStart); waited > time.Second {
		logger.Debug("Waited for component lock", slog.Duration("waited", waited))
	}

	d.states.begin(name, kind)
	timeout := d.timeoutFor(kind)
	runner := d.executors[name]

	var result action.Result
	for attempt := 1; ; attempt++ {
		req := executor.Request{
			Component: descriptor,
			Action:    kind,
			Params:    params,
			Attempt:   attempt,
		}

		attemptCtx, attemptSpan := d.tracer.Start(ctx, "attempt", trace.WithAttributes(attribute.Int(common.LogAttempt, attempt)))
		result = runner.Execute(attemptCtx, req, timeout).WithAttempt(attempt)
		attemptSpan.SetAttributes(attribute.String(common.LogOutcome, result.Outcome.String()))
		attemptSpan.End()

		logger.Debug("Action attempt finished",
			slog.Int(common.LogAttempt, attempt),
			slog.String(common.LogOutcome, result.Outcome.String()),
			slog.Int64("duration_ms", result.DurationMs))

		if result.Abandoned {
			// The handler may still be acting on the component, another attempt would overlap with it
			d.states.markUnknown(name)
			logger.Error("Action attempt abandoned, not retrying", slog.Int(common.LogAttempt, attempt))
			break
		}
		if !d.policy.ShouldRetry(kind, result, attempt) {
			break
		}

		delay := d.policy.BackoffDelay(attempt)
		logger.Warn("Action attempt failed, retrying",
			slog.Int(common.LogAttempt, attempt),
			slog.String(common.LogOutcome, result.Outcome.String()),
			slog.String("message", result.Message),
			slog.Duration("backoff", delay))
		d.sleep(delay)
	}

	d.states.finish(name, kind, result)

	span.SetAttributes(
		attribute.String(common.LogOutcome, result.Outcome.String()),
		attribute.Int(common.LogAttempt, result.Attempt),
	)
	if result.Succeeded() {
		logger.Info("Action completed", slog.String(common.LogOutcome, result.Outcome.String()), slog.Int(common.LogAttempt, result.Attempt))
	} else {
		span.SetStatus(otelcodes.Error, result.Message)
		logger.Error("Action failed",
			slog.String(common.LogOutcome, result.Outcome.String()),
			slog.Int(common.LogAttempt, result.Attempt),
			slog.String("message", result.Message))
	}

	return result
}

func (d *Dispatcher) timeoutFor(kind action.Kind) time.Duration {
	if kind == action.Install {
		return d.config.InstallTimeout
	}
	return d.config.ActionTimeout
}

// Components returns the registered component names, sorted.
func (d *Dispatcher) Components() []string {
	return d.registry.Names()
}

func (d *Dispatcher) Descriptor(componentName string) (*component.Descriptor, error) {
	return d.registry.Lookup(componentName)
}

func (d *Dispatcher) Status(componentName string) (ComponentStatus, error) {
	status, ok := d.states.status(componentName)
	if !ok {
		return ComponentStatus{}, fmt.Errorf("%w: %q", component.ErrUnknownComponent, componentName)
	}
	return status, nil
}

func (d *Dispatcher) Snapshot() []ComponentStatus {
	return d.states.snapshot()
}
