package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/mochivi/lifecycle-agent/internal/action"
	"github.com/mochivi/lifecycle-agent/internal/component"
)

var (
	// Handlers return an error wrapping ErrSkipped when the action does not apply to the component
	ErrSkipped             = errors.New("action skipped")
	ErrHandlerPanic        = errors.New("action handler panicked")
	ErrUnknownExecutorKind = errors.New("unknown executor kind")
)

// Request is one attempt at running an action on a component.
// The descriptor is borrowed from the registry, requests never own it.
type Request struct {
	Component *component.Descriptor
	Action    action.Kind
	Params    map[string]string
	Attempt   int
}

// Handler is the per component kind behaviour behind an action.
// It returns a human readable message on success.
type Handler interface {
	Handle(ctx context.Context, req Request) (string, error)
}

type HandlerFunc func(ctx context.Context, req Request) (string, error)

func (f HandlerFunc) Handle(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// NewHandler picks the handler variant declared by the descriptor.
func NewHandler(d *component.Descriptor) (Handler, error) {
	switch kind := d.Executor().Kind; kind {
	case component.ExecutorDummy:
		return DummyHandler{}, nil
	case component.ExecutorScript:
		return NewScriptHandler(d), nil
	default:
		return nil, fmt.Errorf("%w %q for component %s", ErrUnknownExecutorKind, kind, d.Name())
	}
}

// BuildHandlers creates one handler per registered component, keyed by component name.
func BuildHandlers(registry *component.Registry) (map[string]Handler, error) {
	handlers := make(map[string]Handler, registry.Len())
	for _, d := range registry.Descriptors() {
		handler, err := NewHandler(d)
		if err != nil {
			return nil, err
		}
		handlers[d.Name()] = handler
	}
	return handlers, nil
}
