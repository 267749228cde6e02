package executor

import (
	"context"
	"fmt"
)

// DummyHandler completes every action immediately without touching the system.
// It is used to simulate orchestration load without paying for real services.
type DummyHandler struct{}

func (DummyHandler) Handle(ctx context.Context, req Request) (string, error) {
	return fmt.Sprintf("dummy %s of %s completed", req.Action, req.Component.Name()), nil
}
