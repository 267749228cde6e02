package dispatcher

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mochivi/lifecycle-agent/internal/action"
	"github.com/mochivi/lifecycle-agent/internal/common"
	"github.com/mochivi/lifecycle-agent/pkg/logging"
)

type Command struct {
	Component string
	Action    string
	Params    map[string]string
}

type BatchResult struct {
	Command Command
	Result  action.Result
	Err     error // caller-input error, Result is empty when set
}

// DispatchBatch runs a set of commands, in parallel across components and in list order within a component.
// Results line up with the input slice.
func (d *Dispatcher) DispatchBatch(ctx context.Context, commands []Command) []BatchResult {
	logger := logging.OperationLogger(d.logger, common.OpDispatchBatch, slog.Int("commands", len(commands)))

	// Group command indexes by component so that the order given by the caller is kept per component,
	// regardless of how goroutines get scheduled
	var order []string
	groups := make(map[string][]int)
	for i, cmd := range commands {
		if _, ok := groups[cmd.Component]; !ok {
			order = append(order, cmd.Component)
		}
		groups[cmd.Component] = append(groups[cmd.Component], i)
	}

	results := make([]BatchResult, len(commands))
	var g errgroup.Group
	if d.config.MaxConcurrentDispatches > 0 {
		g.SetLimit(d.config.MaxConcurrentDispatches)
	}

	for _, name := range order {
		indexes := groups[name]
		g.Go(func() error {
			for _, i := range indexes {
				cmd := commands[i]
				res, err := d.Dispatch(ctx, cmd.Component, cmd.Action, cmd.Params)
				results[i] = BatchResult{Command: cmd, Result: res, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors, they are recorded per command

	failed := 0
	for _, res := range results {
		if res.Err != nil || !res.Result.Succeeded() {
			failed++
		}
	}
	logger.Info("Batch completed", slog.Int("failed", failed), slog.Int("components", len(order)))

	return results
}
