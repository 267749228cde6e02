package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mochivi/lifecycle-agent/internal/action"
	"github.com/mochivi/lifecycle-agent/internal/common"
	"github.com/mochivi/lifecycle-agent/internal/config"
	"github.com/mochivi/lifecycle-agent/internal/dispatcher"
	"github.com/mochivi/lifecycle-agent/pkg/logging"
)

type StatusProber interface {
	Run() error
	Cancel(cause ...error)
}

type probeFunc func(ctx context.Context) []dispatcher.BatchResult

// StatusProbeController periodically dispatches Status to every component that supports it,
// which is what brings a component out of the unknown state without an operator.
type StatusProbeController struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	config     config.StatusProbeConfig
	dispatcher dispatcher.ComponentDispatcher
	logger     *slog.Logger

	probeFunc probeFunc // for testing
}

func NewStatusProbeController(ctx context.Context, cfg config.StatusProbeConfig, d dispatcher.ComponentDispatcher, logger *slog.Logger) *StatusProbeController {
	ctx, cancel := context.WithCancelCause(ctx)

	controller := &StatusProbeController{
		ctx:        ctx,
		cancel:     cancel,
		config:     cfg,
		dispatcher: d,
		logger:     logging.OperationLogger(logger, common.OpStatusProbe),
	}
	controller.probeFunc = controller.probe
	return controller
}

// Run blocks until the controller is cancelled. A zero interval disables probing.
func (p *StatusProbeController) Run() error {
	if p.config.Interval <= 0 {
		p.logger.Info("Status probing disabled")
		return nil
	}

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return p.ctx.Err()
		case <-ticker.C:
		}

		results := p.probeFunc(p.ctx)
		failed := 0
		for _, res := range results {
			if res.Err != nil || !res.Result.Succeeded() {
				failed++
			}
		}
		if failed > 0 {
			p.logger.Warn("Status probe found unhealthy components", slog.Int("failed", failed), slog.Int("probed", len(results)))
		} else {
			p.logger.Debug("Status probe completed", slog.Int("probed", len(results)))
		}
	}
}

func (p *StatusProbeController) probe(ctx context.Context) []dispatcher.BatchResult {
	var commands []dispatcher.Command
	for _, name := range p.dispatcher.Components() {
		descriptor, err := p.dispatcher.Descriptor(name)
		if err != nil || !descriptor.Supports(action.Status) {
			continue
		}
		commands = append(commands, dispatcher.Command{Component: name, Action: action.Status.String()})
	}
	if len(commands) == 0 {
		return nil
	}
	return p.dispatcher.DispatchBatch(ctx, commands)
}

// Cancel cancels the probe context
func (p *StatusProbeController) Cancel(cause ...error) {
	if p.ctx.Err() != nil {
		return
	}

	if len(cause) == 0 {
		p.cancel(context.Canceled)
		return
	}

	p.cancel(errors.Join(cause...))
}
