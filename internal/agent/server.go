package agent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mochivi/lifecycle-agent/internal/action"
	"github.com/mochivi/lifecycle-agent/internal/apperr"
	"github.com/mochivi/lifecycle-agent/internal/common"
	"github.com/mochivi/lifecycle-agent/internal/component"
	"github.com/mochivi/lifecycle-agent/internal/dispatcher"
	"github.com/mochivi/lifecycle-agent/pkg/agentapi"
	"github.com/mochivi/lifecycle-agent/pkg/logging"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"
)

// AgentServer exposes the dispatcher over gRPC
type AgentServer struct {
	agentapi.UnimplementedAgentServiceServer

	dispatcher dispatcher.ComponentDispatcher
}

func NewAgentServer(d dispatcher.ComponentDispatcher) *AgentServer {
	return &AgentServer{dispatcher: d}
}

func (s *AgentServer) Dispatch(ctx context.Context, pb *structpb.Struct) (*structpb.Struct, error) {
	req, err := common.DispatchRequestFromProto(pb)
	if err != nil {
		return nil, apperr.InvalidArgument("malformed request", err)
	}
	ctx, logger := logging.FromContextWithOperation(ctx, common.OpDispatch,
		slog.String(common.LogComponent, req.Component),
		slog.String(common.LogAction, req.Action))

	res, err := s.dispatcher.Dispatch(ctx, req.Component, req.Action, req.Params)
	if err != nil {
		logger.Warn("Rejected dispatch", slog.String(common.LogError, err.Error()))
		return nil, translateDispatchError(req, err)
	}

	return responseFromResult(res).ToProto(), nil
}

func (s *AgentServer) DispatchBatch(ctx context.Context, pb *structpb.Struct) (*structpb.Struct, error) {
	req, err := common.DispatchBatchRequestFromProto(pb)
	if err != nil {
		return nil, apperr.InvalidArgument("malformed request", err)
	}
	ctx, _ = logging.FromContextWithOperation(ctx, common.OpDispatchBatch, slog.Int("commands", len(req.Commands)))

	commands := make([]dispatcher.Command, 0, len(req.Commands))
	for _, cmd := range req.Commands {
		commands = append(commands, dispatcher.Command{Component: cmd.Component, Action: cmd.Action, Params: cmd.Params})
	}

	results := s.dispatcher.DispatchBatch(ctx, commands)

	resp := common.DispatchBatchResponse{Results: make([]common.BatchItem, 0, len(results))}
	for _, res := range results {
		item := common.BatchItem{Component: res.Command.Component, Action: res.Command.Action}
		if res.Err != nil {
			appErr := translateDispatchError(common.DispatchRequest{Component: res.Command.Component}, res.Err)
			item.ErrorCode = apperr.CodeOf(appErr).String()
			item.Error = appErr.Message
		} else {
			item.Response = responseFromResult(res.Result)
		}
		resp.Results = append(resp.Results, item)
	}

	return resp.ToProto(), nil
}

// ListComponents takes no arguments, the request body is not read.
func (s *AgentServer) ListComponents(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	resp := common.ListComponentsResponse{}
	for _, name := range s.dispatcher.Components() {
		descriptor, err := s.dispatcher.Descriptor(name)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		status, err := s.dispatcher.Status(name)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		resp.Components = append(resp.Components, componentInfo(descriptor, status))
	}

	return resp.ToProto(), nil
}

func translateDispatchError(req common.DispatchRequest, err error) *apperr.AppError {
	switch {
	case errors.Is(err, component.ErrUnknownComponent):
		return apperr.NotFound("component", req.Component, err)
	case errors.Is(err, component.ErrUnsupportedAction):
		return apperr.Wrap(codes.InvalidArgument, err.Error(), err)
	default:
		return apperr.Internal(err)
	}
}

func responseFromResult(res action.Result) common.DispatchResponse {
	return common.DispatchResponse{
		Outcome:    res.Outcome.String(),
		Message:    res.Message,
		DurationMs: res.DurationMs,
		Attempt:    res.Attempt,
	}
}

func componentInfo(descriptor *component.Descriptor, status dispatcher.ComponentStatus) common.ComponentInfo {
	supported := descriptor.SupportedActions()
	actions := make([]string, 0, len(supported))
	for _, kind := range supported {
		actions = append(actions, kind.String())
	}

	info := common.ComponentInfo{
		Name:    descriptor.Name(),
		Kind:    string(descriptor.Executor().Kind),
		State:   status.State.String(),
		Actions: actions,
	}
	if status.HasResult {
		info.LastAction = status.LastAction.String()
		info.LastOutcome = status.LastResult.Outcome.String()
	}
	return info
}
