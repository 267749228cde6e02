package agent

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mochivi/lifecycle-agent/internal/apperr"
	"github.com/mochivi/lifecycle-agent/internal/common"
	"github.com/mochivi/lifecycle-agent/internal/component"
	"github.com/mochivi/lifecycle-agent/internal/config"
	"github.com/mochivi/lifecycle-agent/internal/dispatcher"
	"github.com/mochivi/lifecycle-agent/internal/executor"
	"github.com/mochivi/lifecycle-agent/internal/retry"
	"github.com/mochivi/lifecycle-agent/pkg/logging"
	"github.com/mochivi/lifecycle-agent/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func newBuiltinDispatcher(t *testing.T, overrides map[string]executor.Handler) *dispatcher.Dispatcher {
	t.Helper()
	registry, err := component.BuiltinRegistry()
	require.NoError(t, err)
	handlers, err := executor.BuildHandlers(registry)
	require.NoError(t, err)
	for name, handler := range overrides {
		handlers[name] = handler
	}

	cfg := config.DefaultDispatcherConfig()
	cfg.ActionTimeout = 50 * time.Millisecond
	cfg.CancelGrace = 10 * time.Millisecond
	policy := retry.NewPolicy(config.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	d, err := dispatcher.NewDispatcher(registry, handlers, policy, cfg, logging.NewTestLogger(slog.LevelError, true))
	require.NoError(t, err)
	return d
}

func TestAgentServer_Dispatch(t *testing.T) {
	failing := executor.HandlerFunc(func(ctx context.Context, req executor.Request) (string, error) {
		return "", errors.New("journal quorum lost")
	})
	hanging := executor.HandlerFunc(func(ctx context.Context, req executor.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	d := newBuiltinDispatcher(t, map[string]executor.Handler{"JOURNALNODE": failing, "ZKFC": hanging})

	client, cleanup := testutils.NewTestAgentClientWithServer(t, NewAgentServer(d))
	defer cleanup()

	testCases := []struct {
		name            string
		req             common.DispatchRequest
		expectedCode    codes.Code
		expectedOutcome string
		expectedAttempt int
	}{
		{
			name:            "success",
			req:             common.DispatchRequest{Component: "DATANODE", Action: "Start", Params: map[string]string{"version": "3.3.6"}},
			expectedCode:    codes.OK,
			expectedOutcome: "success",
			expectedAttempt: 1,
		},
		{
			name:            "failed after retries",
			req:             common.DispatchRequest{Component: "JOURNALNODE", Action: "restart"},
			expectedCode:    codes.OK,
			expectedOutcome: "failed",
			expectedAttempt: 2,
		},
		{
			name:            "timed out",
			req:             common.DispatchRequest{Component: "ZKFC", Action: "stop"},
			expectedCode:    codes.OK,
			expectedOutcome: "timed_out",
			expectedAttempt: 2,
		},
		{
			name:         "error: unknown component",
			req:          common.DispatchRequest{Component: "RESOURCEMANAGER", Action: "start"},
			expectedCode: codes.NotFound,
		},
		{
			name:         "error: unparseable action",
			req:          common.DispatchRequest{Component: "DATANODE", Action: "Bogus"},
			expectedCode: codes.InvalidArgument,
		},
		{
			name:         "error: unsupported action",
			req:          common.DispatchRequest{Component: "HDFS_CLIENT", Action: "start"},
			expectedCode: codes.InvalidArgument,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := client.Dispatch(context.Background(), tc.req)
			if tc.expectedCode != codes.OK {
				require.Error(t, err)
				assert.Equal(t, tc.expectedCode, status.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedOutcome, resp.Outcome)
			assert.Equal(t, tc.expectedAttempt, resp.Attempt)
			assert.NotEmpty(t, resp.Message)
		})
	}

	zkfc, err := d.Status("ZKFC")
	require.NoError(t, err)
	assert.Equal(t, dispatcher.StateUnknown, zkfc.State)
}

func TestAgentServer_DispatchBatch(t *testing.T) {
	d := newBuiltinDispatcher(t, nil)
	client, cleanup := testutils.NewTestAgentClientWithServer(t, NewAgentServer(d))
	defer cleanup()

	resp, err := client.DispatchBatch(context.Background(), common.DispatchBatchRequest{Commands: []common.DispatchRequest{
		{Component: "NAMENODE", Action: "stop"},
		{Component: "UNKNOWN", Action: "stop"},
		{Component: "HDFS_CLIENT", Action: "reapply_configs"},
		{Component: "HDFS_CLIENT", Action: "start"},
	}})
	require.NoError(t, err)
	require.Len(t, resp.Results, 4)

	assert.Equal(t, "NAMENODE", resp.Results[0].Component)
	assert.Equal(t, "success", resp.Results[0].Response.Outcome)
	assert.Empty(t, resp.Results[0].Error)

	assert.Equal(t, "UNKNOWN", resp.Results[1].Component)
	assert.Equal(t, codes.NotFound.String(), resp.Results[1].ErrorCode)
	assert.NotEmpty(t, resp.Results[1].Error)

	assert.Equal(t, "success", resp.Results[2].Response.Outcome)
	assert.Equal(t, codes.InvalidArgument.String(), resp.Results[3].ErrorCode)
}

func TestAgentServer_ListComponents(t *testing.T) {
	d := newBuiltinDispatcher(t, nil)
	client, cleanup := testutils.NewTestAgentClientWithServer(t, NewAgentServer(d))
	defer cleanup()

	_, err := client.Dispatch(context.Background(), common.DispatchRequest{Component: "NAMENODE", Action: "install"})
	require.NoError(t, err)

	resp, err := client.ListComponents(context.Background(), common.ListComponentsRequest{})
	require.NoError(t, err)

	byName := make(map[string]common.ComponentInfo, len(resp.Components))
	for _, c := range resp.Components {
		byName[c.Name] = c
	}
	assert.Len(t, byName, len(d.Components()))

	namenode := byName["NAMENODE"]
	assert.Equal(t, "dummy", namenode.Kind)
	assert.Equal(t, "idle", namenode.State)
	assert.Equal(t, "install", namenode.LastAction)
	assert.Equal(t, "success", namenode.LastOutcome)
	assert.Len(t, namenode.Actions, 6)

	hdfsClient := byName["HDFS_CLIENT"]
	assert.Equal(t, []string{"install", "reapply_configs"}, hdfsClient.Actions)
	assert.Empty(t, hdfsClient.LastOutcome)
}

func TestAgentServer_WireParams(t *testing.T) {
	received := make(chan map[string]string, 1)
	recording := executor.HandlerFunc(func(ctx context.Context, req executor.Request) (string, error) {
		received <- req.Params
		return "started", nil
	})
	server := NewAgentServer(newBuiltinDispatcher(t, map[string]executor.Handler{"DATANODE": recording}))

	testCases := []struct {
		name           string
		call           func(context.Context, *structpb.Struct) (*structpb.Struct, error)
		body           map[string]any
		expectedCode   codes.Code
		expectedParams map[string]string
	}{
		{
			name: "success: scalar params are stringified",
			call: server.Dispatch,
			body: map[string]any{
				"component": "DATANODE",
				"action":    "start",
				"params":    map[string]any{"port": 8080, "debug": true},
			},
			expectedCode:   codes.OK,
			expectedParams: map[string]string{"port": "8080", "debug": "true"},
		},
		{
			name: "error: nested param",
			call: server.Dispatch,
			body: map[string]any{
				"component": "DATANODE",
				"action":    "start",
				"params":    map[string]any{"jvm": map[string]any{"heap": "4g"}},
			},
			expectedCode: codes.InvalidArgument,
		},
		{
			name: "error: batch item is not an object",
			call: server.DispatchBatch,
			body: map[string]any{
				"commands": []any{
					map[string]any{"component": "DATANODE", "action": "stop"},
					"NAMENODE stop",
				},
			},
			expectedCode: codes.InvalidArgument,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pb, err := structpb.NewStruct(tc.body)
			require.NoError(t, err)

			resp, err := tc.call(context.Background(), pb)
			if tc.expectedCode != codes.OK {
				require.Error(t, err)
				assert.Equal(t, tc.expectedCode, apperr.CodeOf(err))
				assert.Empty(t, received, "nothing must be dispatched")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "success", resp.GetFields()["outcome"].GetStringValue())
			assert.Equal(t, tc.expectedParams, <-received)
		})
	}
}
