package executor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mochivi/lifecycle-agent/internal/action"
	"github.com/mochivi/lifecycle-agent/internal/component"
	"github.com/mochivi/lifecycle-agent/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testDescriptor(t *testing.T, cfg component.DescriptorConfig) *component.Descriptor {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "DATANODE"
	}
	d, err := component.NewDescriptor(cfg)
	require.NoError(t, err)
	return d
}

func TestExecutor_Execute(t *testing.T) {
	logger := logging.NewTestLogger(slog.LevelError, true)
	descriptor := testDescriptor(t, component.DescriptorConfig{})

	tests := []struct {
		name            string
		setupMocks      func(m *MockHandler)
		timeout         time.Duration
		expectedOutcome action.Outcome
		expectedMessage string
	}{
		{
			name: "success",
			setupMocks: func(m *MockHandler) {
				m.On("Handle", mock.Anything, mock.AnythingOfType("executor.Request")).Return("started", nil).Once()
			},
			timeout:         time.Second,
			expectedOutcome: action.Success,
			expectedMessage: "started",
		},
		{
			name: "failed: handler error",
			setupMocks: func(m *MockHandler) {
				m.On("Handle", mock.Anything, mock.Anything).Return("", errors.New("port already in use")).Once()
			},
			timeout:         time.Second,
			expectedOutcome: action.Failed,
			expectedMessage: "port already in use",
		},
		{
			name: "skipped: handler reports skip",
			setupMocks: func(m *MockHandler) {
				m.On("Handle", mock.Anything, mock.Anything).Return("", ErrSkipped).Once()
			},
			timeout:         time.Second,
			expectedOutcome: action.Skipped,
			expectedMessage: ErrSkipped.Error(),
		},
		{
			name: "success: no timeout",
			setupMocks: func(m *MockHandler) {
				m.On("Handle", mock.Anything, mock.Anything).Return("ok", nil).Once()
			},
			timeout:         0,
			expectedOutcome: action.Success,
			expectedMessage: "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewMockHandler()
			tt.setupMocks(handler)
			executor := NewExecutor(handler, 0, logger)

			res := executor.Execute(context.Background(), Request{Component: descriptor, Action: action.Start, Attempt: 2}, tt.timeout)

			assert.Equal(t, tt.expectedOutcome, res.Outcome)
			assert.Contains(t, res.Message, tt.expectedMessage)
			assert.Equal(t, 2, res.Attempt)
			assert.GreaterOrEqual(t, res.DurationMs, int64(0))
			handler.AssertExpectations(t)
		})
	}
}

func TestExecutor_Timeout(t *testing.T) {
	logger := logging.NewTestLogger(slog.LevelError, true)
	descriptor := testDescriptor(t, component.DescriptorConfig{})

	t.Run("cooperative handler is cancelled", func(t *testing.T) {
		stopped := make(chan struct{})
		handler := HandlerFunc(func(ctx context.Context, req Request) (string, error) {
			defer close(stopped)
			<-ctx.Done()
			return "", ctx.Err()
		})

		res := NewExecutor(handler, time.Second, logger).Execute(context.Background(), Request{Component: descriptor, Action: action.Start, Attempt: 1}, 50*time.Millisecond)

		assert.Equal(t, action.TimedOut, res.Outcome)
		assert.GreaterOrEqual(t, res.DurationMs, int64(50))
		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("handler was not cancelled")
		}
	})

	t.Run("non-preemptible handler is abandoned", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		handler := HandlerFunc(func(ctx context.Context, req Request) (string, error) {
			<-release // ignores ctx
			return "late", nil
		})

		start := time.Now()
		res := NewExecutor(handler, 20*time.Millisecond, logger).Execute(context.Background(), Request{Component: descriptor, Action: action.Stop, Attempt: 1}, 30*time.Millisecond)

		assert.Equal(t, action.TimedOut, res.Outcome)
		assert.True(t, res.Abandoned)
		assert.Less(t, time.Since(start), time.Second, "executor must not wait for an abandoned handler")
	})

	t.Run("handler returning nil after its deadline is timed out", func(t *testing.T) {
		handler := HandlerFunc(func(ctx context.Context, req Request) (string, error) {
			<-ctx.Done()
			return "finished anyway", nil
		})
		executor := NewExecutor(handler, time.Second, logger)

		// Either select branch may win the race, both must report a timeout
		for i := 0; i < 20; i++ {
			res := executor.Execute(context.Background(), Request{Component: descriptor, Action: action.Start, Attempt: 1}, time.Millisecond)
			require.Equal(t, action.TimedOut, res.Outcome, "run %d: %s", i, res)
			require.False(t, res.Abandoned)
		}
	})
}

func TestExecutor_AbandonedHandlerBlocksNextRun(t *testing.T) {
	logger := logging.NewTestLogger(slog.LevelError, true)
	descriptor := testDescriptor(t, component.DescriptorConfig{})

	var (
		mu          sync.Mutex
		inFlight    int
		maxInFlight int
		calls       int
	)
	release := make(chan struct{})
	handler := HandlerFunc(func(ctx context.Context, req Request) (string, error) {
		mu.Lock()
		calls++
		first := calls == 1
		inFlight++
		maxInFlight = max(maxInFlight, inFlight)
		mu.Unlock()
		defer func() {
			mu.Lock()
			inFlight--
			mu.Unlock()
		}()

		if first {
			<-release // ignores ctx
		}
		return "ok", nil
	})
	executor := NewExecutor(handler, 10*time.Millisecond, logger)
	req := Request{Component: descriptor, Action: action.Start, Attempt: 1}

	res := executor.Execute(context.Background(), req, 20*time.Millisecond)
	require.True(t, res.Abandoned)

	// Still stuck: the next run gives up at its own deadline without calling the handler
	res = executor.Execute(context.Background(), req, 20*time.Millisecond)
	assert.Equal(t, action.TimedOut, res.Outcome)
	assert.True(t, res.Abandoned)

	close(release)
	res = executor.Execute(context.Background(), req, time.Second)
	assert.Equal(t, action.Success, res.Outcome)
	assert.False(t, res.Abandoned)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, maxInFlight)
}

func TestExecutor_RecoversPanic(t *testing.T) {
	logger := logging.NewTestLogger(slog.LevelError, true)
	handler := HandlerFunc(func(ctx context.Context, req Request) (string, error) {
		panic("nil map write")
	})

	res := NewExecutor(handler, 0, logger).Execute(context.Background(), Request{Component: testDescriptor(t, component.DescriptorConfig{}), Action: action.Install, Attempt: 1}, time.Second)

	assert.Equal(t, action.Failed, res.Outcome)
	assert.Contains(t, res.Message, "nil map write")
}

func TestExecutor_ParentCancelled(t *testing.T) {
	logger := logging.NewTestLogger(slog.LevelError, true)
	handler := HandlerFunc(func(ctx context.Context, req Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res := NewExecutor(handler, 0, logger).Execute(ctx, Request{Component: testDescriptor(t, component.DescriptorConfig{}), Action: action.Start, Attempt: 1}, time.Minute)
	assert.Equal(t, action.Failed, res.Outcome)
}

func TestDummyHandler(t *testing.T) {
	logger := logging.NewTestLogger(slog.LevelError, true)
	descriptor := testDescriptor(t, component.DescriptorConfig{})
	executor := NewExecutor(DummyHandler{}, 0, logger)

	for _, kind := range action.All {
		res := executor.Execute(context.Background(), Request{Component: descriptor, Action: kind, Attempt: 1}, time.Second)
		assert.Equal(t, action.Success, res.Outcome, kind.String())
		assert.LessOrEqual(t, res.DurationMs, int64(5), kind.String())
	}
}

func TestNewHandler(t *testing.T) {
	dummy := testDescriptor(t, component.DescriptorConfig{})
	handler, err := NewHandler(dummy)
	require.NoError(t, err)
	assert.IsType(t, DummyHandler{}, handler)

	script := testDescriptor(t, component.DescriptorConfig{Executor: component.ExecutorConfig{Kind: component.ExecutorScript}})
	handler, err = NewHandler(script)
	require.NoError(t, err)
	assert.IsType(t, &ScriptHandler{}, handler)

	registry, err := component.BuiltinRegistry()
	require.NoError(t, err)
	handlers, err := BuildHandlers(registry)
	require.NoError(t, err)
	assert.Len(t, handlers, registry.Len())
}
