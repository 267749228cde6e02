package testutils

import (
	"context"
	"log/slog"
	"net"
	"testing"

	"github.com/mochivi/lifecycle-agent/internal/clients"
	"github.com/mochivi/lifecycle-agent/internal/grpcutil"
	"github.com/mochivi/lifecycle-agent/pkg/agentapi"
	"github.com/mochivi/lifecycle-agent/pkg/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

// NewTestAgentClientWithServer serves the given implementation on an in-memory listener, behind the same
// interceptor chain as the agent binary, and returns a client for it and a cleanup function.
func NewTestAgentClientWithServer(t *testing.T, server agentapi.AgentServiceServer) (clients.IAgentClient, func()) {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	logger := logging.NewTestLogger(slog.LevelError, true)

	grpcServer := grpc.NewServer(grpcutil.ServerOptions(logger)...)
	agentapi.RegisterAgentServiceServer(grpcServer, server)

	go func() {
		_ = grpcServer.Serve(lis)
	}()

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}
	agentClient, err := clients.NewAgentClient("passthrough:///bufnet", grpc.WithContextDialer(dialer))
	if err != nil {
		t.Fatalf("failed to create agent client: %v", err)
	}

	return agentClient, func() {
		agentClient.Close()
		grpcServer.GracefulStop()
		_ = lis.Close()
	}
}
