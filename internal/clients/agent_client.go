package clients

import (
	"context"

	"github.com/mochivi/lifecycle-agent/internal/common"
	"github.com/mochivi/lifecycle-agent/pkg/agentapi"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type IAgentClient interface {
	Dispatch(ctx context.Context, req common.DispatchRequest, opts ...grpc.CallOption) (common.DispatchResponse, error)
	DispatchBatch(ctx context.Context, req common.DispatchBatchRequest, opts ...grpc.CallOption) (common.DispatchBatchResponse, error)
	ListComponents(ctx context.Context, req common.ListComponentsRequest, opts ...grpc.CallOption) (common.ListComponentsResponse, error)
	Address() string
	Close() error
}

// Wrapper over the agentapi.AgentServiceClient interface
type AgentClient struct {
	client  agentapi.AgentServiceClient
	conn    *grpc.ClientConn
	address string
}

func NewAgentClient(address string, opts ...grpc.DialOption) (IAgentClient, error) {
	opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))

	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, err
	}

	return &AgentClient{
		client:  agentapi.NewAgentServiceClient(conn),
		conn:    conn,
		address: address,
	}, nil
}

// Close closes the underlying connection
func (c *AgentClient) Close() error {
	return c.conn.Close()
}

func (c *AgentClient) Address() string {
	return c.address
}

func (c *AgentClient) Dispatch(ctx context.Context, req common.DispatchRequest, opts ...grpc.CallOption) (common.DispatchResponse, error) {
	resp, err := c.client.Dispatch(ctx, req.ToProto(), opts...)
	if err != nil {
		return common.DispatchResponse{}, err
	}
	return common.DispatchResponseFromProto(resp), nil
}

func (c *AgentClient) DispatchBatch(ctx context.Context, req common.DispatchBatchRequest, opts ...grpc.CallOption) (common.DispatchBatchResponse, error) {
	resp, err := c.client.DispatchBatch(ctx, req.ToProto(), opts...)
	if err != nil {
		return common.DispatchBatchResponse{}, err
	}
	return common.DispatchBatchResponseFromProto(resp)
}

func (c *AgentClient) ListComponents(ctx context.Context, req common.ListComponentsRequest, opts ...grpc.CallOption) (common.ListComponentsResponse, error) {
	resp, err := c.client.ListComponents(ctx, req.ToProto(), opts...)
	if err != nil {
		return common.ListComponentsResponse{}, err
	}
	return common.ListComponentsResponseFromProto(resp)
}
