package clients

import (
	"context"

	"github.com/mochivi/lifecycle-agent/internal/common"
	"github.com/stretchr/testify/mock"
	"google.golang.org/grpc"
)

type MockAgentClient struct {
	mock.Mock
	address string
}

func NewMockAgentClient(address string) *MockAgentClient {
	return &MockAgentClient{
		Mock:    mock.Mock{},
		address: address,
	}
}

func (m *MockAgentClient) Address() string {
	return m.address
}

func (m *MockAgentClient) Close() error {
	return m.Called().Error(0)
}

func (m *MockAgentClient) Dispatch(ctx context.Context, req common.DispatchRequest, opts ...grpc.CallOption) (common.DispatchResponse, error) {
	args := m.Called(ctx, req, opts)
	return args.Get(0).(common.DispatchResponse), args.Error(1)
}

func (m *MockAgentClient) DispatchBatch(ctx context.Context, req common.DispatchBatchRequest, opts ...grpc.CallOption) (common.DispatchBatchResponse, error) {
	args := m.Called(ctx, req, opts)
	return args.Get(0).(common.DispatchBatchResponse), args.Error(1)
}

func (m *MockAgentClient) ListComponents(ctx context.Context, req common.ListComponentsRequest, opts ...grpc.CallOption) (common.ListComponentsResponse, error) {
	args := m.Called(ctx, req, opts)
	return args.Get(0).(common.ListComponentsResponse), args.Error(1)
}
