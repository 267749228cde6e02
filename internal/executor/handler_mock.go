package executor

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockHandler struct {
	mock.Mock
}

func NewMockHandler() *MockHandler {
	return &MockHandler{
		Mock: mock.Mock{},
	}
}

func (m *MockHandler) Handle(ctx context.Context, req Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
