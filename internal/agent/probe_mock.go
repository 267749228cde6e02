package agent

import "github.com/stretchr/testify/mock"

type MockStatusProbeController struct {
	mock.Mock
}

func (m *MockStatusProbeController) Run() error {
	return m.Called().Error(0)
}

func (m *MockStatusProbeController) Cancel(cause ...error) {
	m.Called(cause)
}
