package notify

import "github.com/stretchr/testify/mock"

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(n Notification) error {
	args := m.Called(n)
	return args.Error(0)
}

func (m *MockSender) PlaySound() error {
	args := m.Called()
	return args.Error(0)
}
