package token

import (
	"context"

	"github.com/stretchr/testify/mock"

	"medrunner-portal/internal/model"
)

type MockExchanger struct {
	mock.Mock
}

func (m *MockExchanger) Exchange(ctx context.Context) (model.TokenResponse, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.TokenResponse), args.Error(1)
}
