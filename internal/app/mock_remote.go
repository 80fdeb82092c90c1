package app

import (
	"context"

	"github.com/stretchr/testify/mock"

	"medrunner-portal/internal/model"
)

type MockRemote struct {
	mock.Mock
}

func (m *MockRemote) Exchange(ctx context.Context) (model.TokenResponse, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.TokenResponse), args.Error(1)
}

func (m *MockRemote) SignIn(ctx context.Context, code string) (model.TokenResponse, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(model.TokenResponse), args.Error(1)
}

func (m *MockRemote) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRemote) FetchUser(ctx context.Context) (model.Person, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.Person), args.Error(1)
}

func (m *MockRemote) FetchBlockStatus(ctx context.Context) (model.BlockStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.BlockStatus), args.Error(1)
}

func (m *MockRemote) PublicOrgSettings(ctx context.Context) (model.PublicOrgSettings, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.PublicOrgSettings), args.Error(1)
}

func (m *MockRemote) LinkHandle(ctx context.Context, handle string) error {
	args := m.Called(ctx, handle)
	return args.Error(0)
}

func (m *MockRemote) UpdateSettings(ctx context.Context, blob string) error {
	args := m.Called(ctx, blob)
	return args.Error(0)
}
