package session

import (
	"context"

	"github.com/stretchr/testify/mock"

	"go-art-session/internal/model"
)

type MockAuthAPI struct {
	mock.Mock
}

func (m *MockAuthAPI) Login(ctx context.Context, req model.LoginRequest) (model.AuthResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.AuthResponse), args.Error(1)
}

func (m *MockAuthAPI) Register(ctx context.Context, req model.RegisterRequest) (model.AuthResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.AuthResponse), args.Error(1)
}

func (m *MockAuthAPI) Refresh(ctx context.Context, refreshToken string) (model.RefreshResult, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(model.RefreshResult), args.Error(1)
}

func (m *MockAuthAPI) Verify(ctx context.Context, accessToken string) (model.UserProfile, error) {
	args := m.Called(ctx, accessToken)
	return args.Get(0).(model.UserProfile), args.Error(1)
}

func (m *MockAuthAPI) Logout(ctx context.Context, accessToken string) error {
	args := m.Called(ctx, accessToken)
	return args.Error(0)
}
