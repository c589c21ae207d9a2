package testutils

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockMailService struct {
	mock.Mock
}

func (m *MockMailService) SendSecurityNotice(ctx context.Context, to, event string, data map[string]any) error {
	args := m.Called(to, event, data)
	return args.Error(0)
}

type MockEnrollmentChecker struct {
	mock.Mock
}

func (m *MockEnrollmentChecker) IsEnabled(ctx context.Context, userID uint) (bool, error) {
	args := m.Called(userID)
	return args.Bool(0), args.Error(1)
}
