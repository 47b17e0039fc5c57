// Package mocks provides mock implementations of interfaces for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockDispatcher is a mock implementation of dispatch.Dispatcher.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) SendNotification(ctx context.Context, clientID, title, message string) error {
	args := m.Called(ctx, clientID, title, message)

	return args.Error(0)
}

func (m *MockDispatcher) AssignForm(ctx context.Context, clientID, formID, message string) error {
	args := m.Called(ctx, clientID, formID, message)

	return args.Error(0)
}
