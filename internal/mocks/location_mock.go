package mocks

import (
	"context"

	"github.com/benmeehan/geo-reporter/pkg/location"
	"github.com/stretchr/testify/mock"
)

// MockSource is a mock implementation of location.Source
type MockSource struct {
	mock.Mock
}

func (m *MockSource) CheckAvailable() bool {
	args := m.Called()
	return args.Bool(0)
}

// RequestOneShotLocation records the call; tests deliver fixes through
// the callback captured with mock.Run.
func (m *MockSource) RequestOneShotLocation(onResult func(location.Coordinate)) {
	m.Called(onResult)
}

func (m *MockSource) RequestAuthorization(level location.AuthorizationLevel) {
	m.Called(level)
}

// MockProvider is a mock implementation of location.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) GetLocation(ctx context.Context) (location.Coordinate, error) {
	args := m.Called(ctx)
	return args.Get(0).(location.Coordinate), args.Error(1)
}

func (m *MockProvider) Close() error {
	args := m.Called()
	return args.Error(0)
}
