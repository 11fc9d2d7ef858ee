package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockKVStore is a mock implementation of storage.KVStore.
type MockKVStore struct {
	mock.Mock
}

//nolint:revive
func (m *MockKVStore) Get(ctx context.Context, key, def string) (string, error) {
	args := m.Called(ctx, key, def)
	return args.String(0), args.Error(1)
}

//nolint:revive
func (m *MockKVStore) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}
