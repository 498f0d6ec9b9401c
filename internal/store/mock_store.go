package store

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/JakeFAU/parked-domain-tracker/internal/visitor"
)

// MockStore is a testify mock implementation of VisitorStore.
type MockStore struct {
	mock.Mock
}

// InsertVisitor records the call and returns the configured error.
func (m *MockStore) InsertVisitor(ctx context.Context, rec visitor.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0) //nolint:wrapcheck
}

// ListVisitors records the call and returns the configured rows and error.
func (m *MockStore) ListVisitors(ctx context.Context, q Query) ([]Row, error) {
	args := m.Called(ctx, q)
	rows, _ := args.Get(0).([]Row)
	return rows, args.Error(1) //nolint:wrapcheck
}

// Ping records the call and returns the configured error.
func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0) //nolint:wrapcheck
}

// Close records the call and returns the configured error.
func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0) //nolint:wrapcheck
}
