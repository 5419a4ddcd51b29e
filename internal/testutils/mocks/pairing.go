package mocks

import (
	"context"

	"github.com/srg/btflow/internal/stream"
	"github.com/srg/btflow/pairing"
	"github.com/stretchr/testify/mock"
)

// MockPairer is a mock pairing.Pairer.
type MockPairer struct {
	mock.Mock
}

var _ pairing.Pairer = (*MockPairer)(nil)

func (m *MockPairer) Pair(ctx context.Context, address string) stream.Stream[pairing.Event] {
	args := m.Called(ctx, address)
	return args.Get(0).(stream.Stream[pairing.Event])
}

func (m *MockPairer) NotifyTimeout(address string) {
	m.Called(address)
}

func (m *MockPairer) NotifyError(address string) {
	m.Called(address)
}
