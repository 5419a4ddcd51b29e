package mocks

import (
	"context"

	"github.com/srg/btflow/discovery"
	"github.com/srg/btflow/internal/stream"
	"github.com/stretchr/testify/mock"
)

// MockSearcher is a mock discovery.Searcher.
type MockSearcher struct {
	mock.Mock
}

var _ discovery.Searcher = (*MockSearcher)(nil)

func (m *MockSearcher) Search(ctx context.Context) stream.Stream[discovery.Event] {
	args := m.Called(ctx)
	return args.Get(0).(stream.Stream[discovery.Event])
}

func (m *MockSearcher) Stop() {
	m.Called()
}

// MockPowerCycler is a mock discovery.PowerCycler and pairing power dependency.
type MockPowerCycler struct {
	mock.Mock
}

func (m *MockPowerCycler) Cycle(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
