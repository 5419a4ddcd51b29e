package mocks

import (
	"github.com/srg/btflow/internal/timer"
	"github.com/stretchr/testify/mock"
)

// MockHandle is a mock timer.Handle.
type MockHandle struct {
	mock.Mock
}

var _ timer.Handle = (*MockHandle)(nil)

func (m *MockHandle) Reset() {
	m.Called()
}

func (m *MockHandle) Extend(seconds int) {
	m.Called(seconds)
}

// MockTimer mocks the countdown surface of timer.Supervisor. Listeners passed to
// CountFor are kept so tests can fire them with Fire.
type MockTimer struct {
	mock.Mock

	listeners []timer.Listener
}

func (m *MockTimer) CountFor(seconds int, listener timer.Listener) timer.Handle {
	m.listeners = append(m.listeners, listener)
	args := m.Called(seconds, listener)
	if v := args.Get(0); v != nil {
		return v.(timer.Handle)
	}
	return nil
}

func (m *MockTimer) Cancel(h timer.Handle) {
	m.Called(h)
}

// Fire invokes the listener of the i-th CountFor call.
func (m *MockTimer) Fire(i int) {
	m.listeners[i]()
}
