package mocks

import (
	"github.com/srg/btflow/internal/notify"
	"github.com/srg/btflow/internal/radio"
	"github.com/stretchr/testify/mock"
)

// MockController is a mock radio.Controller.
type MockController struct {
	mock.Mock
}

var _ radio.Controller = (*MockController)(nil)

func (m *MockController) IsEnabled() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockController) Enable() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockController) Disable() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockController) StartDiscovery() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockController) CancelDiscovery() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockController) InitiateBonding(address string) error {
	args := m.Called(address)
	return args.Error(0)
}

func (m *MockController) CancelBonding(address string) error {
	args := m.Called(address)
	return args.Error(0)
}

func (m *MockController) BondState(address string) radio.BondState {
	args := m.Called(address)
	return args.Get(0).(radio.BondState)
}

// MockPublisher is a mock notify.Publisher.
type MockPublisher struct {
	mock.Mock
}

var _ notify.Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(ev notify.Event) {
	m.Called(ev)
}
