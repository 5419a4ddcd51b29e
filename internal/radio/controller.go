// Package radio abstracts the local Bluetooth adapter.
//
// Controller is the capability surface the discovery and pairing engines drive. Every
// state change a Controller causes is reported asynchronously through the notification
// source, never through return values.
package radio

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned when a backend cannot perform an operation.
	ErrUnsupported = errors.New("operation not supported by radio backend")

	// ErrPowerTimeout is returned when the adapter never reports the requested state.
	ErrPowerTimeout = errors.New("adapter did not reach the requested power state")

	// ErrAdapterOff is returned by operations that need an enabled adapter.
	ErrAdapterOff = errors.New("bluetooth adapter is off")
)

// BondState is the bonding state of a remote device.
type BondState int

const (
	BondNone    BondState = 10
	BondBonding BondState = 11
	BondBonded  BondState = 12
)

func (s BondState) String() string {
	switch s {
	case BondNone:
		return "none"
	case BondBonding:
		return "bonding"
	case BondBonded:
		return "bonded"
	default:
		return fmt.Sprintf("BondState(%d)", int(s))
	}
}

// AdapterState is the power state of the local adapter.
type AdapterState int

const (
	AdapterOff        AdapterState = 10
	AdapterTurningOn  AdapterState = 11
	AdapterOn         AdapterState = 12
	AdapterTurningOff AdapterState = 13
)

func (s AdapterState) String() string {
	switch s {
	case AdapterOff:
		return "off"
	case AdapterTurningOn:
		return "turning_on"
	case AdapterOn:
		return "on"
	case AdapterTurningOff:
		return "turning_off"
	default:
		return fmt.Sprintf("AdapterState(%d)", int(s))
	}
}

// Controller drives the local adapter.
type Controller interface {
	IsEnabled() bool
	Enable() error
	Disable() error

	StartDiscovery() error
	CancelDiscovery() error

	// InitiateBonding asks the platform to bond with address. Progress is reported
	// through bond-state-changed notifications.
	InitiateBonding(address string) error
	// CancelBonding aborts an in-flight bonding attempt, dismissing any pairing prompt.
	CancelBonding(address string) error
	BondState(address string) BondState
}
