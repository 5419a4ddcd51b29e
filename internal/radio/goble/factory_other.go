//go:build !darwin && !linux

package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/btflow/internal/radio"
)

func newDevice() (ble.Device, error) {
	return nil, radio.ErrUnsupported
}
