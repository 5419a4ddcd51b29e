package main

import (
	"errors"
	"fmt"

	"github.com/srg/btflow/internal/radio"
	"github.com/srg/btflow/pairing"
)

// FormatUserError turns known failures into messages that tell the user what to do.
// Unknown errors are returned as they are.
func FormatUserError(err error) string {
	var bondErr *pairing.BondInitiationError

	switch {
	case errors.As(err, &bondErr):
		if errors.Is(bondErr.Err, radio.ErrUnsupported) {
			return fmt.Sprintf("pairing with %s is not supported by this radio backend", bondErr.Address)
		}
		return fmt.Sprintf("could not start pairing with %s: %v", bondErr.Address, bondErr.Err)
	case errors.Is(err, pairing.ErrTimeout):
		return "pairing timed out: the device stopped responding (is it in pairing mode?)"
	case errors.Is(err, pairing.ErrAbandoned):
		return "pairing abandoned: the device disconnected or declined the request"
	case errors.Is(err, pairing.ErrNotPaired):
		return "pairing finished without bonding the device"
	case errors.Is(err, radio.ErrPowerTimeout):
		return fmt.Sprintf("Bluetooth adapter did not respond: %v", err)
	case errors.Is(err, radio.ErrAdapterOff):
		return "Bluetooth adapter is off: turn Bluetooth on and try again"
	case errors.Is(err, radio.ErrUnsupported):
		return "operation not supported by this radio backend"
	default:
		return err.Error()
	}
}
