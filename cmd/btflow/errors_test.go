package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/srg/btflow/internal/radio"
	"github.com/srg/btflow/pairing"
	"github.com/stretchr/testify/assert"
)

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "bond initiation rejected",
			err:      &pairing.BondInitiationError{Address: "AA", Err: radio.ErrBondRejected},
			expected: "could not start pairing with AA: bonding request rejected",
		},
		{
			name:     "bonding unsupported",
			err:      &pairing.BondInitiationError{Address: "AA", Err: radio.ErrUnsupported},
			expected: "pairing with AA is not supported by this radio backend",
		},
		{
			name:     "timeout",
			err:      pairing.ErrTimeout,
			expected: "pairing timed out: the device stopped responding (is it in pairing mode?)",
		},
		{
			name:     "abandoned",
			err:      fmt.Errorf("pair: %w", pairing.ErrAbandoned),
			expected: "pairing abandoned: the device disconnected or declined the request",
		},
		{
			name:     "not paired",
			err:      pairing.ErrNotPaired,
			expected: "pairing finished without bonding the device",
		},
		{
			name:     "adapter off",
			err:      fmt.Errorf("enable: %w", radio.ErrAdapterOff),
			expected: "Bluetooth adapter is off: turn Bluetooth on and try again",
		},
		{
			name:     "unknown error",
			err:      errors.New("boom"),
			expected: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatUserError(tt.err))
		})
	}
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}
