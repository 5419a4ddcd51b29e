package main

import (
	"testing"

	"github.com/go-ble/ble"
	"github.com/srg/btflow/internal/radio"
	"github.com/srg/btflow/internal/radio/goble"
	"github.com/srg/btflow/internal/testutils"
	"github.com/srg/btflow/internal/testutils/mocks"
	"github.com/srg/btflow/pairing"
	"github.com/stretchr/testify/suite"
)

type PairCommandTestSuite struct {
	CommandTestSuite
}

func (s *PairCommandTestSuite) TestPair() {
	// GOAL: Verify the pair command reports the outcome of every bonding behavior
	//
	// TEST SCENARIO: Pair each simulated device → accepted and already bonded succeed, silent one times out, declining one is abandoned

	tests := []struct {
		name     string
		address  string
		args     []string
		expected string
		wantErr  error
	}{
		{
			name:     "device accepts",
			address:  TestDeviceAddress1,
			expected: "Paired with " + TestDeviceAddress1 + "\n",
		},
		{
			name:     "device already bonded",
			address:  TestDeviceAddress2,
			expected: "Paired with " + TestDeviceAddress2 + "\n",
		},
		{
			name:     "device stays silent",
			address:  TestDeviceAddress3,
			args:     []string{"--timeout", "5"},
			expected: "Pairing with " + TestDeviceAddress3 + " failed\n",
			wantErr:  pairing.ErrTimeout,
		},
		{
			name:     "device declines",
			address:  TestDeviceAddress4,
			expected: "Pairing with " + TestDeviceAddress4 + " failed\n",
			wantErr:  pairing.ErrAbandoned,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			args := append([]string{"pair", tt.address}, tt.args...)

			out, _, err := s.ExecuteCommand(args...)

			if tt.wantErr != nil {
				s.ErrorIs(err, tt.wantErr)
			} else {
				s.Require().NoError(err)
			}
			testutils.NewTextAsserter(s.T()).Assert(out, tt.expected)
		})
	}
}

func (s *PairCommandTestSuite) TestPair_RequiresAddress() {
	_, _, err := s.ExecuteCommand("pair")

	s.ErrorContains(err, "accepts 1 arg(s)")
}

func (s *PairCommandTestSuite) TestPair_BLEBackendCannotBond() {
	// GOAL: Verify the BLE backend reports bonding as unsupported through a bond initiation error
	//
	// TEST SCENARIO: Mock BLE device factory → pair on ble backend → BondInitiationError wrapping ErrUnsupported

	original := goble.DeviceFactory
	goble.DeviceFactory = func() (ble.Device, error) { return &mocks.MockBLEDevice{}, nil }
	defer func() { goble.DeviceFactory = original }()

	_, _, err := s.ExecuteCommand("pair", TestDeviceAddress1, "--backend", "ble")

	var bondErr *pairing.BondInitiationError
	s.Require().ErrorAs(err, &bondErr)
	s.ErrorIs(bondErr.Err, radio.ErrUnsupported)
	s.Equal("pairing with "+TestDeviceAddress1+" is not supported by this radio backend", FormatUserError(err))
}

func TestPairCommandTestSuite(t *testing.T) {
	suite.Run(t, new(PairCommandTestSuite))
}
