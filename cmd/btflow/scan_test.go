package main

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/srg/btflow/discovery"
	"github.com/srg/btflow/internal/config"
	"github.com/srg/btflow/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type ScanCommandTestSuite struct {
	CommandTestSuite
}

func (s *ScanCommandTestSuite) TestScan_JSON() {
	// GOAL: Verify scan reports every nearby device once, in first-seen order, with its latest data
	//
	// TEST SCENARIO: Simulated adapter cycles through 4 devices for 40 ticks → JSON lists all 4 in order

	out, _, err := s.ExecuteCommand("scan", "--format", "json")
	s.Require().NoError(err)

	testutils.NewJSONAsserter(s.T()).WithOptions(testutils.WithIgnoreExtraKeys(false)).Assert(out, fmt.Sprintf(`[
		{"address": "%s", "name": "PAX-Alpha", "signal": -40},
		{"address": "%s", "name": "MP-Beta",   "signal": -60},
		{"address": "%s", "name": "PAX-Gamma", "signal": -85},
		{"address": "%s", "name": "",          "signal": -99}
	]`, TestDeviceAddress1, TestDeviceAddress2, TestDeviceAddress3, TestDeviceAddress4))
}

func (s *ScanCommandTestSuite) TestScan_Filters() {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name:     "prefix",
			args:     []string{"--prefix", "PAX"},
			expected: fmt.Sprintf(`[{"address": "%s"}, {"address": "%s"}]`, TestDeviceAddress1, TestDeviceAddress3),
		},
		{
			name:     "prefix is case-sensitive",
			args:     []string{"--prefix", "pax"},
			expected: `[]`,
		},
		{
			name:     "signal",
			args:     []string{"--min-signal", "30"},
			expected: fmt.Sprintf(`[{"address": "%s"}, {"address": "%s"}]`, TestDeviceAddress1, TestDeviceAddress2),
		},
		{
			name:     "prefix and signal",
			args:     []string{"--prefix", "PAX", "--min-signal", "30"},
			expected: fmt.Sprintf(`[{"address": "%s"}]`, TestDeviceAddress1),
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			args := append([]string{"scan", "--format", "json"}, tt.args...)

			out, _, err := s.ExecuteCommand(args...)

			s.Require().NoError(err)
			testutils.NewJSONAsserter(s.T()).Assert(out, tt.expected)
		})
	}
}

func (s *ScanCommandTestSuite) TestScan_Table() {
	out, _, err := s.ExecuteCommand("scan", "--prefix", "PAX")
	s.Require().NoError(err)

	row := func(name, address, signal string) string {
		return fmt.Sprintf("%-11s%-19s%s\n", name, address, signal)
	}
	expected := row("NAME", "ADDRESS", "SIGNAL") +
		row("PAX-Alpha", TestDeviceAddress1, "-40 dBm") +
		row("PAX-Gamma", TestDeviceAddress3, "-85 dBm")

	testutils.NewTextAsserter(s.T()).Assert(out, expected)
}

func (s *ScanCommandTestSuite) TestScan_NoDevices() {
	out, _, err := s.ExecuteCommand("scan", "--prefix", "XYZ")

	s.Require().NoError(err)
	testutils.NewTextAsserter(s.T()).Assert(out, "No devices discovered\n")
}

func (s *ScanCommandTestSuite) TestScan_InvalidArguments() {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "format", args: []string{"--format", "xml"}, wantErr: "invalid format 'xml'"},
		{name: "signal", args: []string{"--min-signal", "101"}, wantErr: "discovery.min_signal"},
		{name: "timeout", args: []string{"--timeout", "0"}, wantErr: "discovery.timeout"},
		{name: "backend", args: []string{"--backend", "usb"}, wantErr: "backend must be"},
		{name: "log level", args: []string{"--log-level", "chatty"}, wantErr: "invalid log level"},
		{name: "positional", args: []string{"extra"}, wantErr: "unknown command"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, _, err := s.ExecuteCommand(append([]string{"scan"}, tt.args...)...)

			s.ErrorContains(err, tt.wantErr)
		})
	}
}

func (s *ScanCommandTestSuite) TestCollectDevices_InterruptStopsGracefully() {
	// GOAL: Verify an interrupt stops discovery gracefully and keeps the devices found so far
	//
	// TEST SCENARIO: Discovery with a very long limit → interrupt after the first device → no error, devices kept

	cfg, err := config.Load(s.ConfigPath)
	s.Require().NoError(err)
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	b := newBackend(cfg, logger)
	defer b.Close()

	engine := discovery.NewEngine(b.ctrl, b.power, b.bridge, logger)
	req := discovery.NewRequest(engine, b.timer, logger, discovery.WithTimeout(1_000_000))

	interrupt, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- collectDevices(interrupt, req, func(discovery.Device) { cancel() })
	}()

	select {
	case err := <-done:
		s.Require().NoError(err, "interrupt MUST be a graceful stop")
	case <-time.After(5 * time.Second):
		s.FailNow("discovery did not stop after interrupt")
	}

	s.NotEmpty(req.Devices())
	s.True(engine.Stopping())
	s.Zero(b.timer.Pending(), "discovery timer MUST be cancelled")
}

func TestScanCommandTestSuite(t *testing.T) {
	suite.Run(t, new(ScanCommandTestSuite))
}

func TestTruncateName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "short", input: "PAX-Alpha", want: "PAX-Alpha"},
		{name: "exact width", input: "ABCDEFGHIJKLMNOPQRSTUVWX", want: "ABCDEFGHIJKLMNOPQRSTUVWX"},
		{name: "ascii", input: "ABCDEFGHIJKLMNOPQRSTUVWXYZ", want: "ABCDEFGHIJKLMNOPQRSTU..."},
		{name: "multi-byte", input: "Кофеварка-на-кухне-второй-этаж", want: "Кофеварка-на-кухне-вт..."},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateName(tt.input, maxNameWidth)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got), "truncated name MUST stay valid UTF-8")
		})
	}
}

func TestDisplayDevicesTable_MultiByteName(t *testing.T) {
	var buf bytes.Buffer
	devices := []discovery.Device{{Name: "温度センサー・リビングルーム・北側の窓・二階の奥の部屋", Address: "00:00:00:00:00:01", Signal: 60}}

	assert.NoError(t, displayDevicesTable(&buf, devices))
	assert.True(t, utf8.Valid(buf.Bytes()))
	assert.Contains(t, buf.String(), "温度センサー・リビングルーム・北側の窓・二...")
}
