package main

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/stretchr/testify/suite"
)

// Test device addresses for consistent simulated device identification
const (
	TestDeviceAddress1 = "00:00:00:00:00:01"
	TestDeviceAddress2 = "00:00:00:00:00:02"
	TestDeviceAddress3 = "00:00:00:00:00:03"
	TestDeviceAddress4 = "00:00:00:00:00:04"
)

// testConfig runs every flow on the simulated backend with millisecond ticks.
const testConfig = `
log_level: error
backend: sim
timer_tick: 1ms
power_timeout: 1s
discovery:
  timeout: 40
pairing:
  timeout: 20
sim:
  cycle: 5ms
  devices:
    - {address: "00:00:00:00:00:01", name: PAX-Alpha, rssi: -40}
    - {address: "00:00:00:00:00:02", name: MP-Beta, rssi: -60}
    - {address: "00:00:00:00:00:03", name: PAX-Gamma, rssi: -85}
    - {address: "00:00:00:00:00:04"}
  bonded: ["00:00:00:00:00:02"]
  behaviors:
    "00:00:00:00:00:03": hold
    "00:00:00:00:00:04": decline
`

// CommandTestSuite provides a simulated-backend config file and command execution helpers.
// All cmd/btflow test suites should embed it.
type CommandTestSuite struct {
	suite.Suite

	ConfigPath string
}

func (s *CommandTestSuite) SetupSuite() {
	color.NoColor = true
}

func (s *CommandTestSuite) SetupTest() {
	s.ConfigPath = s.WriteConfig(testConfig)
}

// WriteConfig stores content as a config file in a per-test directory.
func (s *CommandTestSuite) WriteConfig(content string) string {
	path := filepath.Join(s.T().TempDir(), "config.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600), "config MUST be written")
	return path
}

// ExecuteCommand runs a fresh btflow command tree with args and the suite config.
// It returns stdout and stderr separately.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, string, error) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	cmd := newRootCmd()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append(args, "--config", s.ConfigPath))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
