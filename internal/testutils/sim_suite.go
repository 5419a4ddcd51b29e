package testutils

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/btflow/bridge"
	"github.com/srg/btflow/internal/notify"
	"github.com/srg/btflow/internal/radio"
	"github.com/srg/btflow/internal/timer"
	"github.com/stretchr/testify/suite"
)

const (
	// SimTick is the timer granularity used by SimSuite: one counted "second" per millisecond.
	SimTick = time.Millisecond

	// SimCycle is the discovery cycle length of simulators created by SimSuite.
	SimCycle = 5 * time.Millisecond

	// SimPowerTimeout bounds adapter transitions in SimSuite.
	SimPowerTimeout = time.Second
)

// SimSuite wires a notification bus, a fast timer supervisor and a simulated adapter
// for engine and request tests.
//
// Usage:
//
//	type PairSuite struct {
//	    testutils.SimSuite
//	}
//
//	func (s *PairSuite) TestPair() {
//	    sim := s.NewSim(radio.WithBondBehavior("AA", radio.BondAccept))
//	    engine := pairing.NewEngine(sim, s.Power, s.Bridge, s.Bus, s.Logger)
//	    // ...
//	}
type SimSuite struct {
	suite.Suite

	Logger *logrus.Logger
	Bus    *notify.Bus
	Bridge *bridge.Bridge
	Timer  *timer.Supervisor

	// Sim and Power are set by NewSim.
	Sim   *radio.Sim
	Power *radio.Power
}

// SetupTest creates fresh infrastructure for every test.
func (s *SimSuite) SetupTest() {
	s.Logger = logrus.New()
	s.Logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow

	s.Bus = notify.NewBus(notify.DefaultCapacity, s.Logger)
	s.Bridge = bridge.New(s.Bus, s.Logger)
	s.Timer = timer.NewSupervisor(timer.WithTick(SimTick), timer.WithLogger(s.Logger))
	s.Sim = nil
	s.Power = nil
}

// TearDownTest stops pending countdowns and closes the bus.
func (s *SimSuite) TearDownTest() {
	if s.Timer != nil {
		s.Timer.Close()
	}
	if s.Bus != nil {
		s.Bus.Close()
	}
}

// NewSim creates a simulated adapter on the suite bus, plus the matching Power helper.
func (s *SimSuite) NewSim(opts ...radio.SimOption) *radio.Sim {
	base := []radio.SimOption{
		radio.WithSimLogger(s.Logger),
		radio.WithCycle(SimCycle),
	}
	s.Sim = radio.NewSim(s.Bus, append(base, opts...)...)
	s.Power = radio.NewPower(s.Sim, s.Bridge, SimPowerTimeout, s.Logger)
	return s.Sim
}
