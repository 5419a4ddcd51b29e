package radio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/btflow/internal/groutine"
	"github.com/srg/btflow/internal/notify"
	"go.uber.org/atomic"
)

// DefaultSimCycle is how long one simulated discovery cycle stays open.
const DefaultSimCycle = 2 * time.Second

// ErrBondRejected is returned by Sim.InitiateBonding for devices configured with BondReject.
var ErrBondRejected = errors.New("bonding request rejected")

// SimDevice is a nearby device reported by every simulated discovery cycle.
type SimDevice struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name"`
	// RSSI is nil for devices that advertise without a signal reading.
	RSSI *int16 `yaml:"rssi"`
}

// Signal returns a pointer to rssi, for building SimDevice literals.
func Signal(rssi int16) *int16 {
	return &rssi
}

// BondBehavior scripts how a simulated device answers a bonding request.
type BondBehavior int

const (
	// BondAccept reports link-connected, pairing-request, bonding and bonded.
	BondAccept BondBehavior = iota
	// BondReject makes InitiateBonding fail.
	BondReject
	// BondHold reports bonding and then nothing, leaving the attempt to time out.
	BondHold
	// BondDecline reports bonding followed by none.
	BondDecline
	// BondDrop reports bonding followed by link-disconnected.
	BondDrop
)

// Sim is an in-process Controller that reports through a notification publisher.
// Like a platform adapter it reports asynchronously: every notification goes through
// one ordered notify.Outbox, so callers never block on subscriber buffers.
type Sim struct {
	pub    *notify.Outbox
	logger *logrus.Logger

	cycle      time.Duration
	devices    []SimDevice
	duplicates bool

	enabled   atomic.Bool
	bonds     *hashmap.Map[string, BondState]
	behaviors *hashmap.Map[string, BondBehavior]

	startDiscoveryCalls atomic.Int32
	bondingCalls        atomic.Int32
	cancelBondingCalls  atomic.Int32

	mu          sync.Mutex
	stopCycle   context.CancelFunc
	cycleDone   chan struct{}
	discovering bool
}

// SimOption configures a Sim.
type SimOption func(*Sim)

// WithNearby sets the devices reported by discovery cycles, in order.
func WithNearby(devices ...SimDevice) SimOption {
	return func(s *Sim) {
		s.devices = append(s.devices, devices...)
	}
}

// WithCycle sets the length of one discovery cycle.
func WithCycle(d time.Duration) SimOption {
	return func(s *Sim) {
		if d > 0 {
			s.cycle = d
		}
	}
}

// WithDuplicateSightings reports every nearby device twice per cycle.
func WithDuplicateSightings() SimOption {
	return func(s *Sim) {
		s.duplicates = true
	}
}

// WithEnabled sets the initial adapter state.
func WithEnabled(on bool) SimOption {
	return func(s *Sim) {
		s.enabled.Store(on)
	}
}

// WithBonded marks addresses as already bonded.
func WithBonded(addresses ...string) SimOption {
	return func(s *Sim) {
		for _, addr := range addresses {
			s.bonds.Set(addr, BondBonded)
		}
	}
}

// WithBondBehavior scripts the answer of address to a bonding request.
func WithBondBehavior(address string, b BondBehavior) SimOption {
	return func(s *Sim) {
		s.behaviors.Set(address, b)
	}
}

// WithSimLogger sets the simulator logger.
func WithSimLogger(logger *logrus.Logger) SimOption {
	return func(s *Sim) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSim creates a simulated adapter, switched off unless WithEnabled says otherwise.
func NewSim(pub notify.Publisher, opts ...SimOption) *Sim {
	s := &Sim{
		pub:       notify.NewOutbox(pub),
		logger:    logrus.New(),
		cycle:     DefaultSimCycle,
		bonds:     hashmap.New[string, BondState](),
		behaviors: hashmap.New[string, BondBehavior](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sim) IsEnabled() bool {
	return s.enabled.Load()
}

func (s *Sim) Enable() error {
	if !s.enabled.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Debug("Simulated adapter turning on")
	s.publishAdapter(AdapterTurningOn)
	s.publishAdapter(AdapterOn)
	return nil
}

func (s *Sim) Disable() error {
	if !s.enabled.Load() {
		return nil
	}
	s.stopDiscovery(true)

	s.enabled.Store(false)
	s.logger.Debug("Simulated adapter turning off")
	s.publishAdapter(AdapterTurningOff)
	s.publishAdapter(AdapterOff)
	return nil
}

func (s *Sim) StartDiscovery() error {
	s.startDiscoveryCalls.Inc()
	if !s.enabled.Load() {
		return ErrAdapterOff
	}

	// A new request restarts the current cycle.
	s.stopDiscovery(true)

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.stopCycle = cancel
	s.cycleDone = done
	s.discovering = true

	groutine.Go(ctx, "sim-discovery", func(ctx context.Context) {
		defer close(done)
		s.runCycle(ctx)
	})
	return nil
}

func (s *Sim) CancelDiscovery() error {
	s.stopDiscovery(false)
	return nil
}

// stopDiscovery cancels the running cycle. The cycle still reports discovery-finished.
func (s *Sim) stopDiscovery(wait bool) {
	s.mu.Lock()
	cancel, done := s.stopCycle, s.cycleDone
	s.stopCycle, s.cycleDone = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if wait {
		<-done
	}
}

func (s *Sim) runCycle(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.discovering = false
		s.mu.Unlock()
		s.pub.Publish(notify.New(notify.DiscoveryFinished))
	}()

	s.pub.Publish(notify.New(notify.DiscoveryStarted))

	for _, d := range s.devices {
		if ctx.Err() != nil {
			return
		}
		s.publishFound(d)
		if s.duplicates {
			s.publishFound(d)
		}
	}

	select {
	case <-ctx.Done():
	case <-time.After(s.cycle):
	}
}

// Discovering reports whether a discovery cycle is running.
func (s *Sim) Discovering() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discovering
}

func (s *Sim) InitiateBonding(address string) error {
	s.bondingCalls.Inc()
	if !s.enabled.Load() {
		return ErrAdapterOff
	}

	behavior, _ := s.behaviors.Get(address)
	logger := s.logger.WithFields(logrus.Fields{
		"device":   address,
		"behavior": behavior,
	})
	logger.Debug("Simulated bonding requested")

	if behavior == BondReject {
		return fmt.Errorf("%w: %s", ErrBondRejected, address)
	}

	s.publishLink(notify.LinkConnected, address)
	s.publishBond(address, BondBonding)

	switch behavior {
	case BondAccept:
		s.publishLink(notify.PairingRequest, address)
		s.publishBond(address, BondBonded)
	case BondDecline:
		s.publishBond(address, BondNone)
	case BondDrop:
		s.publishLink(notify.LinkDisconnected, address)
	}
	return nil
}

func (s *Sim) CancelBonding(address string) error {
	s.cancelBondingCalls.Inc()
	if state, _ := s.bonds.Get(address); state == BondBonding {
		s.publishBond(address, BondNone)
	}
	return nil
}

func (s *Sim) BondState(address string) BondState {
	if state, ok := s.bonds.Get(address); ok {
		return state
	}
	return BondNone
}

// StartDiscoveryCalls returns how many times StartDiscovery was called.
func (s *Sim) StartDiscoveryCalls() int {
	return int(s.startDiscoveryCalls.Load())
}

// BondingCalls returns how many times InitiateBonding was called.
func (s *Sim) BondingCalls() int {
	return int(s.bondingCalls.Load())
}

// CancelBondingCalls returns how many times CancelBonding was called.
func (s *Sim) CancelBondingCalls() int {
	return int(s.cancelBondingCalls.Load())
}

func (s *Sim) publishAdapter(state AdapterState) {
	s.pub.Publish(notify.New(notify.AdapterStateChanged).With(notify.AttrAdapterState, int(state)))
}

func (s *Sim) publishFound(d SimDevice) {
	ev := notify.New(notify.DeviceFound).With(notify.AttrDevice, d.Address)
	if d.Name != "" {
		ev = ev.With(notify.AttrName, d.Name)
	}
	if d.RSSI != nil {
		ev = ev.With(notify.AttrRSSI, *d.RSSI)
	}
	s.pub.Publish(ev)
}

func (s *Sim) publishBond(address string, state BondState) {
	s.bonds.Set(address, state)
	s.pub.Publish(notify.New(notify.BondStateChanged).
		With(notify.AttrDevice, address).
		With(notify.AttrBondState, int(state)))
}

func (s *Sim) publishLink(category notify.Category, address string) {
	s.pub.Publish(notify.New(category).With(notify.AttrDevice, address))
}

// ParseBondBehavior parses the configuration name of a bond behavior.
func ParseBondBehavior(name string) (BondBehavior, error) {
	switch name {
	case "accept", "":
		return BondAccept, nil
	case "reject":
		return BondReject, nil
	case "hold":
		return BondHold, nil
	case "decline":
		return BondDecline, nil
	case "drop":
		return BondDrop, nil
	default:
		return BondAccept, fmt.Errorf("unknown bond behavior %q", name)
	}
}
