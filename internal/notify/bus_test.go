package notify_test

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/btflow/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type BusTestSuite struct {
	suite.Suite

	bus *notify.Bus
}

func (s *BusTestSuite) SetupTest() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	s.bus = notify.NewBus(8, logger)
}

func (s *BusTestSuite) TearDownTest() {
	s.bus.Close()
}

func (s *BusTestSuite) receive(sub notify.Subscription) notify.Event {
	select {
	case ev, ok := <-sub.C():
		s.Require().True(ok, "subscription channel MUST be open")
		return ev
	case <-time.After(time.Second):
		s.FailNow("no event delivered")
		return notify.Event{}
	}
}

func (s *BusTestSuite) TestDeliversSubscribedCategoriesInOrder() {
	// GOAL: Verify subscribers receive only their categories, in publish order
	//
	// TEST SCENARIO: Subscribe to found+finished → publish started, found, finished → receive found, finished

	sub, err := s.bus.Subscribe(notify.DeviceFound, notify.DiscoveryFinished)
	s.Require().NoError(err)
	defer sub.Unsubscribe()

	s.bus.Publish(notify.New(notify.DiscoveryStarted))
	s.bus.Publish(notify.New(notify.DeviceFound).With(notify.AttrDevice, "AA"))
	s.bus.Publish(notify.New(notify.DiscoveryFinished))

	first := s.receive(sub)
	second := s.receive(sub)

	s.Equal(notify.DeviceFound, first.Category)
	s.Equal(notify.DiscoveryFinished, second.Category)
	select {
	case ev := <-sub.C():
		s.Failf("unexpected event", "%s", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func (s *BusTestSuite) TestFanOutToAllSubscribers() {
	a, err := s.bus.Subscribe(notify.BondStateChanged)
	s.Require().NoError(err)
	defer a.Unsubscribe()
	b, err := s.bus.Subscribe(notify.BondStateChanged)
	s.Require().NoError(err)
	defer b.Unsubscribe()

	s.bus.Publish(notify.New(notify.BondStateChanged))

	s.Equal(notify.BondStateChanged, s.receive(a).Category)
	s.Equal(notify.BondStateChanged, s.receive(b).Category)
}

func (s *BusTestSuite) TestUnsubscribe_ClosesChannelAndIsIdempotent() {
	sub, err := s.bus.Subscribe(notify.DeviceFound)
	s.Require().NoError(err)

	sub.Unsubscribe()
	s.NotPanics(sub.Unsubscribe)

	s.Eventually(func() bool {
		select {
		case _, ok := <-sub.C():
			return !ok
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func (s *BusTestSuite) TestUnsubscribe_WithFullBuffer() {
	// GOAL: Verify unsubscribing never deadlocks when the subscriber stopped reading
	//
	// TEST SCENARIO: Fill the subscriber buffer and keep a publisher blocked → unsubscribe → publisher unblocks

	sub, err := s.bus.Subscribe(notify.DeviceFound)
	s.Require().NoError(err)

	published := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			s.bus.Publish(notify.New(notify.DeviceFound))
		}
		close(published)
	}()

	time.Sleep(10 * time.Millisecond)
	sub.Unsubscribe()

	select {
	case <-published:
	case <-time.After(time.Second):
		s.FailNow("publisher still blocked after unsubscribe")
	}
}

func (s *BusTestSuite) TestUnsubscribe_WhileCloseWaits() {
	// GOAL: Verify a subscriber can leave while Close waits behind a publisher stuck on that subscriber
	//
	// TEST SCENARIO: Single-slot bus, publisher blocked → Close pending → Unsubscribe → all three return

	bus := notify.NewBus(1, nil)
	sub, err := bus.Subscribe(notify.DeviceFound)
	s.Require().NoError(err)

	published := make(chan struct{})
	go func() {
		for range 5 {
			bus.Publish(notify.New(notify.DeviceFound))
		}
		close(published)
	}()
	time.Sleep(10 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		bus.Close()
		close(closed)
	}()
	time.Sleep(10 * time.Millisecond)

	unsubscribed := make(chan struct{})
	go func() {
		sub.Unsubscribe()
		close(unsubscribed)
	}()

	for name, ch := range map[string]chan struct{}{"publish": published, "close": closed, "unsubscribe": unsubscribed} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			s.FailNowf("deadlock", "%s did not return", name)
		}
	}
}

func (s *BusTestSuite) TestClosedBus() {
	s.bus.Close()

	_, err := s.bus.Subscribe(notify.DeviceFound)
	s.ErrorIs(err, notify.ErrClosed)
	s.NotPanics(func() { s.bus.Publish(notify.New(notify.DeviceFound)) })
	s.NotPanics(s.bus.Close)
}

func TestBusTestSuite(t *testing.T) {
	suite.Run(t, new(BusTestSuite))
}

func TestEvent_Accessors(t *testing.T) {
	ev := notify.New(notify.DeviceFound).
		With(notify.AttrDevice, "11:22:33:AA:BB:CC").
		With(notify.AttrName, "PAX123").
		With(notify.AttrRSSI, int16(-43)).
		With(notify.AttrBondState, 12)

	addr, ok := ev.Device()
	assert.True(t, ok)
	assert.Equal(t, "11:22:33:AA:BB:CC", addr)

	name, ok := ev.Name()
	assert.True(t, ok)
	assert.Equal(t, "PAX123", name)

	rssi, ok := ev.RSSI()
	assert.True(t, ok)
	assert.Equal(t, int16(-43), rssi)

	state, ok := ev.Int(notify.AttrBondState)
	assert.True(t, ok)
	assert.Equal(t, 12, state)

	_, ok = notify.New(notify.DeviceFound).Device()
	assert.False(t, ok, "missing attribute MUST report !ok")

	assert.Equal(t, "device.found bond_state=12 device=11:22:33:AA:BB:CC name=PAX123 rssi=-43", ev.String())
}

func TestEvent_WithDoesNotMutate(t *testing.T) {
	base := notify.New(notify.BondStateChanged).With(notify.AttrDevice, "A")
	derived := base.With(notify.AttrDevice, "B")

	got, _ := base.Device()
	if got != "A" {
		t.Fatalf("base device = %q, want A", got)
	}
	got, _ = derived.Device()
	if got != "B" {
		t.Fatalf("derived device = %q, want B", got)
	}
}
