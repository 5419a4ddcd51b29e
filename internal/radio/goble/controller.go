// Package goble is a radio.Controller backed by github.com/go-ble/ble.
//
// go-ble exposes scanning but no bonding API, so this backend supports discovery only:
// bonding operations report radio.ErrUnsupported. The adapter is "enabled" while a
// ble.Device is open.
package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/btflow/internal/groutine"
	"github.com/srg/btflow/internal/notify"
	"github.com/srg/btflow/internal/radio"
)

// DefaultScanWindow is how long a single discovery cycle scans.
const DefaultScanWindow = 10 * time.Second

// DeviceFactory creates ble.Device instances (can be overridden in tests)
var DeviceFactory = newDevice

// Controller drives a go-ble device.
type Controller struct {
	pub    *notify.Outbox
	logger *logrus.Logger
	window time.Duration

	mu       sync.Mutex
	dev      ble.Device
	stopScan context.CancelFunc
	scanDone chan struct{}
}

// NewController creates a controller. A non-positive window selects DefaultScanWindow.
func NewController(pub notify.Publisher, window time.Duration, logger *logrus.Logger) *Controller {
	if window <= 0 {
		window = DefaultScanWindow
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Controller{pub: notify.NewOutbox(pub), logger: logger, window: window}
}

func (c *Controller) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dev != nil
}

func (c *Controller) Enable() error {
	c.mu.Lock()
	if c.dev != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.publishAdapter(radio.AdapterTurningOn)
	dev, err := DeviceFactory()
	if err != nil {
		c.publishAdapter(radio.AdapterOff)
		return fmt.Errorf("failed to open BLE device: %w", NormalizeError(err))
	}

	c.mu.Lock()
	c.dev = dev
	c.mu.Unlock()

	c.logger.Debug("BLE device opened")
	c.publishAdapter(radio.AdapterOn)
	return nil
}

func (c *Controller) Disable() error {
	c.cancelScan(true)

	c.mu.Lock()
	dev := c.dev
	c.dev = nil
	c.mu.Unlock()

	if dev == nil {
		return nil
	}

	c.publishAdapter(radio.AdapterTurningOff)
	err := dev.Stop()
	c.publishAdapter(radio.AdapterOff)
	if err != nil {
		return fmt.Errorf("failed to close BLE device: %w", NormalizeError(err))
	}
	c.logger.Debug("BLE device closed")
	return nil
}

func (c *Controller) StartDiscovery() error {
	c.cancelScan(true)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev == nil {
		return radio.ErrAdapterOff
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.window)
	done := make(chan struct{})
	c.stopScan = cancel
	c.scanDone = done

	dev := c.dev
	groutine.Go(ctx, "goble-scan", func(ctx context.Context) {
		defer close(done)
		defer cancel()
		c.scan(ctx, dev)
	})
	return nil
}

func (c *Controller) CancelDiscovery() error {
	c.cancelScan(false)
	return nil
}

func (c *Controller) cancelScan(wait bool) {
	c.mu.Lock()
	cancel, done := c.stopScan, c.scanDone
	c.stopScan, c.scanDone = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if wait {
		<-done
	}
}

func (c *Controller) scan(ctx context.Context, dev ble.Device) {
	c.pub.Publish(notify.New(notify.DiscoveryStarted))
	defer c.pub.Publish(notify.New(notify.DiscoveryFinished))

	c.logger.WithField("window", c.window).Debug("BLE scan cycle started")

	err := dev.Scan(ctx, true, func(adv ble.Advertisement) {
		ev := notify.New(notify.DeviceFound).
			With(notify.AttrDevice, adv.Addr().String()).
			With(notify.AttrRSSI, int16(adv.RSSI()))
		if name := adv.LocalName(); name != "" {
			ev = ev.With(notify.AttrName, name)
		}
		c.pub.Publish(ev)
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		c.logger.WithError(NormalizeError(err)).Warn("BLE scan cycle failed")
	}
}

// InitiateBonding is not available through go-ble.
func (c *Controller) InitiateBonding(address string) error {
	return fmt.Errorf("%w: bonding with %s", radio.ErrUnsupported, address)
}

// CancelBonding is not available through go-ble.
func (c *Controller) CancelBonding(address string) error {
	return fmt.Errorf("%w: cancel bonding with %s", radio.ErrUnsupported, address)
}

// BondState always reports radio.BondNone: go-ble has no bond registry.
func (c *Controller) BondState(string) radio.BondState {
	return radio.BondNone
}

func (c *Controller) publishAdapter(state radio.AdapterState) {
	c.pub.Publish(notify.New(notify.AdapterStateChanged).With(notify.AttrAdapterState, int(state)))
}

// NormalizeError maps known go-ble adapter errors to radio errors, keeping the original
// message.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "is bluetooth turned on"),
		strings.Contains(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", radio.ErrAdapterOff, err)
	case strings.Contains(msg, "not supported"):
		return fmt.Errorf("%w: %v", radio.ErrUnsupported, err)
	default:
		return err
	}
}
