package discovery

import (
	"fmt"

	"github.com/srg/btflow/internal/notify"
)

// DefaultSignal is reported for devices whose sighting carried no signal strength.
const DefaultSignal int16 = -99

// Device is a discovered remote device. Address identifies it; newer sightings
// replace the whole record.
type Device struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Signal  int16  `json:"signal"`
}

func (d Device) String() string {
	return fmt.Sprintf("%s (%q, signal %d)", d.Address, d.Name, d.Signal)
}

// DeviceFromEvent projects a device-found event onto a Device. It reports false when
// the event carries no device address.
func DeviceFromEvent(ev notify.Event) (Device, bool) {
	addr, ok := ev.Device()
	if !ok || addr == "" {
		return Device{}, false
	}

	d := Device{Address: addr, Signal: DefaultSignal}
	if name, ok := ev.Name(); ok {
		d.Name = name
	}
	if rssi, ok := ev.RSSI(); ok {
		d.Signal = rssi
	}
	return d, true
}

// NormalizeSignal maps a raw signal onto the 0..100 scale used by the signal filter.
// Negative readings are taken as dBm-like values and shifted by 100; non-negative
// readings are used as they are. The mapping assumes the platform's signed-byte
// representation and is not a general RSSI conversion.
func NormalizeSignal(raw int16) int {
	if raw < 0 {
		return 100 + int(raw)
	}
	return int(raw)
}
