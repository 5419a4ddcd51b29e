package notify

import (
	"fmt"
	"maps"
	"sort"
	"strings"
)

// Category names a kind of platform notification.
type Category string

// Platform categories.
const (
	AdapterStateChanged Category = "adapter.state_changed"
	DiscoveryStarted    Category = "adapter.discovery_started"
	DiscoveryFinished   Category = "adapter.discovery_finished"
	DeviceFound         Category = "device.found"
	BondStateChanged    Category = "device.bond_state_changed"
	LinkConnected       Category = "device.link_connected"
	LinkDisconnected    Category = "device.link_disconnected"
	PairingRequest      Category = "device.pairing_request"
)

// Categories synthesized by this module and looped back through the bus.
const (
	PairingStarted Category = "btflow.pairing_started"
	PairingFailed  Category = "btflow.pairing_failed"
	PairingTimeout Category = "btflow.pairing_timeout"
)

// Attribute keys carried by events.
const (
	AttrDevice       = "device"
	AttrName         = "name"
	AttrRSSI         = "rssi"
	AttrBondState    = "bond_state"
	AttrAdapterState = "adapter_state"
)

// Event is a raw platform notification. Events are values; With returns a copy.
type Event struct {
	Category Category
	Attrs    map[string]any

	// Seq is the 1-based position assigned by the bridge within a listen session.
	Seq int
}

// New creates an event of the given category without attributes.
func New(category Category) Event {
	return Event{Category: category}
}

// With returns a copy of e with key set to value.
func (e Event) With(key string, value any) Event {
	attrs := make(map[string]any, len(e.Attrs)+1)
	maps.Copy(attrs, e.Attrs)
	attrs[key] = value
	e.Attrs = attrs
	return e
}

// Is reports whether e belongs to category.
func (e Event) Is(category Category) bool {
	return e.Category == category
}

// Device returns the device address attribute.
func (e Event) Device() (string, bool) {
	v, ok := e.Attrs[AttrDevice].(string)
	return v, ok
}

// Name returns the device display name attribute.
func (e Event) Name() (string, bool) {
	v, ok := e.Attrs[AttrName].(string)
	return v, ok
}

// RSSI returns the signal attribute.
func (e Event) RSSI() (int16, bool) {
	switch v := e.Attrs[AttrRSSI].(type) {
	case int16:
		return v, true
	case int:
		return int16(v), true
	default:
		return 0, false
	}
}

// Int returns an integer attribute such as AttrBondState or AttrAdapterState.
func (e Event) Int(key string) (int, bool) {
	v, ok := e.Attrs[key].(int)
	return v, ok
}

// String renders the event for logs.
func (e Event) String() string {
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(e.Category))
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Attrs[k])
	}
	return b.String()
}
