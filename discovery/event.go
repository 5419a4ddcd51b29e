package discovery

// Kind tags a discovery lifecycle event.
type Kind int

const (
	// SearchStarted marks the start of a discovery cycle.
	SearchStarted Kind = iota
	// DeviceFound carries a sighted device.
	DeviceFound
)

func (k Kind) String() string {
	switch k {
	case SearchStarted:
		return "search_started"
	case DeviceFound:
		return "device_found"
	default:
		return "unknown"
	}
}

// Event is a classified discovery notification. Device is set for DeviceFound only.
type Event struct {
	Kind   Kind
	Device *Device
}
