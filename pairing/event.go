package pairing

import "fmt"

// Action tags a pairing protocol event.
type Action int

const (
	Started Action = iota
	OnProgress
	Succeeded
	NotDone
)

func (a Action) String() string {
	switch a {
	case Started:
		return "started"
	case OnProgress:
		return "on_progress"
	case Succeeded:
		return "succeeded"
	case NotDone:
		return "not_done"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Event is a classified pairing notification for Device. Events compare with ==.
type Event struct {
	Action Action
	Device string
}

func (e Event) String() string {
	return e.Action.String() + " " + e.Device
}
