package pairing

import (
	"errors"
	"fmt"
)

// FailureKind is the kind of a terminal pairing failure.
type FailureKind string

const (
	KindFailed    FailureKind = "failed"
	KindAbandoned FailureKind = "abandoned"
	KindTimedOut  FailureKind = "timed_out"
)

// Error is a terminal pairing failure.
type Error struct {
	Kind    FailureKind
	Address string
	Msg     string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	s := "pairing " + string(e.Kind)
	if e.Address != "" {
		s += " for " + e.Address
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

// Is compares by Kind. Abandoned pairings also match ErrFailed; timeouts never do.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	return t.Kind == KindFailed && e.Kind == KindAbandoned
}

// Predefined sentinel errors for failure kinds
var (
	ErrFailed    = &Error{Kind: KindFailed}
	ErrAbandoned = &Error{Kind: KindAbandoned}
	ErrTimeout   = &Error{Kind: KindTimedOut}
)

// ErrNotPaired is returned by Request.Run when the stream completes without success.
var ErrNotPaired = errors.New("pairing ended without a bonded device")

// BondInitiationError reports that the platform rejected the bonding call.
type BondInitiationError struct {
	Address string
	Err     error
}

func (e *BondInitiationError) Error() string {
	return fmt.Sprintf("failed to initiate bonding with %s: %v", e.Address, e.Err)
}

func (e *BondInitiationError) Unwrap() error {
	return e.Err
}

// Is makes every bond initiation failure match ErrFailed.
func (e *BondInitiationError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == KindFailed
}
