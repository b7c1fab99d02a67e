package status

import (
	"errors"
	"fmt"
	"slices"
)

// Status is the lifecycle state of a chat message.
type Status string

const (
	Sent      Status = "sent"
	Delivered Status = "delivered"
	Read      Status = "read"
	Failed    Status = "failed"
)

// ErrInvalidTransition is returned when a message cannot move between two states.
var ErrInvalidTransition = errors.New("invalid status transition")

// validTransitions defines allowed message status transitions.
// A failed message is never retried in place: the user composes a new one.
var validTransitions = map[Status][]Status{
	Sent:      {Delivered, Read, Failed},
	Delivered: {Read, Failed},
	Failed:    {Read},
	Read:      {},
}

// Valid reports whether s is a known message status.
func (s Status) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// Parse converts a raw string into a Status, defaulting empty input to Sent.
func Parse(raw string) (Status, error) {
	if raw == "" {
		return Sent, nil
	}
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown message status %q", raw)
	}
	return s, nil
}

// CheckTransition returns ErrInvalidTransition if a message in state from
// cannot move to state to. Re-applying the current state is always allowed.
func CheckTransition(from, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown target %q", ErrInvalidTransition, to)
	}
	if from == to {
		return nil
	}
	if !slices.Contains(validTransitions[from], to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Unread reports whether a contact-authored message in this state still counts as unread.
func (s Status) Unread() bool {
	return s != Read
}
