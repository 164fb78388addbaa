package trainer

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyShoe  = errors.New("no card available")
	ErrNoSession  = errors.New("session not found")
	ErrWrongPhase = errors.New("command not valid in this phase")
)

// ActionError is returned when the hand's shape rules a command out, e.g. a
// split on two different values.
type ActionError struct {
	Command Command
	Reason  string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s not allowed: %s", e.Command, e.Reason)
}

func notAllowed(cmd Command, reason string) error {
	return &ActionError{Command: cmd, Reason: reason}
}

// IsNotAllowed reports whether err is an ActionError.
func IsNotAllowed(err error) bool {
	var ae *ActionError
	return errors.As(err, &ae)
}
