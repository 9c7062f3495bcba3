package slots

import "errors"

var (
	// ErrNotFound indicates the slot id does not exist.
	ErrNotFound = errors.New("slot not found")

	// ErrInvalidTransition indicates the requested status change is not
	// legal from the slot's current status.
	ErrInvalidTransition = errors.New("invalid slot transition")

	// ErrQueueNumberAssigned indicates the slot already carries a queue number.
	ErrQueueNumberAssigned = errors.New("queue number already assigned")
)
