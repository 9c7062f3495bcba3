package closure

import "errors"

var (
	// ErrEmptyScope means the closure criteria matched zero slots. Matching
	// nothing is a user-visible error, not a silent success.
	ErrEmptyScope = errors.New("closure: no slots matched criteria")

	// ErrValidation covers outer-request problems caught before any
	// mutation, such as a missing reason on a disable.
	ErrValidation = errors.New("closure: invalid request")
)
