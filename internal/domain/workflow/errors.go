package workflow

import "errors"

var (
	// ErrInvalidTransition means the trigger is not permitted from the current state
	ErrInvalidTransition = errors.New("transition not permitted")

	// ErrInvalidState means a stored status has no matching state
	ErrInvalidState = errors.New("unknown lifecycle state")

	ErrGuardFailed = errors.New("transition guard rejected")
)
