package workflow

import "context"

// StateMachine tracks the current state of one generation and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire reports whether the trigger leads somewhere from the current state
	CanFire(ctx context.Context, trigger Trigger) bool

	// Next returns the state the trigger would lead to without moving
	Next(ctx context.Context, trigger Trigger) (State, error)

	// Fire moves to the next state or returns an error leaving the state unchanged
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns the configured triggers of the current state, sorted
	PermittedTriggers() []Trigger
}
