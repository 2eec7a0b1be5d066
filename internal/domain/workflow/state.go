package workflow

import "github.com/garyjia/legal-docgen/internal/domain/entity"

// State is a generation lifecycle state
type State string

const (
	StatePending    State = State(entity.GenerationStatusPending)
	StateGenerating State = State(entity.GenerationStatusGenerating)
	StateCompleted  State = State(entity.GenerationStatusCompleted)
	StateFailed     State = State(entity.GenerationStatusFailed)
	StateLocked     State = State(entity.GenerationStatusLocked)
	StateSent       State = State(entity.GenerationStatusSent)
	StateArchived   State = State(entity.GenerationStatusArchived)
)

var validStates = map[State]bool{
	StatePending:    true,
	StateGenerating: true,
	StateCompleted:  true,
	StateFailed:     true,
	StateLocked:     true,
	StateSent:       true,
	StateArchived:   true,
}

var terminalStates = map[State]bool{
	StateArchived: true,
}

// IsTerminal returns true if no transition leaves the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
