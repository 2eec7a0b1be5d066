// Package workflow wires the generation lifecycle onto the domain state machine.
package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/event"
	domainwf "github.com/garyjia/legal-docgen/internal/domain/workflow"
)

// BuildGenerationStateMachine creates a state machine for one generation of docType
func BuildGenerationStateMachine(initialState domainwf.State, docType entity.DocumentType) domainwf.StateMachine {
	regulated := func(context.Context) bool { return docType.IsRegulated() }
	unregulated := func(context.Context) bool { return !docType.IsRegulated() }

	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StatePending).
		Permit(domainwf.TriggerStart, domainwf.StateGenerating).
		Permit(domainwf.TriggerFail, domainwf.StateFailed)

	builder.Configure(domainwf.StateGenerating).
		Permit(domainwf.TriggerComplete, domainwf.StateCompleted).
		Permit(domainwf.TriggerFail, domainwf.StateFailed)

	// regulated documents never rest in COMPLETED; the lock is part of the same write
	builder.Configure(domainwf.StateCompleted).
		PermitIf(domainwf.TriggerLock, domainwf.StateLocked, regulated).
		PermitIf(domainwf.TriggerSend, domainwf.StateSent, unregulated)

	builder.Configure(domainwf.StateSent).
		Permit(domainwf.TriggerSend, domainwf.StateSent)

	for _, s := range []domainwf.State{
		domainwf.StatePending,
		domainwf.StateGenerating,
		domainwf.StateCompleted,
		domainwf.StateFailed,
		domainwf.StateLocked,
		domainwf.StateSent,
	} {
		builder.Configure(s).Permit(domainwf.TriggerArchive, domainwf.StateArchived)
	}

	return builder.Build(initialState)
}

// Transition validates that gen may follow triggers in order and returns the resulting status
func Transition(ctx context.Context, gen *entity.Generation, triggers ...domainwf.Trigger) (string, error) {
	current := domainwf.State(gen.Status)
	if !current.IsValid() {
		return "", fmt.Errorf("%w: %s", domainwf.ErrInvalidState, gen.Status)
	}

	machine := BuildGenerationStateMachine(current, gen.DocumentType)
	for _, trigger := range triggers {
		if err := machine.Fire(ctx, trigger); err != nil {
			return "", fmt.Errorf("generation %d: %w", gen.ID, err)
		}
	}

	return machine.State().String(), nil
}

// EventFor maps the state reached by a transition to the event announcing it
func EventFor(state domainwf.State) (event.Type, bool) {
	switch state {
	case domainwf.StateCompleted:
		return event.TypeGenerationCompleted, true
	case domainwf.StateLocked:
		return event.TypeGenerationLocked, true
	case domainwf.StateFailed:
		return event.TypeGenerationFailed, true
	case domainwf.StateSent:
		return event.TypeGenerationSent, true
	default:
		return "", false
	}
}
