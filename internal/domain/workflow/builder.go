package workflow

import (
	"context"
	"fmt"
	"sort"
)

// GuardFunc decides whether a configured transition may be taken
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder collects transitions and builds independent machines from them
type StateMachineBuilder interface {
	Configure(state State) StateConfiguration
	Build(initialState State) StateMachine
}

// StateConfiguration configures the transitions leaving one state
type StateConfiguration interface {
	Permit(trigger Trigger, toState State) StateConfiguration
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

type transition struct {
	toState State
	guard   GuardFunc
}

type transitionTable map[State]map[Trigger][]transition

type stateConfig struct {
	from  State
	table transitionTable
}

type stateMachineBuilder struct {
	table transitionTable
}

type stateMachine struct {
	current State
	table   transitionTable
}

// NewBuilder creates an empty builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{table: make(transitionTable)}
}

// Configure returns the configuration of state. It panics on an unknown state.
func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	if _, ok := b.table[state]; !ok {
		b.table[state] = make(map[Trigger][]transition)
	}
	return &stateConfig{from: state, table: b.table}
}

// Build creates a machine positioned at initialState. Machines do not share the table.
func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	table := make(transitionTable, len(b.table))
	for state, triggers := range b.table {
		copied := make(map[Trigger][]transition, len(triggers))
		for trigger, ts := range triggers {
			copied[trigger] = append([]transition(nil), ts...)
		}
		table[state] = copied
	}

	return &stateMachine{current: initialState, table: table}
}

func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

func (c *stateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	c.table[c.from][trigger] = append(c.table[c.from][trigger], transition{toState: toState, guard: guard})
	return c
}

func (m *stateMachine) State() State {
	return m.current
}

func (m *stateMachine) CanFire(ctx context.Context, trigger Trigger) bool {
	_, err := m.Next(ctx, trigger)
	return err == nil
}

func (m *stateMachine) Next(ctx context.Context, trigger Trigger) (State, error) {
	transitions := m.table[m.current][trigger]
	if len(transitions) == 0 {
		return m.current, fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	// first passing guard wins
	for _, t := range transitions {
		if t.guard == nil || t.guard(ctx) {
			return t.toState, nil
		}
	}

	return m.current, fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.current)
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	next, err := m.Next(ctx, trigger)
	if err != nil {
		return err
	}
	m.current = next
	return nil
}

func (m *stateMachine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.table[m.current]))
	for trigger := range m.table[m.current] {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
