package application

import (
	"time"
)

type State string

const (
	StatePending  State = "pending"
	StateAccepted State = "accepted"
	StateRejected State = "rejected"
	StateCanceled State = "canceled"
)

// transitions is the complete lifecycle; states without an entry are terminal.
// pending -> canceled only happens as a cascade, never as a decision.
var transitions = map[State][]State{
	StatePending: {StateAccepted, StateRejected, StateCanceled},
}

func (s State) Valid() bool {
	switch s {
	case StatePending, StateAccepted, StateRejected, StateCanceled:
		return true
	}
	return false
}

func (s State) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s State) CanBecome(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Decision is what a supervisor can decide on a pending application.
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
)

// State returns the state the decision leads to.
func (d Decision) State() (State, bool) {
	switch d {
	case DecisionAccepted:
		return StateAccepted, true
	case DecisionRejected:
		return StateRejected, true
	}
	return "", false
}

type Application struct {
	ID         string    `json:"id"`
	ProposalID string    `json:"proposal_id"`
	StudentID  string    `json:"student_id"`
	State      State     `json:"state"`
	CreatedAt  time.Time `json:"created_at"` // virtual clock time
}

type NewApplication struct {
	ProposalID string `json:"proposal_id" validate:"required"`
}

type UpdateDecision struct {
	Decision Decision `json:"decision" validate:"required"`
}

type QueryFilter struct {
	IDs         []string
	ProposalIDs []string
	StudentID   string
	States      []State
}
