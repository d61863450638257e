package domain

import (
	"fmt"
	"strings"
)

// transitions maps each lane to the lanes reachable directly from it.
var transitions = map[Status]map[Status]bool{
	StatusTodo:       {StatusPlan: true, StatusInProgress: true, StatusReview: true, StatusDone: true},
	StatusPlan:       {StatusTodo: true, StatusInProgress: true, StatusReview: true, StatusDone: true},
	StatusInProgress: {StatusPlan: true, StatusTodo: true, StatusReview: true, StatusDone: true},
	StatusReview:     {StatusPlan: true, StatusTodo: true, StatusInProgress: true, StatusDone: true},
	StatusDone:       {StatusPlan: true, StatusTodo: true, StatusReview: true},
}

// CanTransition reports whether the adjacency table allows from -> to.
// A move to the same lane is always allowed and is a no-op.
func CanTransition(from, to Status) bool {
	if from == to {
		return from.Valid()
	}
	return transitions[from][to]
}

// AllowedTransitions returns the lanes reachable from s, in board order.
func AllowedTransitions(s Status) []Status {
	var out []Status
	for _, to := range Statuses {
		if transitions[s][to] {
			out = append(out, to)
		}
	}
	return out
}

// ValidateTransition checks a move of t to the target lane. It returns
// noop=true when the ticket is already in that lane. It never mutates t.
func ValidateTransition(t *Ticket, to Status) (noop bool, err error) {
	if !to.Valid() {
		return false, fmt.Errorf("%w: status must be one of %s", ErrValidation, joinStatuses())
	}
	if t.Archived() {
		return false, fmt.Errorf("%w: cannot move archived ticket", ErrArchived)
	}
	if t.Status == to {
		return true, nil
	}
	if !CanTransition(t.Status, to) {
		return false, fmt.Errorf("%w from '%s' to '%s'", ErrInvalidTransition, t.Status, to)
	}
	return false, nil
}

func joinStatuses() string {
	parts := make([]string, len(Statuses))
	for i, s := range Statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
