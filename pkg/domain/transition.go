package domain

// Transition is an edge out of a state, guarded by criteria over the event id.
// The target is resolved to a concrete state when the owning flow is resolved.
type Transition struct {
	Criteria      TransitionCriteria
	TargetStateID string

	target State
}

// NewTransition creates a transition on criteria towards the state named targetStateID.
func NewTransition(criteria TransitionCriteria, targetStateID string) *Transition {
	return &Transition{Criteria: criteria, TargetStateID: targetStateID}
}

// On is shorthand for a transition on a single event id.
func On(eventID, targetStateID string) *Transition {
	return NewTransition(OnEvent(eventID), targetStateID)
}

// Matches reports whether the transition accepts eventID.
func (t *Transition) Matches(eventID string) bool {
	if t.Criteria == nil {
		return false
	}
	return t.Criteria.Matches(eventID)
}

// Target returns the resolved target state, nil until the flow is resolved.
func (t *Transition) Target() State {
	return t.target
}

func (t *Transition) String() string {
	crit := "<nil>"
	if t.Criteria != nil {
		crit = t.Criteria.String()
	}
	return crit + " -> " + t.TargetStateID
}

func firstMatching(transitions []*Transition, eventID string) *Transition {
	for _, t := range transitions {
		if t.Matches(eventID) {
			return t
		}
	}
	return nil
}
