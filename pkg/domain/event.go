package domain

// Event is the outcome that drives a transition: either signaled from outside (a user submit)
// or returned by an action or a finished sub-flow.
type Event struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// NewEvent creates an event without attributes.
func NewEvent(id string) Event {
	return Event{ID: id}
}

// Standard action outcomes.
const (
	EventSuccess = "success"
	EventError   = "error"
	EventYes     = "yes"
	EventNo      = "no"
)
