package domain

// Snapshot is the serializable form of a flow execution at a pause point.
// Flows and states are referenced by id and re-bound to the current definitions on restore.
type Snapshot struct {
	FlowID            string            `json:"flow_id"`
	Sessions          []SessionSnapshot `json:"sessions"`
	ConversationScope map[string]any    `json:"conversation_scope,omitempty"`
}

// SessionSnapshot is one entry of the session stack, root first.
type SessionSnapshot struct {
	FlowID  string         `json:"flow_id"`
	StateID string         `json:"state_id"`
	Scope   map[string]any `json:"scope,omitempty"`
	Status  SessionStatus  `json:"status"`
}

// Active reports whether the snapshotted execution still had sessions.
func (s Snapshot) Active() bool {
	return len(s.Sessions) > 0
}
