package domain

import "time"

// Conversation is the stored record of one logical multi-step interaction.
// Continuations are kept oldest first.
type Conversation struct {
	ID            string         `json:"id"`
	FlowID        string         `json:"flow_id"`
	Continuations []Continuation `json:"continuations"`
	CurrentView   *ViewSelection `json:"current_view,omitempty"`
	Version       int64          `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Continuation is one persisted execution snapshot. Data is opaque to stores.
type Continuation struct {
	ID        string    `json:"id"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// Continuation returns the continuation with id.
func (c *Conversation) Continuation(id string) (*Continuation, bool) {
	for i := range c.Continuations {
		if c.Continuations[i].ID == id {
			return &c.Continuations[i], true
		}
	}
	return nil, false
}

// Latest returns the most recent continuation.
func (c *Conversation) Latest() (*Continuation, bool) {
	if len(c.Continuations) == 0 {
		return nil, false
	}
	return &c.Continuations[len(c.Continuations)-1], true
}

// CurrentKey returns the key of the most recent continuation.
func (c *Conversation) CurrentKey() (ContinuationKey, bool) {
	latest, ok := c.Latest()
	if !ok {
		return ContinuationKey{}, false
	}
	return ContinuationKey{ConversationID: c.ID, ContinuationID: latest.ID}, true
}

// Append adds cont as the latest continuation and drops the oldest ones beyond limit.
// A limit below 1 keeps everything.
func (c *Conversation) Append(cont Continuation, limit int) {
	c.Continuations = append(c.Continuations, cont)
	if limit > 0 && len(c.Continuations) > limit {
		drop := len(c.Continuations) - limit
		c.Continuations = append([]Continuation(nil), c.Continuations[drop:]...)
	}
}
