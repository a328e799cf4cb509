package ports

import "github.com/aretw0/pergola/pkg/domain"

// FlowLocator resolves flow definitions by id.
type FlowLocator interface {
	// GetFlow returns the resolved flow registered under id.
	// Returns domain.ErrFlowNotFound if there is none.
	GetFlow(id string) (*domain.Flow, error)

	// FlowIDs lists the registered flow ids, for tooling.
	FlowIDs() []string
}

// KeyGenerator mints identifiers for continuation keys. Ids must be non-empty and conversation
// ids must not contain domain.ContinuationPrefix; the repository refuses to store such keys.
type KeyGenerator interface {
	ConversationID() string
	ContinuationID() string
}
