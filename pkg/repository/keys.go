package repository

import (
	"github.com/google/uuid"

	"github.com/aretw0/pergola/pkg/ports"
)

// UUIDKeys mints random (v4) UUIDs for conversations and continuations.
type UUIDKeys struct{}

func (UUIDKeys) ConversationID() string { return uuid.NewString() }
func (UUIDKeys) ContinuationID() string { return uuid.NewString() }

var _ ports.KeyGenerator = UUIDKeys{}
