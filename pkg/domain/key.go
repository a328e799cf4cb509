package domain

import (
	"fmt"
	"strings"
)

// Literal prefixes of the encoded continuation key.
const (
	ConversationPrefix = "_s"
	ContinuationPrefix = "_c"
)

// ContinuationKey names one version of one conversation's execution.
type ContinuationKey struct {
	ConversationID string `json:"conversation_id"`
	ContinuationID string `json:"continuation_id"`
}

// String encodes the key as "_s<conversationId>_c<continuationId>".
func (k ContinuationKey) String() string {
	return ConversationPrefix + k.ConversationID + ContinuationPrefix + k.ContinuationID
}

// IsZero reports whether the key is empty.
func (k ContinuationKey) IsZero() bool {
	return k.ConversationID == "" && k.ContinuationID == ""
}

// Validate reports ErrInvalidKeyFormat when the key would not survive String and
// ParseContinuationKey unchanged: empty ids, or a conversation id holding the continuation prefix.
func (k ContinuationKey) Validate() error {
	if k.ConversationID == "" || k.ContinuationID == "" {
		return fmt.Errorf("%w: '%s' has an empty id", ErrInvalidKeyFormat, k)
	}
	if strings.Contains(k.ConversationID, ContinuationPrefix) {
		return fmt.Errorf("%w: conversation id '%s' contains '%s'", ErrInvalidKeyFormat, k.ConversationID, ContinuationPrefix)
	}
	return nil
}

// ParseContinuationKey decodes a key produced by ContinuationKey.String.
// The conversation id ends at the first continuation prefix.
func ParseContinuationKey(encoded string) (ContinuationKey, error) {
	if !strings.HasPrefix(encoded, ConversationPrefix) {
		return ContinuationKey{}, fmt.Errorf("%w: '%s' does not start with '%s'", ErrInvalidKeyFormat, encoded, ConversationPrefix)
	}
	rest := encoded[len(ConversationPrefix):]
	idx := strings.Index(rest, ContinuationPrefix)
	if idx < 0 {
		return ContinuationKey{}, fmt.Errorf("%w: '%s' has no '%s' part", ErrInvalidKeyFormat, encoded, ContinuationPrefix)
	}
	key := ContinuationKey{
		ConversationID: rest[:idx],
		ContinuationID: rest[idx+len(ContinuationPrefix):],
	}
	if key.ConversationID == "" || key.ContinuationID == "" {
		return ContinuationKey{}, fmt.Errorf("%w: '%s' has an empty id", ErrInvalidKeyFormat, encoded)
	}
	return key, nil
}
