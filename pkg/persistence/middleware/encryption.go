package middleware

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/pergola/pkg/domain"
	"github.com/aretw0/pergola/pkg/ports"
)

// EncryptedField holds the sealed view inside an encrypted CurrentView envelope.
const EncryptedField = "__encrypted__"

// sealedPrefix marks continuation payloads written by this middleware.
var sealedPrefix = []byte("pgenc1:")

// ErrNotEncrypted is returned when a record written without encryption is loaded
// through the middleware.
var ErrNotEncrypted = errors.New("conversation is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey encrypts new data. Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried when the active key fails, for zero-downtime rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.ConversationStore
	config EncryptionConfig
}

// NewEncryptionMiddleware seals continuation payloads and the cached view with AES-GCM.
// Ids, flow id and timestamps stay readable so stores can index and expire records.
// It panics if the active key is not 32 bytes.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.ConversationStore) ports.ConversationStore {
		return &encryptionMiddleware{next: next, config: config}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, conv *domain.Conversation) error {
	sealed := *conv
	sealed.Continuations = make([]domain.Continuation, len(conv.Continuations))
	for i, cont := range conv.Continuations {
		ciphertext, err := encrypt(cont.Data, m.config.ActiveKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt continuation %s: %w", cont.ID, err)
		}
		cont.Data = append(append([]byte{}, sealedPrefix...), ciphertext...)
		sealed.Continuations[i] = cont
	}

	if conv.CurrentView != nil {
		plain, err := json.Marshal(conv.CurrentView)
		if err != nil {
			return fmt.Errorf("failed to marshal view: %w", err)
		}
		ciphertext, err := encrypt(plain, m.config.ActiveKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt view: %w", err)
		}
		// The kind stays visible for monitoring; the name and model do not.
		sealed.CurrentView = &domain.ViewSelection{
			Kind:  conv.CurrentView.Kind,
			Model: map[string]any{EncryptedField: base64.StdEncoding.EncodeToString(ciphertext)},
		}
	}

	return m.next.Save(ctx, &sealed)
}

func (m *encryptionMiddleware) Load(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	conv, err := m.next.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	for i, cont := range conv.Continuations {
		if !bytes.HasPrefix(cont.Data, sealedPrefix) {
			return nil, fmt.Errorf("%w: continuation %s", ErrNotEncrypted, cont.ID)
		}
		plain, err := decryptWithRotation(cont.Data[len(sealedPrefix):], m.config.ActiveKey, m.config.FallbackKeys)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt continuation %s: %w", cont.ID, err)
		}
		conv.Continuations[i].Data = plain
	}

	if conv.CurrentView != nil {
		encoded, ok := conv.CurrentView.Model[EncryptedField].(string)
		if !ok {
			return nil, fmt.Errorf("%w: current view", ErrNotEncrypted)
		}
		ciphertext, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode view ciphertext: %w", err)
		}
		plain, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt view: %w", err)
		}
		var view domain.ViewSelection
		if err := json.Unmarshal(plain, &view); err != nil {
			return nil, fmt.Errorf("failed to unmarshal decrypted view: %w", err)
		}
		conv.CurrentView = &view
	}

	return conv, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, conversationID string) error {
	return m.next.Delete(ctx, conversationID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
