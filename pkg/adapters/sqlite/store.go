// Package sqlite stores conversations in a SQLite database using the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/pergola/pkg/domain"
	"github.com/aretw0/pergola/pkg/ports"
	_ "modernc.org/sqlite"
)

// Store implements ports.ConversationStore on a conversations table.
// The record is kept as a JSON blob; version and updated_at are mirrored into
// columns for tooling queries.
type Store struct {
	db *sql.DB
}

var _ ports.ConversationStore = (*Store)(nil)

// Open opens (or creates) the database at dsn and initializes the schema.
// Use ":memory:" for a private in-memory database.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// SQLite serializes writers; one connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	store, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New initializes the schema in db and returns a Store. The caller owns db.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			flow_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			record BLOB NOT NULL
		);`,
	)
	return err
}

// Save upserts the conversation.
func (s *Store) Save(ctx context.Context, conv *domain.Conversation) error {
	record, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	updated := conv.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, flow_id, version, updated_at, record)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			flow_id = excluded.flow_id,
			version = excluded.version,
			updated_at = excluded.updated_at,
			record = excluded.record`,
		conv.ID, conv.FlowID, conv.Version, updated.UTC(), record,
	)
	if err != nil {
		return fmt.Errorf("failed to save conversation %s: %w", conv.ID, err)
	}
	return nil
}

// Load retrieves a conversation.
func (s *Store) Load(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var record []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM conversations WHERE id = ?`, conversationID).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", conversationID, err)
	}

	var conv domain.Conversation
	if err := json.Unmarshal(record, &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &conv, nil
}

// Delete removes a conversation.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", conversationID, err)
	}
	return nil
}

// List returns conversation ids ordered by id.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM conversations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
