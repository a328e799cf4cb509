package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/pergola/pkg/domain"
	"github.com/aretw0/pergola/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunConversationStoreContract verifies that a ConversationStore implementation adheres to
// the interface contract. The store should be empty or use ids unique to this run.
func RunConversationStoreContract(t *testing.T, store ports.ConversationStore) {
	t.Helper()
	ctx := context.Background()
	prefix := fmt.Sprintf("contract-%d", time.Now().UnixNano())
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	newConversation := func(id string) *domain.Conversation {
		view := domain.ApplicationView("form", map[string]any{"foo": "bar"})
		return &domain.Conversation{
			ID:     id,
			FlowID: "checkout",
			Continuations: []domain.Continuation{
				{ID: "c1", Data: []byte(`{"flow_id":"checkout"}`), CreatedAt: created},
				{ID: "c2", Data: []byte(`{"flow_id":"checkout","n":2}`), CreatedAt: created.Add(time.Second)},
			},
			CurrentView: &view,
			Version:     2,
			CreatedAt:   created,
			UpdatedAt:   created.Add(time.Second),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		id := prefix + "-save"
		conv := newConversation(id)
		require.NoError(t, store.Save(ctx, conv), "Save should not return error")

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, id, loaded.ID)
		assert.Equal(t, "checkout", loaded.FlowID)
		assert.Equal(t, int64(2), loaded.Version)
		require.Len(t, loaded.Continuations, 2)
		assert.Equal(t, "c1", loaded.Continuations[0].ID)
		assert.Equal(t, conv.Continuations[1].Data, loaded.Continuations[1].Data)
		assert.True(t, created.Equal(loaded.Continuations[0].CreatedAt))
		require.NotNil(t, loaded.CurrentView)
		assert.Equal(t, "form", loaded.CurrentView.ViewName)
		assert.Equal(t, "bar", loaded.CurrentView.Model["foo"])
	})

	t.Run("Load returns an independent copy", func(t *testing.T) {
		id := prefix + "-copy"
		require.NoError(t, store.Save(ctx, newConversation(id)))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		loaded.Continuations = nil

		again, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Len(t, again.Continuations, 2)
	})

	t.Run("Save overwrites", func(t *testing.T) {
		id := prefix + "-overwrite"
		conv := newConversation(id)
		require.NoError(t, store.Save(ctx, conv))

		conv.Continuations = conv.Continuations[1:]
		conv.CurrentView = nil
		conv.Version = 3
		require.NoError(t, store.Save(ctx, conv))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(3), loaded.Version)
		require.Len(t, loaded.Continuations, 1)
		assert.Equal(t, "c2", loaded.Continuations[0].ID)
		assert.Nil(t, loaded.CurrentView)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, prefix+"-missing")
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		id := prefix + "-delete"
		require.NoError(t, store.Save(ctx, newConversation(id)))

		require.NoError(t, store.Delete(ctx, id), "Delete should not return error")
		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound, "Load after Delete should return ErrConversationNotFound")

		assert.NoError(t, store.Delete(ctx, id), "Deleting twice should not fail")
	})

	t.Run("List", func(t *testing.T) {
		id1, id2 := prefix+"-list-1", prefix+"-list-2"
		require.NoError(t, store.Save(ctx, newConversation(id1)))
		require.NoError(t, store.Save(ctx, newConversation(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
