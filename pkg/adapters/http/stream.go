package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/pergola/internal/logging"
	"github.com/go-chi/chi/v5"
)

// StreamManager fans conversation updates out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan string]struct{} // ConversationID -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan string]struct{}),
		logger:      logging.NewNop(),
	}
}

// Subscribe registers a channel for conversationID. The returned func unsubscribes and
// closes the channel.
func (sm *StreamManager) Subscribe(conversationID string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[conversationID]; !ok {
		sm.subscribers[conversationID] = make(map[chan string]struct{})
	}
	sm.subscribers[conversationID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[conversationID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, conversationID)
				}
			}
		})
	}
}

// Subscribers returns how many channels listen on conversationID.
func (sm *StreamManager) Subscribers(conversationID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[conversationID])
}

// Broadcast sends msg to every subscriber of conversationID. Slow subscribers miss it.
func (sm *StreamManager) Broadcast(conversationID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	subs, ok := sm.subscribers[conversationID]
	if !ok {
		return
	}
	sm.logger.Debug("StreamManager: Broadcasting", "conversation_id", conversationID, "subscribers", len(subs), "payload_size", len(msg))
	for ch := range subs {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping message", "conversation_id", conversationID)
		}
	}
}

// SubscribeEvents handles GET /conversations/{conversationID}/events (SSE).
// Each event carries the ViewResponse produced by a signal on the conversation.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, s.logger, http.StatusInternalServerError, ErrorResponse{Error: "streaming not supported"})
		return
	}

	id := chi.URLParam(r, "conversationID")
	if _, err := s.Executor.CurrentViewSelection(r.Context(), id, s.external(r, nil)); err != nil {
		s.writeError(w, r, err)
		return
	}

	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Debug("SSE: Subscribing to conversation", "conversation_id", id)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE: Client disconnected", "conversation_id", id)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
