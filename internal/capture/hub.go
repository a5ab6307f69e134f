package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"pokedex-live/internal/platform/metrics"

	"github.com/google/uuid"
)

// ErrHubClosed is returned by Attach after Close.
var ErrHubClosed = errors.New("hub is closed")

// Hub is the registry of open viewer sessions, keyed by session id.
// Sessions are added explicitly on connect and removed explicitly on
// disconnect or on a failed send. Delivery is best effort: nothing is
// retried or kept for viewers that are gone.
type Hub struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	closed   bool

	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHub returns an empty hub. m may be nil.
func NewHub(log *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		sessions: make(map[uuid.UUID]*Session),
		log:      log,
		metrics:  m,
	}
}

// Attach queues initial as the session's first message and registers the
// session for broadcasts.
func (h *Hub) Attach(s *Session, initial any) error {
	data, err := json.Marshal(initial)
	if err != nil {
		return fmt.Errorf("encoding initial message: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		s.close()
		return ErrHubClosed
	}
	if !s.enqueue(data) {
		return fmt.Errorf("session %s not accepting messages", s.id)
	}
	h.sessions[s.id] = s
	h.metrics.SetConnectedViewers(len(h.sessions))
	h.log.Info("viewer connected",
		slog.String("session_id", s.id.String()),
		slog.Int("viewers", len(h.sessions)))
	return nil
}

// Detach removes the session and closes its queue. Unknown ids are ignored.
func (h *Hub) Detach(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[id]
	if !ok {
		return
	}
	delete(h.sessions, id)
	s.close()
	h.metrics.SetConnectedViewers(len(h.sessions))
	h.log.Info("viewer disconnected",
		slog.String("session_id", id.String()),
		slog.Int("viewers", len(h.sessions)))
}

// Broadcast encodes msg once and queues it on every session. Sessions that
// are closed or lagging are removed. It returns how many sessions accepted
// the message.
func (h *Hub) Broadcast(msg any) int {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("encoding broadcast failed", slog.String("error", err.Error()))
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for id, s := range h.sessions {
		if s.enqueue(data) {
			delivered++
			continue
		}
		delete(h.sessions, id)
		s.close()
		h.metrics.IncViewersDropped()
		h.log.Warn("viewer dropped on send", slog.String("session_id", id.String()))
	}
	h.metrics.IncBroadcasts()
	h.metrics.SetConnectedViewers(len(h.sessions))
	return delivered
}

// Count returns the number of open sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close ends every session and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, s := range h.sessions {
		delete(h.sessions, id)
		s.close()
	}
	h.metrics.SetConnectedViewers(0)
}
