package capture

import (
	"log/slog"
	"sync"
	"time"

	"pokedex-live/internal/platform/metrics"
)

// Service owns the captured set and its durable mirror and fans changes out
// to viewers. One instance is built at startup and shared by all handlers.
type Service struct {
	// mu orders "mutate registry, queue broadcast, attach viewer" so that
	// every viewer observes changes in the order they were applied.
	mu sync.Mutex

	// saveMu serializes writes to the store. Each save writes the latest
	// snapshot, so the last write always matches the registry.
	saveMu sync.Mutex

	registry *Registry
	store    Store
	hub      *Hub
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewService wires a registry, store and hub together. m may be nil.
func NewService(registry *Registry, store Store, hub *Hub, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		registry: registry,
		store:    store,
		hub:      hub,
		log:      log,
		metrics:  m,
	}
}

// Restore loads persisted state into the registry. Load failures are logged
// and the service starts empty; they are never fatal.
func (s *Service) Restore() {
	ids, err := s.store.Load()
	if err != nil {
		s.log.Error("loading captured set failed, starting empty", slog.String("error", err.Error()))
		ids = nil
	}
	s.registry.Replace(ids)
	s.metrics.SetCapturedEntities(s.registry.Len())
	s.log.Info("captured set loaded", slog.Int("captured", s.registry.Len()))
}

// RecordCapture records a capture of id and announces it to all viewers.
// Only a new capture is persisted.
func (s *Service) RecordCapture(id int, name string) Event {
	s.mu.Lock()
	ev := Event{ID: id, Name: name, Outcome: s.registry.Record(id)}
	s.hub.Broadcast(ev.Message())
	s.mu.Unlock()

	if ev.Outcome == OutcomeNew {
		s.persist()
	}
	s.metrics.IncCaptures(ev.Outcome.String())
	s.metrics.SetCapturedEntities(s.registry.Len())
	return ev
}

// Reset empties the captured set, persists it, and sends every viewer the
// new full state.
func (s *Service) Reset() []int {
	s.mu.Lock()
	ids := s.registry.Reset()
	s.hub.Broadcast(NewStateMessage(ids))
	s.mu.Unlock()

	s.persist()
	s.metrics.SetCapturedEntities(len(ids))
	return ids
}

// CompleteAll fills the captured set with the whole collection, persists it,
// and sends every viewer the new full state.
func (s *Service) CompleteAll() []int {
	s.mu.Lock()
	ids := s.registry.CompleteAll(CollectionSize)
	s.hub.Broadcast(NewStateMessage(ids))
	s.mu.Unlock()

	s.persist()
	s.metrics.SetCapturedEntities(len(ids))
	return ids
}

// Snapshot returns the captured IDs in capture order.
func (s *Service) Snapshot() []int {
	return s.registry.Snapshot()
}

// Connect registers a viewer and queues the full-state snapshot as its
// first message. Changes applied after the snapshot reach the viewer as
// regular broadcasts.
func (s *Service) Connect(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hub.Attach(sess, NewStateMessage(s.registry.Snapshot()))
}

// Serve connects a websocket-backed session and starts its pumps.
func (s *Service) Serve(sess *Session, idleTimeout time.Duration) error {
	if err := s.Connect(sess); err != nil {
		return err
	}
	sess.serve(s.hub, idleTimeout, s.log)
	return nil
}

// CapturedCount returns the size of the captured set.
func (s *Service) CapturedCount() int {
	return s.registry.Len()
}

// ViewerCount returns the number of connected viewers.
func (s *Service) ViewerCount() int {
	return s.hub.Count()
}

// Shutdown disconnects every viewer.
func (s *Service) Shutdown() {
	s.hub.Close()
}

// persist writes the current captured set. Failures are logged and counted;
// the registry stays authoritative.
func (s *Service) persist() {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	ids := s.registry.Snapshot()
	if err := s.store.Save(ids); err != nil {
		s.metrics.IncPersistFailures()
		s.log.Error("persisting captured set failed",
			slog.Int("captured", len(ids)),
			slog.String("error", err.Error()))
	}
}
