package capture

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"pokedex-live/internal/platform/logger"
	"pokedex-live/internal/platform/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	log := logger.Discard()
	return NewService(NewRegistry(), store, NewHub(log, nil), log, metrics.New())
}

// connectViewer attaches a queue-only viewer and returns its snapshot.
func connectViewer(t *testing.T, svc *Service) (*Session, wireMessage) {
	t.Helper()
	s := NewSession(nil)
	require.NoError(t, svc.Connect(s))
	return s, nextQueued(t, s)
}

func TestService_Restore(t *testing.T) {
	store := NewInMemoryStore(25, 1, 25)
	svc := newTestService(t, store)
	svc.Restore()

	assert.Equal(t, []int{25, 1}, svc.Snapshot())
	assert.Equal(t, 2, svc.CapturedCount())
}

func TestService_Restore_load_failure_starts_empty(t *testing.T) {
	store := NewInMemoryStore(25)
	store.FailLoad(errors.New("unreadable"))
	svc := newTestService(t, store)

	assert.NotPanics(t, svc.Restore)
	assert.Empty(t, svc.Snapshot())
}

func TestService_Restore_from_malformed_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewFileStore(path)
	require.NoError(t, store.Save([]int{4}))
	require.NoError(t, os.WriteFile(path, []byte("][\n"), 0o644))

	svc := newTestService(t, store)
	svc.Restore()
	assert.Empty(t, svc.Snapshot())

	// A later mutation overwrites the bad file with valid content.
	svc.RecordCapture(7, "Squirtle")
	ids, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []int{7}, ids)
}

func TestService_RecordCapture_new_then_duplicate(t *testing.T) {
	store := NewInMemoryStore()
	svc := newTestService(t, store)
	svc.Restore()
	viewer, snap := connectViewer(t, svc)
	assert.Empty(t, snap.Captured)

	ev := svc.RecordCapture(25, "Pikachu")
	assert.Equal(t, OutcomeNew, ev.Outcome)
	assert.Equal(t, []int{25}, store.IDs())

	msg := nextQueued(t, viewer)
	assert.Equal(t, wireMessage{ID: 25, Name: "Pikachu", Action: ActionNewCapture}, msg)

	saves := store.Saves()
	ev = svc.RecordCapture(25, "Pikachu")
	assert.Equal(t, OutcomeDuplicate, ev.Outcome)
	assert.Equal(t, []int{25}, store.IDs())
	assert.Equal(t, saves, store.Saves(), "duplicates are not persisted")

	msg = nextQueued(t, viewer)
	assert.Equal(t, wireMessage{ID: 25, Name: "Pikachu", Action: ActionDuplicateCapture}, msg)
	assertNothingQueued(t, viewer)
}

func TestService_RecordCapture_any_order_same_set(t *testing.T) {
	submitted := []int{1, 4, 7, 25, 25, 150, 4, 1, 133, 999}
	want := []int{1, 4, 7, 25, 150, 133, 999}

	for seed := int64(0); seed < 5; seed++ {
		order := append([]int(nil), submitted...)
		rand.New(rand.NewSource(seed)).Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		store := NewInMemoryStore()
		svc := newTestService(t, store)
		for _, id := range order {
			svc.RecordCapture(id, "x")
		}
		assert.ElementsMatch(t, want, svc.Snapshot(), "seed %d", seed)
		assert.ElementsMatch(t, want, store.IDs(), "seed %d", seed)
	}
}

func TestService_RecordCapture_concurrent(t *testing.T) {
	store := NewInMemoryStore()
	svc := newTestService(t, store)
	viewer, _ := connectViewer(t, svc)

	const perID = 8
	ids := []int{1, 2, 3, 4, 5}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		news = make(map[int]int)
	)
	for _, id := range ids {
		for i := 0; i < perID; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				if svc.RecordCapture(id, "x").Outcome == OutcomeNew {
					mu.Lock()
					news[id]++
					mu.Unlock()
				}
			}(id)
		}
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, 1, news[id], "id %d", id)
	}
	assert.ElementsMatch(t, ids, svc.Snapshot())
	assert.ElementsMatch(t, ids, store.IDs(), "last save must reflect the final set")

	// The viewer saw one new_capture per id and the rest as duplicates.
	seenNew := 0
	for i := 0; i < len(ids)*perID; i++ {
		if nextQueued(t, viewer).Action == ActionNewCapture {
			seenNew++
		}
	}
	assert.Equal(t, len(ids), seenNew)
}

func TestService_RecordCapture_persist_failure_is_swallowed(t *testing.T) {
	store := NewInMemoryStore()
	store.FailSave(errors.New("disk full"))
	svc := newTestService(t, store)

	ev := svc.RecordCapture(25, "Pikachu")
	assert.Equal(t, OutcomeNew, ev.Outcome)
	assert.Equal(t, []int{25}, svc.Snapshot(), "registry stays authoritative")
	assert.Empty(t, store.IDs())

	assert.Equal(t, OutcomeDuplicate, svc.RecordCapture(25, "Pikachu").Outcome)
}

func TestService_Reset(t *testing.T) {
	store := NewInMemoryStore(25)
	svc := newTestService(t, store)
	svc.Restore()
	viewer, snap := connectViewer(t, svc)
	assert.Equal(t, []int{25}, snap.Captured)

	ids := svc.Reset()
	assert.Empty(t, ids)
	assert.Empty(t, svc.Snapshot())
	assert.Empty(t, store.IDs())

	msg := nextQueued(t, viewer)
	assert.Equal(t, MessageTypeInitialState, msg.Type)
	assert.NotNil(t, msg.Captured)
	assert.Empty(t, msg.Captured)
}

func TestService_CompleteAll(t *testing.T) {
	store := NewInMemoryStore(3)
	svc := newTestService(t, store)
	svc.Restore()
	viewer, _ := connectViewer(t, svc)

	ids := svc.CompleteAll()
	assert.Len(t, ids, CollectionSize)
	assert.Len(t, store.IDs(), CollectionSize)

	msg := nextQueued(t, viewer)
	assert.Equal(t, MessageTypeInitialState, msg.Type)
	require.Len(t, msg.Captured, CollectionSize)
	for i, id := range msg.Captured {
		assert.Equal(t, i+1, id)
	}
}

func TestService_Connect_late_viewer_gets_current_state(t *testing.T) {
	svc := newTestService(t, NewInMemoryStore())
	svc.RecordCapture(1, "Bulbasaur")
	svc.RecordCapture(4, "Charmander")
	svc.Reset()
	svc.RecordCapture(7, "Squirtle")
	svc.RecordCapture(25, "Pikachu")
	svc.RecordCapture(7, "Squirtle")

	viewer, snap := connectViewer(t, svc)
	assert.Equal(t, MessageTypeInitialState, snap.Type)
	assert.Equal(t, []int{7, 25}, snap.Captured)
	assertNothingQueued(t, viewer)
	assert.Equal(t, 1, svc.ViewerCount())
}

func TestService_Shutdown_closes_viewers(t *testing.T) {
	svc := newTestService(t, NewInMemoryStore())
	viewer, _ := connectViewer(t, svc)

	svc.Shutdown()
	assert.True(t, viewer.Closed())
	assert.Equal(t, 0, svc.ViewerCount())
	assert.ErrorIs(t, svc.Connect(NewSession(nil)), ErrHubClosed)
}
