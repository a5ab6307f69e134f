package capture

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_Record(t *testing.T) {
	reg := NewRegistry()

	t.Run("new_capture_inserts", func(t *testing.T) {
		assert.Equal(t, OutcomeNew, reg.Record(25))
		assert.True(t, reg.Contains(25))
		assert.Equal(t, []int{25}, reg.Snapshot())
	})

	t.Run("duplicate_does_not_mutate", func(t *testing.T) {
		assert.Equal(t, OutcomeDuplicate, reg.Record(25))
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("insertion_order_kept", func(t *testing.T) {
		reg.Record(4)
		reg.Record(1)
		assert.Equal(t, []int{25, 4, 1}, reg.Snapshot())
	})

	t.Run("out_of_range_accepted", func(t *testing.T) {
		assert.Equal(t, OutcomeNew, reg.Record(9999))
		assert.True(t, reg.Contains(9999))
	})
}

func TestRegistry_Record_concurrent_same_id(t *testing.T) {
	reg := NewRegistry()

	const workers = 64
	outcomes := make(chan Outcome, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			outcomes <- reg.Record(150)
		}()
	}
	close(start)
	wg.Wait()
	close(outcomes)

	news := 0
	for o := range outcomes {
		if o == OutcomeNew {
			news++
		}
	}
	assert.Equal(t, 1, news, "exactly one caller may observe a new capture")
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_Reset(t *testing.T) {
	reg := NewRegistry()
	reg.Record(1)
	reg.Record(2)

	ids := reg.Reset()
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, OutcomeNew, reg.Record(1), "reset ids can be captured again")
}

func TestRegistry_CompleteAll(t *testing.T) {
	reg := NewRegistry()
	reg.Record(500)

	ids := reg.CompleteAll(CollectionSize)
	assert.Len(t, ids, CollectionSize)
	assert.Equal(t, 1, ids[0])
	assert.Equal(t, CollectionSize, ids[len(ids)-1])
	assert.False(t, reg.Contains(500), "complete replaces the set")
	assert.Equal(t, OutcomeDuplicate, reg.Record(25))

	// Returned slice is a copy.
	ids[0] = -1
	assert.Equal(t, 1, reg.Snapshot()[0])
}

func TestRegistry_Replace_dedups(t *testing.T) {
	reg := NewRegistry()
	reg.Replace([]int{3, 3, 7, 3, 1})
	assert.Equal(t, []int{3, 7, 1}, reg.Snapshot())

	reg.Replace(nil)
	assert.Equal(t, []int{}, reg.Snapshot())
}

func TestRegistry_Snapshot_is_copy(t *testing.T) {
	reg := NewRegistry()
	reg.Record(10)
	snap := reg.Snapshot()
	snap[0] = 11
	assert.True(t, reg.Contains(10))
	assert.Equal(t, []int{10}, reg.Snapshot())
}
