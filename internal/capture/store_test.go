package capture

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Load_missing_file_initializes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pokedex-db.json")
	store := NewFileStore(path)

	ids, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NotNil(t, ids)

	data, err := os.ReadFile(path)
	require.NoError(t, err, "missing file should be created on load")
	assert.JSONEq(t, `{"captured":[]}`, string(data))
}

func TestFileStore_Save_then_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	store := NewFileStore(path)

	require.NoError(t, store.Save([]int{25, 1, 151}))

	ids, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []int{25, 1, 151}, ids)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"captured":[25,1,151]}`, string(data))
}

func TestFileStore_Save_replaces_content(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "state.json"))

	require.NoError(t, store.Save([]int{1, 2, 3}))
	require.NoError(t, store.Save([]int{}))

	ids, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, ids)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files should not be left behind")
}

func TestFileStore_Load_malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	ids, err := NewFileStore(path).Load()
	assert.True(t, errors.Is(err, ErrMalformedState), "got %v", err)
	assert.Empty(t, ids)
}

func TestFileStore_Load_missing_field(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	ids, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFileStore_Load_wrong_types(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"captured":["a","b"]}`), 0o644))

	_, err := NewFileStore(path).Load()
	assert.ErrorIs(t, err, ErrMalformedState)
}

func TestFileStore_Save_directory_is_file(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := NewFileStore(filepath.Join(blocker, "state.json")).Save([]int{1})
	assert.Error(t, err)
}

func TestInMemoryStore(t *testing.T) {
	store := NewInMemoryStore(4, 7)

	ids, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []int{4, 7}, ids)

	require.NoError(t, store.Save([]int{9}))
	assert.Equal(t, []int{9}, store.IDs())
	assert.Equal(t, 1, store.Saves())

	boom := errors.New("disk full")
	store.FailSave(boom)
	assert.ErrorIs(t, store.Save([]int{10}), boom)
	assert.Equal(t, []int{9}, store.IDs(), "failed save must not change content")

	store.FailLoad(boom)
	_, err = store.Load()
	assert.ErrorIs(t, err, boom)
}
