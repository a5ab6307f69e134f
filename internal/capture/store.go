package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Store is the durable mirror of the captured set.
// The Service writes the full set on every mutation; implementations must
// replace prior content rather than append to it.
type Store interface {
	// Load returns the persisted IDs. A store with no prior state returns an
	// empty slice and no error.
	Load() ([]int, error)

	// Save overwrites the persisted IDs with ids.
	Save(ids []int) error
}

// ErrMalformedState is returned by FileStore.Load when the file exists but
// does not hold a valid captured set.
var ErrMalformedState = errors.New("malformed state file")

// stateFile is the on-disk layout: {"captured": [1, 4, 25]}.
type stateFile struct {
	Captured []int `json:"captured"`
}

// FileStore persists the captured set as a JSON document.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store.Load. When the file does not exist it is created
// empty. An unreadable or malformed file is reported as an error; the caller
// decides how to degrade.
func (s *FileStore) Load() ([]int, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.Save(nil); err != nil {
			return []int{}, fmt.Errorf("initializing %s: %w", s.path, err)
		}
		return []int{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var st stateFile
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedState, s.path, err)
	}
	if st.Captured == nil {
		return []int{}, nil
	}
	return st.Captured, nil
}

// Save implements Store.Save. The document is written to a temporary file in
// the same directory and renamed over the target, so a crash leaves either
// the old or the new content.
func (s *FileStore) Save(ids []int) error {
	if ids == nil {
		ids = []int{}
	}
	data, err := json.MarshalIndent(stateFile{Captured: ids}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding captured set: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing state data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing temp state file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("renaming state file to %s: %w", s.path, err)
	}

	success = true
	return nil
}

// InMemoryStore is a Store that keeps the last saved set in memory.
// Tests use it to observe persistence and to inject failures.
type InMemoryStore struct {
	mu      sync.Mutex
	ids     []int
	saves   int
	loadErr error
	saveErr error
}

// NewInMemoryStore returns a store preloaded with ids.
func NewInMemoryStore(ids ...int) *InMemoryStore {
	return &InMemoryStore{ids: slices.Clone(ids)}
}

// Load implements Store.Load.
func (s *InMemoryStore) Load() ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.ids == nil {
		return []int{}, nil
	}
	return slices.Clone(s.ids), nil
}

// Save implements Store.Save.
func (s *InMemoryStore) Save(ids []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.ids = slices.Clone(ids)
	s.saves++
	return nil
}

// IDs returns the last saved set.
func (s *InMemoryStore) IDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ids)
}

// Saves returns how many successful saves happened.
func (s *InMemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// FailLoad makes subsequent Load calls return err (nil clears it).
func (s *InMemoryStore) FailLoad(err error) {
	s.mu.Lock()
	s.loadErr = err
	s.mu.Unlock()
}

// FailSave makes subsequent Save calls return err (nil clears it).
func (s *InMemoryStore) FailSave(err error) {
	s.mu.Lock()
	s.saveErr = err
	s.mu.Unlock()
}
