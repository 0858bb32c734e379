package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/pingmonitor/internal/repo"
)

type document struct {
	IntervalSeconds int      `json:"interval_seconds"`
	HostsSet        []string `json:"hosts_set"`
}

// Store reads and writes a single state file. Writes go to a temporary file
// that is renamed over the target.
type Store struct {
	path string

	mu          sync.Mutex
	lastWritten []byte
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

func (s *Store) Load(ctx context.Context) (repo.State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return repo.State{}, nil
		}
		return repo.State{}, fmt.Errorf("read state: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return repo.State{}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return repo.State{}, fmt.Errorf("parse state %s: %w", s.path, err)
	}
	return repo.State{Records: doc.HostsSet, IntervalSeconds: doc.IntervalSeconds}, nil
}

func (s *Store) Save(ctx context.Context, st repo.State) error {
	records := append([]string(nil), st.Records...)
	sort.Strings(records)
	if records == nil {
		records = []string{}
	}

	data, err := json.MarshalIndent(document{IntervalSeconds: st.IntervalSeconds, HostsSet: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure state directory: %w", err)
	}
	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace state file: %w", err)
	}
	s.lastWritten = data
	return nil
}

// changedExternally reports whether the file differs from what this store
// last wrote.
func (s *Store) changedExternally() bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return !errors.Is(err, os.ErrNotExist)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !bytes.Equal(data, s.lastWritten)
}
