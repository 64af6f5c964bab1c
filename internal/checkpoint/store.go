// Package checkpoint persists completed crawl work so interrupted runs can
// resume without refetching.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/frostyslav/OSGenome/internal/snp"
)

// Snapshot is the durable record of a crawl's completed identifiers and their
// fetched records. Every identifier in Completed has an entry in Results.
type Snapshot struct {
	Completed []string              `json:"completed"`
	Results   map[string]snp.Record `json:"results"`
	SavedAt   time.Time             `json:"saved_at"`
}

// Empty reports whether the snapshot records no completed work.
func (s Snapshot) Empty() bool {
	return len(s.Completed) == 0
}

// CompletedSet returns the completed identifiers as a set.
func (s Snapshot) CompletedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Completed))
	for _, id := range s.Completed {
		set[id] = struct{}{}
	}
	return set
}

// Store reads and writes checkpoint snapshots at a fixed path. Saves replace
// the previous file atomically (write temp, then rename) so a crash never
// leaves a half-written checkpoint. Writers hold an exclusive lock for the
// whole write-and-rename sequence.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store for the given file path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("checkpoint path is required")
	}
	return &Store{path: path}, nil
}

// Path returns the checkpoint file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the current snapshot. A missing file yields an empty snapshot,
// not an error. For migration, a file holding a bare {rsid: record} map (the
// legacy results format) is accepted: every key counts as completed.
func (s *Store) Load() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{Results: map[string]snp.Record{}}, nil
		}
		return Snapshot{}, fmt.Errorf("read checkpoint: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("decode checkpoint %s: %w", s.path, err)
	}

	if _, ok := raw["completed"]; ok {
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return Snapshot{}, fmt.Errorf("decode checkpoint %s: %w", s.path, err)
		}
		if snap.Results == nil {
			snap.Results = map[string]snp.Record{}
		}
		return snap, nil
	}

	// Legacy layout: the whole file is the results map.
	results := make(map[string]snp.Record, len(raw))
	completed := make([]string, 0, len(raw))
	for rsid, msg := range raw {
		var rec snp.Record
		if err := json.Unmarshal(msg, &rec); err != nil {
			return Snapshot{}, fmt.Errorf("decode legacy record %q in %s: %w", rsid, s.path, err)
		}
		results[rsid] = rec
		completed = append(completed, rsid)
	}
	sort.Strings(completed)
	return Snapshot{Completed: completed, Results: results}, nil
}

// Save atomically replaces the checkpoint file with the given snapshot.
// It rejects snapshots whose completed set is not fully backed by results.
func (s *Store) Save(snap Snapshot) error {
	for _, id := range snap.Completed {
		if _, ok := snap.Results[id]; !ok {
			return fmt.Errorf("checkpoint invariant violated: %q completed without a result", id)
		}
	}
	if snap.Results == nil {
		snap.Results = map[string]snp.Record{}
	}
	sort.Strings(snap.Completed)

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}
