// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/phoenixlens/internal/analyzer"
	"github.com/jeranaias/phoenixlens/internal/util"
)

// ErrRunNotFound indicates no stored run matches the requested ID.
var ErrRunNotFound = errors.New("run not found")

// RunMeta is the listing view of a stored run, cheap to build without
// loading the full snapshot.
type RunMeta struct {
	RunID      string    `json:"run_id"`
	RunTime    time.Time `json:"run_time"`
	Project    string    `json:"project"`
	Calls      int       `json:"calls"`
	Groups     int       `json:"groups"`
	Singletons int       `json:"singletons"`
}

// RunStore persists analysis results as one JSON file per run.
type RunStore struct {
	mu      sync.Mutex
	dir     string
	maxRuns int
}

// NewRunStore creates a store rooted at dir, retaining at most maxRuns
// snapshots (oldest pruned on save).
func NewRunStore(dir string, maxRuns int) (*RunStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating runs directory: %w", err)
	}
	return &RunStore{dir: dir, maxRuns: maxRuns}, nil
}

func (s *RunStore) path(runID string) string {
	return filepath.Join(s.dir, util.SanitizeFilename(runID)+".json")
}

// Save persists a run snapshot and prunes beyond the retention cap.
func (s *RunStore) Save(r *analyzer.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run %s: %w", r.RunID, err)
	}
	if err := util.AtomicWriteFile(s.path(r.RunID), data, 0o600); err != nil {
		return fmt.Errorf("writing run %s: %w", r.RunID, err)
	}
	return s.pruneLocked()
}

// Load returns a stored run snapshot by ID. The ID may be a unique
// prefix of the full run ID.
func (s *RunStore) Load(runID string) (*analyzer.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(runID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		resolved, rerr := s.resolvePrefixLocked(runID)
		if rerr != nil {
			return nil, rerr
		}
		path = s.path(resolved)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("reading run %s: %w", runID, err)
	}
	var r analyzer.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", runID, err)
	}
	return &r, nil
}

// resolvePrefixLocked maps a run ID prefix to the full ID, failing on
// no match or on ambiguity.
func (s *RunStore) resolvePrefixLocked(prefix string) (string, error) {
	ids, err := s.idsLocked()
	if err != nil {
		return "", err
	}
	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(id, prefix) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("run ID prefix %q is ambiguous (%d matches)", prefix, len(matches))
	}
}

// List returns metadata for all stored runs, newest first.
func (s *RunStore) List() ([]RunMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.idsLocked()
	if err != nil {
		return nil, err
	}
	var metas []RunMeta
	for _, id := range ids {
		data, err := os.ReadFile(s.path(id))
		if err != nil {
			continue
		}
		var r analyzer.Result
		if json.Unmarshal(data, &r) != nil {
			continue
		}
		metas = append(metas, RunMeta{
			RunID:      r.RunID,
			RunTime:    r.RunTime,
			Project:    r.Project,
			Calls:      len(r.Calls),
			Groups:     len(r.Groups),
			Singletons: r.SingletonCount,
		})
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].RunTime.After(metas[j].RunTime)
	})
	return metas, nil
}

// Delete removes a stored run.
func (s *RunStore) Delete(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(runID))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return err
}

// Clear removes all stored runs.
func (s *RunStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.idsLocked()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := os.Remove(s.path(id)); err != nil {
			return fmt.Errorf("removing run %s: %w", id, err)
		}
	}
	return nil
}

func (s *RunStore) idsLocked() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading runs directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}

// pruneLocked drops the oldest runs beyond the retention cap.
func (s *RunStore) pruneLocked() error {
	if s.maxRuns <= 0 {
		return nil
	}
	ids, err := s.idsLocked()
	if err != nil {
		return err
	}
	if len(ids) <= s.maxRuns {
		return nil
	}

	type entry struct {
		id  string
		mod time.Time
	}
	entries := make([]entry, 0, len(ids))
	for _, id := range ids {
		info, err := os.Stat(s.path(id))
		if err != nil {
			continue
		}
		entries = append(entries, entry{id, info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].mod.Before(entries[j].mod)
	})
	for _, e := range entries[:len(entries)-s.maxRuns] {
		if err := os.Remove(s.path(e.id)); err != nil {
			return fmt.Errorf("pruning run %s: %w", e.id, err)
		}
	}
	return nil
}
