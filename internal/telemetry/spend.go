// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"encoding/json"
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

// ============================================================================
// SPEND RECORDS
// ============================================================================

// RunSpend is the advisory cost incurred by one analysis run.
type RunSpend struct {
	RunID      string    `json:"run_id"`
	Time       time.Time `json:"time"`
	Project    string    `json:"project"`
	Model      string    `json:"model"`
	Groups     int       `json:"groups"`
	Advisories int       `json:"advisories"`
	Tokens     int       `json:"tokens"`
	Cost       float64   `json:"cost_usd"`
}

// Summary aggregates spend across runs.
type Summary struct {
	Runs   int     `json:"runs"`
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost_usd"`
}

// SpendFromResult derives the spend record for a run. Only successful
// advisories count toward the advisory total; failed ones cost nothing.
func SpendFromResult(r *analyzer.Result, model string) RunSpend {
	s := RunSpend{
		RunID:   r.RunID,
		Time:    r.RunTime,
		Project: r.Project,
		Model:   model,
		Groups:  len(r.Groups),
	}
	for _, a := range r.Advisories {
		if a.Unavailable {
			continue
		}
		s.Advisories++
		s.Tokens += a.Tokens
		s.Cost += a.Cost
	}
	return s
}

// ============================================================================
// TRACKER
// ============================================================================

// Tracker persists spend records as one JSON file per run.
type Tracker struct {
	mu  sync.Mutex
	dir string
}

// NewTracker creates a tracker rooted at dir, creating it if needed.
func NewTracker(dir string) (*Tracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating spend directory: %w", err)
	}
	return &Tracker{dir: dir}, nil
}

// Record persists a run's spend. Runs with no successful advisories
// are still recorded so the costs command shows a complete history.
func (t *Tracker) Record(s RunSpend) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding spend record: %w", err)
	}
	path := filepath.Join(t.dir, util.SanitizeFilename(s.RunID)+".json")
	if err := util.AtomicWriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing spend record: %w", err)
	}
	return nil
}

// List returns all spend records, newest first. Unreadable files are
// skipped rather than failing the listing.
func (t *Tracker) List() ([]RunSpend, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return nil, fmt.Errorf("reading spend directory: %w", err)
	}
	var records []RunSpend
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(t.dir, e.Name()))
		if err != nil {
			continue
		}
		var s RunSpend
		if json.Unmarshal(data, &s) != nil {
			continue
		}
		records = append(records, s)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Time.After(records[j].Time)
	})
	return records, nil
}

// Total aggregates all recorded spend.
func (t *Tracker) Total() (Summary, error) {
	records, err := t.List()
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	for _, r := range records {
		sum.Runs++
		sum.Tokens += r.Tokens
		sum.Cost += r.Cost
	}
	return sum, nil
}

// Since aggregates spend for runs at or after the cutoff.
func (t *Tracker) Since(cutoff time.Time) (Summary, error) {
	records, err := t.List()
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	for _, r := range records {
		if r.Time.Before(cutoff) {
			continue
		}
		sum.Runs++
		sum.Tokens += r.Tokens
		sum.Cost += r.Cost
	}
	return sum, nil
}

// Clear removes all spend records.
func (t *Tracker) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return fmt.Errorf("reading spend directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(t.dir, e.Name())); err != nil {
			return fmt.Errorf("removing %s: %w", e.Name(), err)
		}
	}
	return nil
}
