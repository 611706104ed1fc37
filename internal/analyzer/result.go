// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analyzer

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// ANALYSIS RESULT
// ============================================================================

// Advisory is the efficiency comparison produced for one comparison
// group. When the advisor call failed, Unavailable is true and Err
// carries a short reason; the group itself is still reported.
type Advisory struct {
	Text        string  `json:"text,omitempty"`
	Model       string  `json:"model,omitempty"`
	Tokens      int     `json:"tokens,omitempty"`
	Cost        float64 `json:"cost,omitempty"`
	Unavailable bool    `json:"unavailable,omitempty"`
	Err         string  `json:"error,omitempty"`
}

// Result is the immutable snapshot of one analysis run. Every consumer
// (terminal report, exporters, run storage, spend tracking) reads from
// the same Result; none of them re-derive state from the backend.
type Result struct {
	// RunID uniquely identifies this analysis run.
	RunID string `json:"run_id"`

	// RunTime is when the analysis executed, UTC.
	RunTime time.Time `json:"run_time"`

	// Endpoint and Project identify where the spans came from.
	Endpoint string `json:"endpoint"`
	Project  string `json:"project"`

	// WindowMinutes is the lookback window that bounded the fetch.
	WindowMinutes int `json:"window_minutes"`

	// Calls are the filtered LLM invocations, oldest first.
	Calls []CallRecord `json:"calls"`

	// Groups are the comparison groups found among Calls, with their
	// advisories (if any) attached positionally: Advisories[i] belongs
	// to Groups[i]. Advisories is nil when the advisor was disabled.
	Groups     []ComparisonGroup `json:"groups"`
	Advisories []Advisory        `json:"advisories,omitempty"`

	// SingletonCount is the number of LLM calls that matched no group.
	SingletonCount int `json:"singleton_count"`

	// Skipped is the number of spans dropped during normalization
	// because they were malformed (e.g. missing a start timestamp).
	Skipped int `json:"skipped,omitempty"`

	// FromCache is true when the spans were served from the local
	// span cache rather than fetched from the backend.
	FromCache bool `json:"from_cache,omitempty"`
}

// NewResult builds a Result skeleton for an analysis run, assigning a
// fresh run ID and stamping the run time.
func NewResult(endpoint, project string, windowMinutes int) *Result {
	return &Result{
		RunID:         uuid.New().String(),
		RunTime:       time.Now().UTC(),
		Endpoint:      endpoint,
		Project:       project,
		WindowMinutes: windowMinutes,
	}
}

// TotalTokens sums token totals across all filtered calls.
func (r *Result) TotalTokens() int {
	var n int
	for _, c := range r.Calls {
		n += c.Tokens.Total
	}
	return n
}

// AdvisoryCost sums the advisor spend across all advisories.
func (r *Result) AdvisoryCost() float64 {
	var cost float64
	for _, a := range r.Advisories {
		cost += a.Cost
	}
	return cost
}

// AdvisoryTokens sums the advisor token usage across all advisories.
func (r *Result) AdvisoryTokens() int {
	var n int
	for _, a := range r.Advisories {
		n += a.Tokens
	}
	return n
}

// RecentCalls returns up to max of the most recent calls, newest first.
func (r *Result) RecentCalls(max int) []CallRecord {
	if max <= 0 || len(r.Calls) == 0 {
		return nil
	}
	// Calls are oldest-first; walk from the tail.
	n := min(max, len(r.Calls))
	out := make([]CallRecord, 0, n)
	for i := len(r.Calls) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, r.Calls[i])
	}
	return out
}
