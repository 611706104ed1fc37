// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analyzer

import (
	"sort"
	"time"
)

// ============================================================================
// COMPARISON GROUPING
// ============================================================================

// ComparisonGroup is a set of two or more LLM calls that began at the
// same instant. Calls fired in the same playground "compare" action
// share a start timestamp, so grouping on it recovers which calls were
// variants of one prompt.
type ComparisonGroup struct {
	// StartTime is the shared timestamp, truncated to whole seconds.
	StartTime time.Time `json:"start_time"`

	// Members are the grouped calls in input order. Always len >= 2.
	Members []CallRecord `json:"members"`
}

// Models returns the distinct model names across the group's members,
// in member order.
func (g *ComparisonGroup) Models() []string {
	seen := make(map[string]bool, len(g.Members))
	var models []string
	for _, m := range g.Members {
		if !seen[m.Model] {
			seen[m.Model] = true
			models = append(models, m.Model)
		}
	}
	return models
}

// TotalTokens sums the total token counts across the group's members.
func (g *ComparisonGroup) TotalTokens() int {
	var n int
	for _, m := range g.Members {
		n += m.Tokens.Total
	}
	return n
}

// Grouping is the outcome of partitioning filtered calls by start time.
type Grouping struct {
	// Groups holds every bucket with at least two members, ordered by
	// start time ascending.
	Groups []ComparisonGroup `json:"groups"`

	// SingletonCount is the number of calls whose start time matched
	// no other call. Singletons are counted, never discarded from the
	// call list, but they form no comparison group.
	SingletonCount int `json:"singleton_count"`
}

// groupKey buckets a timestamp for comparison grouping. Sub-second
// precision is discarded because concurrently fired calls are recorded
// a few microseconds apart; equality on the whole second is what makes
// them "simultaneous".
func groupKey(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// GroupByStartTime partitions records into comparison groups keyed on
// the start timestamp truncated to whole seconds. Records within a
// group keep their input order; groups are sorted by start time
// ascending. For chronologically sorted input, as ConvertSpans
// produces, that is also the order each key first appears.
func GroupByStartTime(records []CallRecord) Grouping {
	buckets := make(map[time.Time][]CallRecord)
	for _, r := range records {
		k := groupKey(r.StartTime)
		buckets[k] = append(buckets[k], r)
	}

	var g Grouping
	for k, members := range buckets {
		if len(members) < 2 {
			g.SingletonCount += len(members)
			continue
		}
		g.Groups = append(g.Groups, ComparisonGroup{StartTime: k, Members: members})
	}
	sort.Slice(g.Groups, func(i, j int) bool {
		return g.Groups[i].StartTime.Before(g.Groups[j].StartTime)
	})
	return g
}
