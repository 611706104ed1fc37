// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/phoenixlens/internal/analyzer"
	"github.com/jeranaias/phoenixlens/internal/config"
	"github.com/jeranaias/phoenixlens/internal/phoenix"
)

// ============================================================================
// COLLABORATOR INTERFACES
// ============================================================================

// TraceSource fetches raw spans for a lookback window.
type TraceSource interface {
	FetchWindow(ctx context.Context, project, fallbackProject string, since time.Time) ([]phoenix.Span, string, error)
}

// EfficiencyAdvisor produces one advisory per comparison group.
type EfficiencyAdvisor interface {
	AnalyzeGroups(ctx context.Context, groups []analyzer.ComparisonGroup) []analyzer.Advisory
	Model() string
}

// SpanCache serves recent fetches from local storage.
type SpanCache interface {
	Get(ctx context.Context, endpoint, project string, since time.Time, ttl time.Duration) ([]phoenix.Span, bool, error)
	Put(ctx context.Context, endpoint, project string, since time.Time, spans []phoenix.Span) error
}

// ============================================================================
// RUNNER
// ============================================================================

// Runner executes analysis runs. Advisor and Cache are optional; a nil
// Advisor skips advisories entirely and a nil Cache always fetches.
type Runner struct {
	Config  *config.Config
	Source  TraceSource
	Advisor EfficiencyAdvisor
	Cache   SpanCache

	// now is swapped in tests for deterministic windows.
	now func() time.Time
}

// NewRunner builds a runner over the given collaborators.
func NewRunner(cfg *config.Config, source TraceSource, adv EfficiencyAdvisor, cache SpanCache) *Runner {
	return &Runner{Config: cfg, Source: source, Advisor: adv, Cache: cache, now: time.Now}
}

// Run executes one analysis: fetch, filter, group, advise. A backend
// fetch failure is fatal; advisory failures are not (they surface as
// unavailable advisories on the result).
func (r *Runner) Run(ctx context.Context) (*analyzer.Result, error) {
	cfg := r.Config
	now := r.now().UTC()
	since := now.Add(-time.Duration(cfg.Analysis.MinutesBack) * time.Minute)

	spans, usedProject, fromCache, err := r.fetch(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("fetching spans: %w", err)
	}

	result := analyzer.NewResult(cfg.Phoenix.Endpoint, usedProject, cfg.Analysis.MinutesBack)
	result.FromCache = fromCache

	records, skipped := phoenix.ConvertSpans(spans, cfg.Analysis.PreviewChars)
	result.Skipped = skipped
	result.Calls = analyzer.FilterLLMCalls(records)

	grouping := analyzer.GroupByStartTime(result.Calls)
	result.Groups = grouping.Groups
	result.SingletonCount = grouping.SingletonCount

	if r.Advisor != nil && len(result.Groups) > 0 {
		result.Advisories = r.Advisor.AnalyzeGroups(ctx, result.Groups)
	}
	return result, nil
}

// fetch serves the window from cache when fresh, falling back to the
// backend and repopulating the cache on a miss.
func (r *Runner) fetch(ctx context.Context, since time.Time) (spans []phoenix.Span, usedProject string, fromCache bool, err error) {
	cfg := r.Config
	primary := cfg.Phoenix.Project
	fallback := cfg.Phoenix.FallbackProject

	if r.Cache != nil && cfg.Cache.Enabled {
		ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
		for _, project := range cacheCandidates(primary, fallback) {
			cached, hit, cerr := r.Cache.Get(ctx, cfg.Phoenix.Endpoint, project, since, ttl)
			if cerr != nil {
				// Cache trouble downgrades to a backend fetch.
				break
			}
			if hit && len(cached) > 0 {
				return cached, project, true, nil
			}
		}
	}

	spans, usedProject, err = r.Source.FetchWindow(ctx, primary, fallback, since)
	if err != nil {
		return nil, "", false, err
	}
	if r.Cache != nil && cfg.Cache.Enabled {
		// Best effort: a failed cache write must not fail the run.
		_ = r.Cache.Put(ctx, cfg.Phoenix.Endpoint, usedProject, since, spans)
	}
	return spans, usedProject, false, nil
}

// cacheCandidates lists the projects worth probing in the cache.
func cacheCandidates(primary, fallback string) []string {
	if fallback == "" || fallback == primary {
		return []string{primary}
	}
	return []string{primary, fallback}
}
