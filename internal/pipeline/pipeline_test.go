// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/phoenixlens/internal/analyzer"
	"github.com/jeranaias/phoenixlens/internal/config"
	"github.com/jeranaias/phoenixlens/internal/phoenix"
)

// fakeSource serves canned spans and records calls.
type fakeSource struct {
	spans   []phoenix.Span
	project string
	err     error
	calls   int
}

func (f *fakeSource) FetchWindow(ctx context.Context, project, fallback string, since time.Time) ([]phoenix.Span, string, error) {
	f.calls++
	if f.err != nil {
		return nil, project, f.err
	}
	used := f.project
	if used == "" {
		used = project
	}
	return f.spans, used, nil
}

// fakeAdvisor returns a canned advisory per group.
type fakeAdvisor struct{ calls int }

func (f *fakeAdvisor) AnalyzeGroups(ctx context.Context, groups []analyzer.ComparisonGroup) []analyzer.Advisory {
	f.calls++
	out := make([]analyzer.Advisory, len(groups))
	for i := range out {
		out[i] = analyzer.Advisory{Text: "use fewer tokens", Tokens: 100, Cost: 0.0002}
	}
	return out
}

func (f *fakeAdvisor) Model() string { return "gpt-4o-mini" }

// fakeCache is an in-memory SpanCache.
type fakeCache struct {
	spans  map[string][]phoenix.Span
	puts   int
	getErr error
}

func newFakeCache() *fakeCache { return &fakeCache{spans: map[string][]phoenix.Span{}} }

func (f *fakeCache) Get(ctx context.Context, endpoint, project string, since time.Time, ttl time.Duration) ([]phoenix.Span, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	s, ok := f.spans[project]
	return s, ok, nil
}

func (f *fakeCache) Put(ctx context.Context, endpoint, project string, since time.Time, spans []phoenix.Span) error {
	f.puts++
	f.spans[project] = spans
	return nil
}

func llmSpan(id string, start time.Time) phoenix.Span {
	return phoenix.Span{
		Context:   phoenix.SpanContext{TraceID: "t", SpanID: id},
		Name:      "openai.chat",
		SpanKind:  "LLM",
		StartTime: start,
		Attributes: map[string]any{
			"llm.model_name":        "gpt-4o",
			"llm.token_count.total": float64(100),
		},
	}
}

func chainSpan(id string, start time.Time) phoenix.Span {
	return phoenix.Span{
		Context:   phoenix.SpanContext{SpanID: id},
		Name:      "RunnableSequence",
		SpanKind:  "CHAIN",
		StartTime: start,
	}
}

func testRunner(source TraceSource, adv EfficiencyAdvisor, cache SpanCache) *Runner {
	cfg := config.Default()
	cfg.Cache.Enabled = cache != nil
	r := NewRunner(cfg, source, adv, cache)
	r.now = func() time.Time { return time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC) }
	return r
}

func TestRunEndToEnd(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	source := &fakeSource{spans: []phoenix.Span{
		llmSpan("a", base),
		llmSpan("b", base.Add(200*time.Millisecond)),
		llmSpan("lone", base.Add(time.Minute)),
		chainSpan("chain", base),
	}}
	adv := &fakeAdvisor{}

	result, err := testRunner(source, adv, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Calls, 3, "chain span filtered out")
	require.Len(t, result.Groups, 1)
	assert.Len(t, result.Groups[0].Members, 2)
	assert.Equal(t, 1, result.SingletonCount)
	require.Len(t, result.Advisories, 1)
	assert.Equal(t, "use fewer tokens", result.Advisories[0].Text)
	assert.Equal(t, "default", result.Project)
	assert.Equal(t, 60, result.WindowMinutes)
	assert.False(t, result.FromCache)
	assert.NotEmpty(t, result.RunID)
}

func TestRunFetchFailureIsFatal(t *testing.T) {
	source := &fakeSource{err: phoenix.ErrUnreachable}
	_, err := testRunner(source, nil, nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, phoenix.ErrUnreachable)
}

func TestRunNoAdvisor(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	source := &fakeSource{spans: []phoenix.Span{
		llmSpan("a", base),
		llmSpan("b", base),
	}}

	result, err := testRunner(source, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Groups, 1)
	assert.Nil(t, result.Advisories)
}

func TestRunAdvisorSkippedWithoutGroups(t *testing.T) {
	source := &fakeSource{spans: []phoenix.Span{llmSpan("a", time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC))}}
	adv := &fakeAdvisor{}

	result, err := testRunner(source, adv, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Groups)
	assert.Equal(t, 0, adv.calls, "advisor must not run without groups")
}

func TestRunCacheHit(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	cache := newFakeCache()
	cache.spans["default"] = []phoenix.Span{llmSpan("cached", base), llmSpan("cached2", base)}
	source := &fakeSource{}

	result, err := testRunner(source, nil, cache).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Equal(t, 0, source.calls, "cache hit must not hit the backend")
	assert.Len(t, result.Calls, 2)
}

func TestRunCacheMissPopulates(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	cache := newFakeCache()
	source := &fakeSource{spans: []phoenix.Span{llmSpan("a", base)}}

	result, err := testRunner(source, nil, cache).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, 1, cache.puts)
}

func TestRunCacheErrorDegradesToFetch(t *testing.T) {
	cache := newFakeCache()
	cache.getErr = errors.New("disk trouble")
	source := &fakeSource{spans: []phoenix.Span{llmSpan("a", time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC))}}

	result, err := testRunner(source, nil, cache).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
	assert.Len(t, result.Calls, 1)
}

func TestRunRecordsFallbackProject(t *testing.T) {
	source := &fakeSource{project: "backup", spans: []phoenix.Span{
		llmSpan("a", time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)),
	}}
	r := testRunner(source, nil, nil)
	r.Config.Phoenix.FallbackProject = "backup"

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "backup", result.Project)
}
