// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/phoenixlens/internal/analyzer"
	"github.com/jeranaias/phoenixlens/internal/config"
)

func testAdvisorConfig() config.AdvisorConfig {
	cfg := config.Default().Advisor
	cfg.APIKey = "sk-test"
	cfg.RequestsPerSecond = 1000 // no pacing in tests
	cfg.TimeoutSeconds = 5
	return cfg
}

// newTestAdvisor builds an advisor pointed at a stub server.
func newTestAdvisor(serverURL string) *Advisor {
	a := New(testAdvisorConfig())
	a.baseURL = serverURL
	a.sleep = func(time.Duration) {}
	return a
}

func group(start time.Time, models ...string) analyzer.ComparisonGroup {
	g := analyzer.ComparisonGroup{StartTime: start}
	for i, m := range models {
		g.Members = append(g.Members, analyzer.CallRecord{
			SpanID:    fmt.Sprintf("s%d", i),
			Model:     m,
			StartTime: start,
			Tokens:    analyzer.TokenCounts{Prompt: 100, Completion: 50, Total: 150},
		})
	}
	return g
}

func completionResponse(text string, tokens int) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": text}, "finish_reason": "stop"},
		},
		"usage": map[string]any{"prompt_tokens": tokens - 50, "completion_tokens": 50, "total_tokens": tokens},
	}
}

func TestAnalyzeGroups(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.InDelta(t, 0.3, req.Temperature, 1e-9)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "Variant A")
		assert.Contains(t, req.Messages[1].Content, "Variant B")

		json.NewEncoder(w).Encode(completionResponse("Variant B is cheaper.", 500))
	}))
	defer srv.Close()

	a := newTestAdvisor(srv.URL)
	advisories := a.AnalyzeGroups(context.Background(), []analyzer.ComparisonGroup{
		group(start, "gpt-4o", "gpt-4o-mini"),
	})

	require.Len(t, advisories, 1)
	adv := advisories[0]
	assert.False(t, adv.Unavailable)
	assert.Equal(t, "Variant B is cheaper.", adv.Text)
	assert.Equal(t, 500, adv.Tokens)
	assert.InDelta(t, 500*0.000002, adv.Cost, 1e-12)
}

func TestAnalyzeGroupsPositional(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	calls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		calls++
		mu.Unlock()
		// Echo the group's timestamp back so the test can check that
		// advisory i matches group i despite concurrent execution.
		var stamp string
		for _, line := range strings.Split(req.Messages[1].Content, "\n") {
			if strings.Contains(line, "simultaneously at") {
				stamp = line
			}
		}
		json.NewEncoder(w).Encode(completionResponse(stamp, 100))
	}))
	defer srv.Close()

	groups := []analyzer.ComparisonGroup{
		group(start, "a", "b"),
		group(start.Add(10*time.Second), "c", "d"),
		group(start.Add(20*time.Second), "e", "f"),
	}

	a := newTestAdvisor(srv.URL)
	advisories := a.AnalyzeGroups(context.Background(), groups)

	require.Len(t, advisories, 3)
	assert.Equal(t, 3, calls)
	for i, adv := range advisories {
		require.False(t, adv.Unavailable)
		assert.Contains(t, adv.Text, groups[i].StartTime.Format("15:04:05"),
			"advisory %d must belong to group %d", i, i)
	}
}

func TestAnalyzeGroupsFailureIsolation(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if strings.Contains(req.Messages[1].Content, "12:00:10") {
			http.Error(w, `{"error":{"message":"context length exceeded"}}`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(completionResponse("fine", 100))
	}))
	defer srv.Close()

	a := newTestAdvisor(srv.URL)
	advisories := a.AnalyzeGroups(context.Background(), []analyzer.ComparisonGroup{
		group(start, "a", "b"),
		group(start.Add(10*time.Second), "c", "d"),
		group(start.Add(20*time.Second), "e", "f"),
	})

	require.Len(t, advisories, 3)
	assert.False(t, advisories[0].Unavailable)
	assert.True(t, advisories[1].Unavailable)
	assert.Contains(t, advisories[1].Err, "context length exceeded")
	assert.False(t, advisories[2].Unavailable, "one failed group must not poison the others")
}

func TestAnalyzeGroupsNoKey(t *testing.T) {
	cfg := testAdvisorConfig()
	cfg.APIKey = ""
	a := New(cfg)

	advisories := a.AnalyzeGroups(context.Background(), []analyzer.ComparisonGroup{
		group(time.Now(), "a", "b"),
	})
	require.Len(t, advisories, 1)
	assert.True(t, advisories[0].Unavailable)
	assert.Contains(t, advisories[0].Err, "no OpenAI API key")
}

func TestAnalyzeGroupsEmpty(t *testing.T) {
	a := New(testAdvisorConfig())
	assert.Nil(t, a.AnalyzeGroups(context.Background(), nil))
}

func TestChatRetriesOn429(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(completionResponse("ok", 10))
	}))
	defer srv.Close()

	a := newTestAdvisor(srv.URL)
	resp, err := a.chat(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Choices[0].Message.Content)
	assert.Equal(t, 2, attempts)
}

func TestVariantLabel(t *testing.T) {
	assert.Equal(t, "A", variantLabel(0))
	assert.Equal(t, "B", variantLabel(1))
	assert.Equal(t, "Z", variantLabel(25))
	assert.Equal(t, "AA", variantLabel(26))
	assert.Equal(t, "AB", variantLabel(27))
}

func TestBuildComparisonPrompt(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := group(start, "gpt-4o", "gpt-4o-mini")
	g.Members[0].Duration = 2 * time.Second
	g.Members[0].Temperature = 0.7
	g.Members[1].Temperature = -1 // unreported

	p := buildComparisonPrompt(&g)
	assert.Contains(t, p, "2 LLM calls")
	assert.Contains(t, p, "2025-06-01 12:00:00 UTC")
	assert.Contains(t, p, "Model: gpt-4o\n")
	assert.Contains(t, p, "Duration: 2.00s")
	assert.Contains(t, p, "Temperature: 0.7")
	// Unreported temperature is omitted, not rendered as -1.
	assert.NotContains(t, p, "-1")
}
