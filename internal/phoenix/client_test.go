// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package phoenix

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient builds a client against a test server with backoff
// sleeps disabled.
func newTestClient(serverURL string) *Client {
	c := NewClient(serverURL, 5*time.Second)
	c.sleep = func(time.Duration) {}
	return c
}

func spanJSON(spanID string, start time.Time) Span {
	return Span{
		Context:   SpanContext{TraceID: "t1", SpanID: spanID},
		Name:      "ChatCompletion",
		SpanKind:  "LLM",
		StartTime: start,
		EndTime:   start.Add(time.Second),
	}
}

func TestGetSpansPagination(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cursor := "page2"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/projects/default/spans", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("start_time"))

		var page spanPage
		if r.URL.Query().Get("cursor") == "" {
			page = spanPage{Data: []Span{spanJSON("a", base)}, NextCursor: &cursor}
		} else {
			assert.Equal(t, "page2", r.URL.Query().Get("cursor"))
			page = spanPage{Data: []Span{spanJSON("b", base.Add(time.Minute))}}
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	spans, err := newTestClient(srv.URL).GetSpans(context.Background(), "default", base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, spans, 2)
	assert.Equal(t, "a", spans[0].Context.SpanID)
	assert.Equal(t, "b", spans[1].Context.SpanID)
}

func TestGetSpansRetriesTransientFailure(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	attempts := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, `{"detail":"overloaded"}`, http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(spanPage{Data: []Span{spanJSON("a", base)}})
	}))
	defer srv.Close()

	spans, err := newTestClient(srv.URL).GetSpans(context.Background(), "default", base)
	require.NoError(t, err)
	assert.Len(t, spans, 1)
	assert.Equal(t, 3, attempts)
}

func TestGetSpansNonRetryableStatus(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, `{"detail":"bad request"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetSpans(context.Background(), "default", time.Now())
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "bad request", apiErr.Message)
	assert.Equal(t, 1, attempts, "4xx must not be retried")
}

func TestGetSpansProjectNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetSpans(context.Background(), "missing", time.Now())
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestGetSpansUnreachable(t *testing.T) {
	// Port 1 is never listening.
	c := newTestClient("http://127.0.0.1:1")
	_, err := c.GetSpans(context.Background(), "default", time.Now())
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestFetchWindowFallback(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/projects/primary/spans":
			json.NewEncoder(w).Encode(spanPage{}) // empty window
		case "/v1/projects/backup/spans":
			json.NewEncoder(w).Encode(spanPage{Data: []Span{spanJSON("a", base)}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	spans, used, err := newTestClient(srv.URL).FetchWindow(context.Background(), "primary", "backup", base)
	require.NoError(t, err)
	assert.Equal(t, "backup", used)
	assert.Len(t, spans, 1)
}

func TestFetchWindowNoFallbackConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(spanPage{})
	}))
	defer srv.Close()

	spans, used, err := newTestClient(srv.URL).FetchWindow(context.Background(), "primary", "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "primary", used)
	assert.Empty(t, spans)
}

func TestFetchWindowPrimaryHasSpans(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var backupHit bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/projects/backup/spans" {
			backupHit = true
		}
		json.NewEncoder(w).Encode(spanPage{Data: []Span{spanJSON("a", base)}})
	}))
	defer srv.Close()

	_, used, err := newTestClient(srv.URL).FetchWindow(context.Background(), "primary", "backup", base)
	require.NoError(t, err)
	assert.Equal(t, "primary", used)
	assert.False(t, backupHit, "fallback must not be queried when primary has spans")
}

func TestListProjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/projects", r.URL.Path)
		w.Write([]byte(`{"data":[{"name":"default"},{"name":"playground"}]}`))
	}))
	defer srv.Close()

	projects, err := newTestClient(srv.URL).ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "playground", projects[1].Name)
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, calculateBackoff(1))
	assert.Equal(t, time.Second, calculateBackoff(2))
	assert.Equal(t, 2*time.Second, calculateBackoff(3))
	assert.Equal(t, 8*time.Second, calculateBackoff(10), "backoff must be capped")
}
