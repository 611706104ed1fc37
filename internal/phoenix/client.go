// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package phoenix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// maxRetries is the number of retry attempts for transient failures.
	maxRetries = 3

	// retryBaseDelay is the base delay between retries, doubled each
	// attempt (exponential backoff).
	retryBaseDelay = 500 * time.Millisecond

	// maxResponseBytes caps how much of a response body is read.
	// RELIABILITY: a misbehaving backend can't exhaust memory.
	maxResponseBytes = 10 * 1024 * 1024

	// pageSize is the span page size requested from the backend.
	pageSize = 100

	// maxPages bounds pagination so a pathological cursor loop can't
	// hang an analysis run.
	maxPages = 200
)

// ============================================================================
// ERRORS
// ============================================================================

// Sentinel errors for callers that branch on failure class.
var (
	// ErrUnreachable indicates the backend could not be reached at all.
	ErrUnreachable = errors.New("phoenix backend unreachable")

	// ErrProjectNotFound indicates the requested project does not exist.
	ErrProjectNotFound = errors.New("project not found")
)

// APIError is a non-2xx response from the Phoenix API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("phoenix API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("phoenix API error (status %d)", e.StatusCode)
}

// ============================================================================
// CLIENT
// ============================================================================

// Client talks to a Phoenix backend over its REST API. Methods are
// safe for concurrent use.
type Client struct {
	endpoint   string
	httpClient *http.Client

	// sleep is swapped out in tests to avoid real backoff delays.
	sleep func(time.Duration)
}

// NewClient creates a client for the Phoenix backend at endpoint.
// The endpoint is the base URL, e.g. "http://localhost:6006".
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
		sleep:      time.Sleep,
	}
}

// Endpoint returns the backend base URL the client was built with.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// spanPage is one page of the span listing response.
type spanPage struct {
	Data       []Span  `json:"data"`
	NextCursor *string `json:"next_cursor"`
}

// GetSpans fetches all spans for project that started at or after
// since, following pagination cursors until exhausted.
func (c *Client) GetSpans(ctx context.Context, project string, since time.Time) ([]Span, error) {
	var spans []Span
	cursor := ""
	for page := 0; page < maxPages; page++ {
		q := url.Values{}
		q.Set("start_time", since.UTC().Format(time.RFC3339Nano))
		q.Set("limit", fmt.Sprintf("%d", pageSize))
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		reqURL := fmt.Sprintf("%s/v1/projects/%s/spans?%s", c.endpoint, url.PathEscape(project), q.Encode())

		var pg spanPage
		if err := c.getJSON(ctx, reqURL, &pg); err != nil {
			return nil, fmt.Errorf("fetching spans for project %q: %w", project, err)
		}
		spans = append(spans, pg.Data...)
		if pg.NextCursor == nil || *pg.NextCursor == "" {
			return spans, nil
		}
		cursor = *pg.NextCursor
	}
	return spans, nil
}

// FetchWindow fetches spans for project since the given time, falling
// back to fallbackProject when the primary project either does not
// exist or has no spans in the window. It returns the spans and the
// project they actually came from.
func (c *Client) FetchWindow(ctx context.Context, project, fallbackProject string, since time.Time) ([]Span, string, error) {
	spans, err := c.GetSpans(ctx, project, since)
	switch {
	case err == nil && len(spans) > 0:
		return spans, project, nil
	case err != nil && !errors.Is(err, ErrProjectNotFound):
		return nil, project, err
	}

	if fallbackProject == "" || fallbackProject == project {
		if err != nil {
			return nil, project, err
		}
		return spans, project, nil
	}

	fbSpans, fbErr := c.GetSpans(ctx, fallbackProject, since)
	if fbErr != nil {
		// Prefer reporting the primary project's error when it had one.
		if err != nil {
			return nil, project, err
		}
		return nil, fallbackProject, fbErr
	}
	return fbSpans, fallbackProject, nil
}

// Project describes one project known to the backend.
type Project struct {
	Name string `json:"name"`
}

// ListProjects returns the projects the backend knows about. Also
// serves as the connectivity probe for the status command.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var resp struct {
		Data []Project `json:"data"`
	}
	if err := c.getJSON(ctx, c.endpoint+"/v1/projects", &resp); err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return resp.Data, nil
}

// ============================================================================
// TRANSPORT
// ============================================================================

// getJSON performs a GET with retry on transient failures and decodes
// the JSON response into out.
func (c *Client) getJSON(ctx context.Context, reqURL string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			c.sleep(calculateBackoff(attempt))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %v", ErrUnreachable, err)
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("reading response: %w", readErr)
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w (status 404)", ErrProjectNotFound)
		}
		if resp.StatusCode != http.StatusOK {
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
			if !isRetryable(resp.StatusCode) {
				return apiErr
			}
			lastErr = apiErr
			continue
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("request failed after %d attempts: %w", maxRetries+1, lastErr)
}

// isRetryable reports whether an HTTP status is worth retrying.
func isRetryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// calculateBackoff returns the delay before the given retry attempt.
func calculateBackoff(attempt int) time.Duration {
	d := retryBaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	return d
}

// errorMessage extracts a human-readable message from an error body.
func errorMessage(body []byte) string {
	var e struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		for _, m := range []string{e.Detail, e.Message, e.Error} {
			if m != "" {
				return m
			}
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
