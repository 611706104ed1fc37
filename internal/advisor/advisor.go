// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/phoenixlens/internal/analyzer"
	"github.com/jeranaias/phoenixlens/internal/config"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// defaultBaseURL is the OpenAI API endpoint.
	defaultBaseURL = "https://api.openai.com/v1"

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 1 * 1024 * 1024

	// maxRetries is the number of retry attempts per advisory request.
	maxRetries = 2

	// retryBaseDelay is the base delay between retries.
	retryBaseDelay = 500 * time.Millisecond
)

// ErrNoAPIKey indicates the advisor was invoked without credentials.
var ErrNoAPIKey = errors.New("no OpenAI API key configured")

// APIError is a non-2xx response from the OpenAI API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai API error (status %d): %s", e.StatusCode, e.Message)
}

// ============================================================================
// WIRE TYPES
// ============================================================================

// ChatMessage is a single message in a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ============================================================================
// ADVISOR
// ============================================================================

// Advisor produces efficiency comparisons for comparison groups. Safe
// for concurrent use; AnalyzeGroups itself fans out internally.
type Advisor struct {
	apiKey       string
	model        string
	maxTokens    int
	temperature  float64
	costPerToken float64
	concurrency  int
	callTimeout  time.Duration

	// limiter paces requests across all workers so a burst of groups
	// doesn't trip the API's rate limits.
	limiter *rate.Limiter

	httpClient *http.Client
	baseURL    string

	sleep func(time.Duration)
}

// New builds an advisor from configuration. The returned advisor is
// inert (Enabled reports false) when no API key is configured.
func New(cfg config.AdvisorConfig) *Advisor {
	return &Advisor{
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		costPerToken: cfg.CostPerToken,
		concurrency:  cfg.Concurrency,
		callTimeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		limiter:      rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		httpClient:   &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		baseURL:      defaultBaseURL,
		sleep:        time.Sleep,
	}
}

// Enabled reports whether the advisor has credentials to run.
func (a *Advisor) Enabled() bool {
	return a.apiKey != ""
}

// Model returns the model advisories are generated with.
func (a *Advisor) Model() string {
	return a.model
}

// AnalyzeGroups produces one advisory per group, in group order. Groups
// are analyzed concurrently (bounded by the configured concurrency),
// but the returned slice is positional: result[i] belongs to groups[i].
// Individual failures are recorded on the advisory, never returned.
func (a *Advisor) AnalyzeGroups(ctx context.Context, groups []analyzer.ComparisonGroup) []analyzer.Advisory {
	if len(groups) == 0 {
		return nil
	}
	advisories := make([]analyzer.Advisory, len(groups))
	if !a.Enabled() {
		for i := range advisories {
			advisories[i] = analyzer.Advisory{Unavailable: true, Err: ErrNoAPIKey.Error()}
		}
		return advisories
	}

	sem := make(chan struct{}, a.concurrency)
	var wg sync.WaitGroup
	for i := range groups {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			advisories[i] = a.adviseGroup(ctx, &groups[i])
		}(i)
	}
	wg.Wait()
	return advisories
}

// adviseGroup generates the advisory for one group. The group's blast
// radius is itself: any failure is folded into the advisory.
func (a *Advisor) adviseGroup(ctx context.Context, g *analyzer.ComparisonGroup) analyzer.Advisory {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	if err := a.limiter.Wait(callCtx); err != nil {
		return analyzer.Advisory{Unavailable: true, Err: err.Error()}
	}

	resp, err := a.chat(callCtx, []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildComparisonPrompt(g)},
	})
	if err != nil {
		return analyzer.Advisory{Unavailable: true, Err: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return analyzer.Advisory{Unavailable: true, Err: "empty completion"}
	}

	tokens := resp.Usage.TotalTokens
	return analyzer.Advisory{
		Text:   resp.Choices[0].Message.Content,
		Model:  a.model,
		Tokens: tokens,
		Cost:   float64(tokens) * a.costPerToken,
	}
}

// ============================================================================
// TRANSPORT
// ============================================================================

// chat performs one chat completion request with retry on transient
// failures.
func (a *Advisor) chat(ctx context.Context, messages []ChatMessage) (*chatResponse, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       a.model,
		Messages:    messages,
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			a.sleep(retryBaseDelay << (attempt - 1))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+a.apiKey)

		resp, err := a.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("reading response: %w", readErr)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
			if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
				return nil, apiErr
			}
			lastErr = apiErr
			continue
		}

		var out chatResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		return &out, nil
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries+1, lastErr)
}

// errorMessage extracts the error message from an OpenAI error body.
func errorMessage(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
