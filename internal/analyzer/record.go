// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analyzer

import (
	"strings"
	"time"
)

// ============================================================================
// CALL RECORDS
// ============================================================================

// TokenCounts holds the token accounting for a single LLM call. Zero
// values mean the backend did not report that counter, not that zero
// tokens were used.
type TokenCounts struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// CallRecord is one traced LLM invocation, normalized from a backend
// span into the fields the analysis pipeline cares about. Records are
// value types: once built they are never mutated.
type CallRecord struct {
	// SpanID identifies the span within its trace.
	SpanID string `json:"span_id"`

	// TraceID identifies the enclosing trace.
	TraceID string `json:"trace_id"`

	// Name is the span's operation name (e.g. "openai.chat").
	Name string `json:"name"`

	// Model is the model identifier reported by the instrumentation,
	// or "unknown" when the span carried none.
	Model string `json:"model"`

	// Provider is the LLM vendor, when reported.
	Provider string `json:"provider,omitempty"`

	// StartTime and EndTime are the span's wall-clock bounds, UTC.
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// Duration is EndTime - StartTime; zero when EndTime is missing.
	Duration time.Duration `json:"duration_ns"`

	// Tokens is the per-call token accounting.
	Tokens TokenCounts `json:"tokens"`

	// Invocation parameters, when instrumented. MaxTokens of zero and
	// Temperature/TopP of negative one mean "not reported".
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`

	// FinishReason is the completion stop reason, when reported.
	FinishReason string `json:"finish_reason,omitempty"`

	// Status is the span status code (OK, ERROR, UNSET).
	Status string `json:"status"`

	// InputPreview and OutputPreview are truncated prompt/completion
	// text for display. May be empty when the backend redacts payloads.
	InputPreview  string `json:"input_preview,omitempty"`
	OutputPreview string `json:"output_preview,omitempty"`

	// IsLLMCall marks records that passed invocation classification.
	IsLLMCall bool `json:"is_llm_call"`
}

// UnknownModel is the placeholder used when a span carries no model
// attribute. Keeping it a named constant lets display and export code
// style it consistently.
const UnknownModel = "unknown"

// ClassifyLLMCall reports whether a span with the given kind and name
// is an LLM invocation. A span qualifies when its kind is "LLM" or its
// name mentions openai, case-insensitively. The name check catches
// spans emitted by instrumentation that does not set a span kind.
func ClassifyLLMCall(spanKind, name string) bool {
	if strings.EqualFold(spanKind, "LLM") {
		return true
	}
	return strings.Contains(strings.ToLower(name), "openai")
}

// FilterLLMCalls returns the subsequence of records classified as LLM
// invocations, preserving input order. The input slice is not modified.
func FilterLLMCalls(records []CallRecord) []CallRecord {
	out := make([]CallRecord, 0, len(records))
	for _, r := range records {
		if r.IsLLMCall {
			out = append(out, r)
		}
	}
	return out
}
