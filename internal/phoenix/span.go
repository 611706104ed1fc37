// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package phoenix

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/phoenixlens/internal/analyzer"
	"github.com/jeranaias/phoenixlens/internal/util"
)

// ============================================================================
// SPAN MODEL
// ============================================================================

// SpanContext identifies a span within its trace.
type SpanContext struct {
	TraceID string `json:"trace_id"`
	SpanID  string `json:"span_id"`
}

// Span is a raw span as returned by the Phoenix REST API. Attributes
// are left untyped because instrumentation libraries disagree on both
// nesting and value types; extraction goes through the attr* helpers.
type Span struct {
	Context    SpanContext    `json:"context"`
	Name       string         `json:"name"`
	SpanKind   string         `json:"span_kind"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    time.Time      `json:"end_time"`
	StatusCode string         `json:"status_code"`
	Attributes map[string]any `json:"attributes"`
}

// Well-known OpenInference attribute keys.
const (
	attrModelName        = "llm.model_name"
	attrProvider         = "llm.provider"
	attrSystem           = "llm.system"
	attrPromptTokens     = "llm.token_count.prompt"
	attrCompletionTokens = "llm.token_count.completion"
	attrTotalTokens      = "llm.token_count.total"
	attrTemperature      = "llm.invocation_parameters.temperature"
	attrTopP             = "llm.invocation_parameters.top_p"
	attrMaxTokens        = "llm.invocation_parameters.max_tokens"
	attrFinishReason     = "llm.finish_reason"
	attrInputValue       = "input.value"
	attrOutputValue      = "output.value"
)

// lookup resolves a dotted attribute key against the span's attribute
// map. Phoenix serves attributes flattened ("llm.model_name") while
// some exporters nest them ({"llm": {"model_name": ...}}); both shapes
// appear in practice, so the flat key is tried first and the dotted
// path walked second.
func (s *Span) lookup(key string) (any, bool) {
	if v, ok := s.Attributes[key]; ok {
		return v, true
	}
	parts := strings.Split(key, ".")
	var cur any = s.Attributes
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func (s *Span) attrString(keys ...string) string {
	for _, key := range keys {
		v, ok := s.lookup(key)
		if !ok {
			continue
		}
		if str, ok := v.(string); ok && str != "" {
			return str
		}
	}
	return ""
}

func (s *Span) attrInt(key string) int {
	v, ok := s.lookup(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return 0
}

// attrFloat returns the value of key, or def when absent or untyped.
func (s *Span) attrFloat(key string, def float64) float64 {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return def
}

// ============================================================================
// NORMALIZATION
// ============================================================================

// ToCallRecord normalizes a span into an analyzer call record,
// truncating payload previews to previewChars runes. It reports ok as
// false for malformed spans (no start timestamp), which callers count
// as skipped rather than failing the run.
func (s *Span) ToCallRecord(previewChars int) (analyzer.CallRecord, bool) {
	if s.StartTime.IsZero() {
		return analyzer.CallRecord{}, false
	}

	rec := analyzer.CallRecord{
		SpanID:       s.Context.SpanID,
		TraceID:      s.Context.TraceID,
		Name:         s.Name,
		Model:        s.attrString(attrModelName),
		Provider:     s.attrString(attrProvider, attrSystem),
		StartTime:    s.StartTime.UTC(),
		Status:       s.StatusCode,
		FinishReason: s.attrString(attrFinishReason),
		Tokens: analyzer.TokenCounts{
			Prompt:     s.attrInt(attrPromptTokens),
			Completion: s.attrInt(attrCompletionTokens),
			Total:      s.attrInt(attrTotalTokens),
		},
		Temperature: s.attrFloat(attrTemperature, -1),
		TopP:        s.attrFloat(attrTopP, -1),
		MaxTokens:   s.attrInt(attrMaxTokens),
		IsLLMCall:   analyzer.ClassifyLLMCall(s.SpanKind, s.Name),
	}
	if rec.Model == "" {
		rec.Model = analyzer.UnknownModel
	}
	if !s.EndTime.IsZero() && s.EndTime.After(s.StartTime) {
		rec.EndTime = s.EndTime.UTC()
		rec.Duration = s.EndTime.Sub(s.StartTime)
	}
	// A reported total of zero with nonzero parts means the exporter
	// skipped the total counter; derive it.
	if rec.Tokens.Total == 0 {
		rec.Tokens.Total = rec.Tokens.Prompt + rec.Tokens.Completion
	}
	if previewChars > 0 {
		rec.InputPreview = util.TruncateRunes(util.CollapseWhitespace(s.attrString(attrInputValue)), previewChars)
		rec.OutputPreview = util.TruncateRunes(util.CollapseWhitespace(s.attrString(attrOutputValue)), previewChars)
	}
	return rec, true
}

// ConvertSpans normalizes spans into call records sorted oldest first,
// returning the number of malformed spans skipped along the way.
func ConvertSpans(spans []Span, previewChars int) (records []analyzer.CallRecord, skipped int) {
	records = make([]analyzer.CallRecord, 0, len(spans))
	for i := range spans {
		rec, ok := spans[i].ToCallRecord(previewChars)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartTime.Before(records[j].StartTime)
	})
	return records, skipped
}
