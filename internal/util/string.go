// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"
	"unicode"
)

// TruncateRunes shortens s to at most max runes, appending "..." when
// truncation occurs. Operating on runes rather than bytes keeps
// multi-byte characters from being split mid-sequence.
//
// USABILITY: previews of prompt and completion text routinely contain
// non-ASCII content; byte-based truncation would corrupt it.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// SanitizeFilename strips characters that are unsafe in filenames and
// collapses whitespace to underscores. Used when deriving export file
// names from project names and timestamps.
func SanitizeFilename(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		default:
			// Drop everything else (path separators, shell metacharacters).
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "untitled"
	}
	return out
}

// CollapseWhitespace replaces runs of whitespace (including newlines)
// with a single space. Span previews arrive with embedded newlines that
// would break single-line table rendering.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
