// Package text turns extracted document text into canonical narration text
// and cuts it into sentence-aligned chunks.
package text

import (
	"strings"
	"unicode"
)

const punctuation = `.,!?;:'"-`

// Normalize returns the canonical form of raw extracted text. Whitespace runs
// collapse to one space, characters outside the narration whitelist are
// dropped, and the result is trimmed. Normalize is idempotent.
func Normalize(raw string) string {
	collapsed := collapseSpace(raw)

	var b strings.Builder
	b.Grow(len(collapsed))
	for _, r := range collapsed {
		if allowed(r) {
			b.WriteRune(r)
		}
	}

	// dropping a character that sat between two spaces leaves a double space
	return strings.TrimSpace(collapseSpace(b.String()))
}

func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func allowed(r rune) bool {
	switch {
	case r == ' ', r == '_':
		return true
	case unicode.IsLetter(r), unicode.IsNumber(r):
		return true
	default:
		return strings.ContainsRune(punctuation, r)
	}
}

// Preview returns at most limit runes of s, marking truncation with "...".
func Preview(s string, limit int) string {
	runes := []rune(s)
	if limit < 0 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
