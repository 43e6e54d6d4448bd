package text

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Chunk is one narration unit cut from canonical text.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Label is the short human-readable name used in chunk listings.
func (c Chunk) Label() string {
	runes := []rune(c.Text)
	if len(runes) > 50 {
		runes = runes[:50]
	}
	return fmt.Sprintf("Chunk %d: %s...", c.Index+1, string(runes))
}

// InvalidConfigError reports a narration setting outside its accepted range.
type InvalidConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

var sentenceBreak = regexp.MustCompile(`[.!?]+`)

// Split cuts canonical text into chunks of roughly maxLength runes on sentence
// boundaries. Sentences are re-terminated with ". " whatever their original
// punctuation. A sentence that alone reaches maxLength becomes its own chunk
// instead of being truncated.
func Split(canonical string, maxLength int) ([]Chunk, error) {
	if maxLength <= 0 {
		return nil, &InvalidConfigError{Field: "chunk_max_length", Value: maxLength, Reason: "must be positive"}
	}

	var (
		chunks []Chunk
		buf    strings.Builder
		bufLen int
	)
	flush := func() {
		if bufLen == 0 {
			return
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Text: strings.TrimSpace(buf.String())})
		buf.Reset()
		bufLen = 0
	}

	for _, candidate := range sentenceBreak.Split(canonical, -1) {
		sentence := strings.TrimSpace(candidate)
		if sentence == "" {
			continue
		}
		n := utf8.RuneCountInString(sentence)
		if bufLen > 0 && bufLen+n >= maxLength {
			flush()
		}
		buf.WriteString(sentence)
		buf.WriteString(". ")
		bufLen += n + 2
	}
	flush()

	return chunks, nil
}

// Texts returns the chunk texts in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
