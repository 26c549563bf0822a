// Package knowledge reduces a knowledge-base document to the passages most
// relevant to a customer query. It needs no external index: each document
// is chunked and ranked on the fly.
package knowledge

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkTarget is the passage size bound, in characters.
const DefaultChunkTarget = 600

// Passage is a contiguous piece of the source document.
type Passage struct {
	Text    string
	Ordinal int // Position among the document's passages, from 0
}

// Chunk splits doc into passages of at most target characters. Paragraphs
// (separated by blank lines) are packed greedily; a paragraph longer than
// target is packed sentence by sentence instead, and a single sentence
// longer than target becomes its own oversized passage. Passages are trimmed
// and returned in document order. A target <= 0 uses DefaultChunkTarget.
func Chunk(doc string, target int) []Passage {
	if target <= 0 {
		target = DefaultChunkTarget
	}
	doc = strings.ReplaceAll(doc, "\r\n", "\n")

	var (
		out     []Passage
		current string
	)
	flush := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, Passage{Text: s, Ordinal: len(out)})
		}
	}

	for _, para := range paragraphs(doc) {
		sep := 0
		if current != "" {
			sep = 2
		}
		if runeLen(current)+sep+runeLen(para) <= target {
			if current == "" {
				current = para
			} else {
				current += "\n\n" + para
			}
			continue
		}

		flush(current)
		current = para
		if runeLen(para) <= target {
			continue
		}

		var buf string
		for _, sent := range splitSentences(para) {
			if runeLen(buf)+runeLen(sent) <= target {
				buf += sent
				continue
			}
			flush(buf)
			buf = sent
		}
		current = strings.TrimSpace(buf)
	}
	flush(current)
	return out
}

// paragraphs splits on runs of two or more newlines and drops blank pieces.
func paragraphs(doc string) []string {
	var out []string
	for _, p := range strings.Split(doc, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences cuts p after every run of '.', '!' or '?' and after every
// newline. Concatenating the result yields p.
func splitSentences(p string) []string {
	var out []string
	start := 0
	for i := 0; i < len(p); {
		switch p[i] {
		case '\n':
			out = append(out, p[start:i+1])
			i++
			start = i
		case '.', '!', '?':
			for i < len(p) && isTerminator(p[i]) {
				i++
			}
			out = append(out, p[start:i])
			start = i
		default:
			i++
		}
	}
	if start < len(p) {
		out = append(out, p[start:])
	}
	return out
}

func isTerminator(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
