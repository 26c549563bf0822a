package knowledge

import (
	"slices"
	"strings"
	"unicode"
)

// BM25 saturation and length-normalisation constants.
const (
	K1 = 1.5
	B  = 0.75
)

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a an the and or but in on at to for of with
		is it its i you we they this that be are was were has have had do does did
		will would could should not no can so if as by from up about into than then
		when where who which what how also just more been their there our your my his her`) {
		stopwords[w] = struct{}{}
	}
}

// ScoredPassage pairs a passage with its relevance to a query.
type ScoredPassage struct {
	Passage
	Score float64
}

// Tokenize lower-cases text, turns everything except ASCII letters, digits
// and whitespace into spaces, and drops single-character tokens and common
// English stopwords.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', unicode.IsSpace(r):
			return r
		default:
			return ' '
		}
	}, strings.ToLower(text))

	fields := strings.Fields(cleaned)
	out := fields[:0]
	for _, f := range fields {
		if len(f) <= 1 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Score is a BM25 term-frequency score without inverse document frequency:
// every unique query term found in the passage contributes
// tf*(K1+1) / (tf + K1*(1 - B + B*len/avgLen)).
func Score(queryTerms, passageTerms []string, avgLen float64) float64 {
	if len(passageTerms) == 0 || len(queryTerms) == 0 {
		return 0
	}
	if avgLen <= 0 {
		avgLen = float64(len(passageTerms))
	}

	tf := make(map[string]int, len(passageTerms))
	for _, t := range passageTerms {
		tf[t]++
	}
	norm := K1 * (1 - B + B*float64(len(passageTerms))/avgLen)

	var score float64
	seen := make(map[string]struct{}, len(queryTerms))
	for _, q := range queryTerms {
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		f := float64(tf[q])
		if f == 0 {
			continue
		}
		score += f * (K1 + 1) / (f + norm)
	}
	return score
}

// Rank scores passages against query, highest first. Equal scores keep
// document order.
func Rank(query string, passages []Passage) []ScoredPassage {
	return rankTerms(Tokenize(query), passages)
}

func rankTerms(queryTerms []string, passages []Passage) []ScoredPassage {
	if len(passages) == 0 {
		return nil
	}
	terms := make([][]string, len(passages))
	total := 0
	for i, p := range passages {
		terms[i] = Tokenize(p.Text)
		total += len(terms[i])
	}
	avgLen := float64(total) / float64(len(passages))

	scored := make([]ScoredPassage, len(passages))
	for i, p := range passages {
		scored[i] = ScoredPassage{Passage: p, Score: Score(queryTerms, terms[i], avgLen)}
	}
	slices.SortStableFunc(scored, func(a, b ScoredPassage) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	return scored
}
