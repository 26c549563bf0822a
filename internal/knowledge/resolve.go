package knowledge

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/efebarandurmaz/replyforge/internal/observability"
)

// Defaults for context resolution.
const (
	DefaultThreshold = 3000 // characters; shorter knowledge bases are injected whole
	DefaultTopK      = 4
)

// Resolved is the knowledge-base text chosen for a prompt.
type Resolved struct {
	Text string
	// Filtered is true when Text holds selected passages rather than the
	// whole knowledge base.
	Filtered bool
	// Passages is how many passages the document was chunked into; zero when
	// the document was injected whole.
	Passages int
	Selected []Passage
}

// Resolver chooses which part of a knowledge base goes into a prompt.
type Resolver struct {
	Threshold   int
	TopK        int
	ChunkTarget int
	// PreserveOrder presents selected passages in document order instead of
	// relevance order.
	PreserveOrder bool
	Logger        *slog.Logger
}

// NewResolver returns a Resolver with the default threshold, top-K and
// chunk target.
func NewResolver() *Resolver {
	return &Resolver{
		Threshold:   DefaultThreshold,
		TopK:        DefaultTopK,
		ChunkTarget: DefaultChunkTarget,
	}
}

// ResolveContext returns the knowledge-base text to inject for query, in
// relevance order. It reports false when memory is empty.
func ResolveContext(memory, query string, threshold, topK int) (Resolved, bool) {
	r := &Resolver{Threshold: threshold, TopK: topK, ChunkTarget: DefaultChunkTarget}
	return r.resolve(memory, query)
}

// Resolve is ResolveContext with the resolver's settings, traced as a
// retrieval span.
func (r *Resolver) Resolve(ctx context.Context, memory, query string) (Resolved, bool) {
	_, span := observability.StartRetrievalSpan(ctx, runeLen(memory), r.Threshold, r.topK())
	defer span.End()

	res, ok := r.resolve(memory, query)
	observability.RecordRetrievalResult(span, res.Passages, len(res.Selected), res.Filtered)

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("resolved knowledge context",
		"present", ok,
		"filtered", res.Filtered,
		"passages", res.Passages,
		"selected", len(res.Selected),
		"chars", runeLen(res.Text),
	)
	return res, ok
}

func (r *Resolver) topK() int {
	if r.TopK <= 0 {
		return DefaultTopK
	}
	return r.TopK
}

func (r *Resolver) resolve(memory, query string) (Resolved, bool) {
	if strings.TrimSpace(memory) == "" {
		return Resolved{}, false
	}
	if runeLen(memory) <= r.Threshold {
		return Resolved{Text: memory}, true
	}

	passages := Chunk(memory, r.ChunkTarget)
	if len(passages) == 0 {
		return Resolved{Text: memory}, true
	}
	k := min(r.topK(), len(passages))

	var selected []Passage
	if terms := Tokenize(query); len(terms) == 0 {
		selected = slices.Clone(passages[:k])
	} else {
		for _, sp := range rankTerms(terms, passages)[:k] {
			selected = append(selected, sp.Passage)
		}
	}
	if r.PreserveOrder {
		slices.SortFunc(selected, func(a, b Passage) int { return a.Ordinal - b.Ordinal })
	}

	texts := make([]string, len(selected))
	for i, p := range selected {
		texts[i] = p.Text
	}
	return Resolved{
		Text:     strings.Join(texts, "\n\n"),
		Filtered: true,
		Passages: len(passages),
		Selected: selected,
	}, true
}
