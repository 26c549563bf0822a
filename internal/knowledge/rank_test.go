package knowledge

import (
	"math"
	"testing"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("The Quick, brown fox! I have a 42-inch X-ray & café")
	want := []string{"quick", "brown", "fox", "42", "inch", "ray", "caf"}
	if len(got) != len(want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestTokenize_OnlyStopwords(t *testing.T) {
	if got := Tokenize("How do I do this? Is it the one?"); len(got) != 1 || got[0] != "one" {
		t.Errorf("expected [one], got %q", got)
	}
	if got := Tokenize("?? ! a I"); len(got) != 0 {
		t.Errorf("expected no tokens, got %q", got)
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		query   []string
		passage []string
		avgLen  float64
		want    float64
	}{
		{"single match at average length", []string{"refund"}, []string{"refund", "policy"}, 2, 1.0},
		{"duplicate query terms count once", []string{"refund", "refund"}, []string{"refund", "policy"}, 2, 1.0},
		{"no overlap", []string{"shipping"}, []string{"refund", "policy"}, 2, 0},
		{"empty passage", []string{"refund"}, nil, 2, 0},
		{
			"frequency saturates",
			[]string{"refund"},
			[]string{"refund", "refund", "refund", "policy"},
			4,
			3 * 2.5 / (3 + 1.5),
		},
		{
			"longer than average is penalised",
			[]string{"refund"},
			[]string{"refund", "policy", "terms", "apply"},
			2,
			2.5 / (1 + 1.5*(0.25+0.75*2)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.query, tt.passage, tt.avgLen)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestScore_NonNegative(t *testing.T) {
	if s := Score([]string{"a1", "b2"}, []string{"a1"}, 0); s < 0 {
		t.Errorf("expected non-negative score, got %v", s)
	}
}

func TestRank(t *testing.T) {
	passages := []Passage{
		{Text: "Shipping takes five business days.", Ordinal: 0},
		{Text: "Refunds are issued to the original payment method. Refund requests need an order number.", Ordinal: 1},
		{Text: "Our warranty covers manufacturing defects.", Ordinal: 2},
		{Text: "Store hours are nine to five.", Ordinal: 3},
	}
	ranked := Rank("How long does a refund take?", passages)

	if len(ranked) != len(passages) {
		t.Fatalf("expected %d results, got %d", len(passages), len(ranked))
	}
	if ranked[0].Ordinal != 1 {
		t.Errorf("expected refund passage first, got ordinal %d", ranked[0].Ordinal)
	}
	// "takes" is not "take"; every other passage ties at zero.
	for i, sp := range ranked[1:] {
		if sp.Score != 0 {
			t.Errorf("expected zero score for ordinal %d, got %v", sp.Ordinal, sp.Score)
		}
		if want := []int{0, 2, 3}[i]; sp.Ordinal != want {
			t.Errorf("tie order: expected ordinal %d at %d, got %d", want, i+1, sp.Ordinal)
		}
	}
}

func TestRank_Empty(t *testing.T) {
	if got := Rank("refund", nil); len(got) != 0 {
		t.Errorf("expected no results, got %+v", got)
	}
}
