package businessflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuzzyContains(t *testing.T) {
	assert.True(t, FuzzyContains("Junior Single - Pay As You Go", "single pay as you go discount"))
	assert.True(t, FuzzyContains("pay as you go", "Junior Single - Pay As You Go"))
	assert.False(t, FuzzyContains("10 Pack", "Unlimited Monthly"))
	assert.False(t, FuzzyContains("", "anything"))
	assert.False(t, FuzzyContains("Adult", "Adult 10 Pack"), "a label made only of noise words has no canonical form")
}

func TestCanonicalEqual(t *testing.T) {
	assert.True(t, CanonicalEqual("Junior 5 Pack - Pay As You Go", "junior 5 pack - pay as you go"))
	assert.True(t, CanonicalEqual("Adult 10 Packs", "10 pack"))
	assert.False(t, CanonicalEqual("", ""))
	assert.False(t, CanonicalEqual("5 pack", "10 pack"))
}

func TestJaccard(t *testing.T) {
	set := func(words ...string) map[string]struct{} {
		out := map[string]struct{}{}
		for _, w := range words {
			out[w] = struct{}{}
		}
		return out
	}

	tests := []struct {
		name string
		a, b map[string]struct{}
		want float64
	}{
		{"both empty", set(), set(), 1.0},
		{"one empty", set("a"), set(), 0.0},
		{"identical", set("a", "b"), set("a", "b"), 1.0},
		{"disjoint", set("a"), set("b"), 0.0},
		{"half", set("a", "b"), set("b", "c", "a", "d"), 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Jaccard(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, Jaccard(tt.b, tt.a), 1e-9)
		})
	}
}

func TestTextJaccardBounds(t *testing.T) {
	labels := []string{
		"",
		"Junior Single - Pay As You Go",
		"Adult 10 Pack",
		"Private 1:1 Session",
		"Unlimited Monthly",
		"3 x per week",
	}
	for _, a := range labels {
		for _, b := range labels {
			score := TextJaccard(a, b)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
			assert.Equal(t, score, TextJaccard(b, a))
		}
		assert.Equal(t, 1.0, TextJaccard(a, a))
	}
}
