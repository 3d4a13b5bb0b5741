package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"photosynthesis", "photosynthessis", 1},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein([]rune(tt.a), []rune(tt.b)), "levenshtein(%q, %q)", tt.a, tt.b)
	}
}

func TestSimilarity_Bounds(t *testing.T) {
	pairs := [][2]string{
		{"", ""}, {"a", ""}, {"abc", "xyz"}, {"paris", "Paris"},
		{"photosynthesis", "photosynthessis"}, {"completely", "different"},
	}
	for _, p := range pairs {
		r := Similarity(p[0], p[1])
		assert.GreaterOrEqual(t, r, 0.0)
		assert.LessOrEqual(t, r, 1.0)
	}
}

func TestSimilarity_ExactlyOneIffIdentical(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Paris", "paris"), "identical after normalization")
	assert.Equal(t, 1.0, Similarity("a  b", "a b"))
	assert.Less(t, Similarity("paris", "parid"), 1.0)
}

func TestSimilarity_EmptyAfterNormalization(t *testing.T) {
	assert.Equal(t, 0.0, Similarity("", "paris"))
	assert.Equal(t, 0.0, Similarity("!!!", "paris"), "punctuation-only normalizes to empty")
	// Both empty normalized strings are identical, so the short-circuit wins.
	assert.Equal(t, 1.0, Similarity("", ""))
}

func TestSimilarity_OneTypo(t *testing.T) {
	// Edit distance 1 over max length 15 → ≈ 0.933.
	r := Similarity("photosynthesis", "photosynthessis")
	assert.InDelta(t, 1.0-1.0/15.0, r, 0.0001)
	assert.GreaterOrEqual(t, r, FullMatchThreshold)
}

func TestBestMatch(t *testing.T) {
	m := BestMatch("colour", []string{"color", "hue", "shade"})
	assert.Equal(t, "color", m.Best)
	assert.InDelta(t, 1.0-1.0/6.0, m.Ratio, 0.0001)

	m = BestMatch("anything", nil)
	assert.Equal(t, 0.0, m.Ratio)
	assert.Equal(t, "", m.Best)
}
