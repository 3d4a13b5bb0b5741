package evaluation

// Default similarity thresholds. FullMatchThreshold accepts an answer as
// fully correct at the fuzzy tier; PartialMatchThreshold is the floor for
// partial credit when the semantic tier is unavailable.
const (
	FullMatchThreshold    = 0.85
	PartialMatchThreshold = 0.6
)

// Match is the outcome of scoring a candidate against a set of acceptable
// answers.
type Match struct {
	Ratio float64 // highest similarity ratio across all acceptable answers
	Best  string  // the acceptable answer (original form) that scored highest
}

// BestMatch scores the candidate against every acceptable answer and returns
// the highest ratio plus which answer matched. Both sides are normalized
// before comparison. An empty acceptable list yields a zero Match.
func BestMatch(candidate string, acceptable []string) Match {
	normCandidate := Normalize(candidate)

	var best Match
	for _, a := range acceptable {
		ratio := similarity(normCandidate, Normalize(a))
		if ratio > best.Ratio || best.Best == "" {
			best = Match{Ratio: ratio, Best: a}
		}
	}
	return best
}

// Similarity returns the similarity ratio between two raw strings after
// normalization: 1 − distance/max(len). The result is always in [0, 1] and
// is 1 exactly when the normalized strings are identical.
func Similarity(a, b string) float64 {
	return similarity(Normalize(a), Normalize(b))
}

// similarity operates on already-normalized strings.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	// Either side empty after normalization: no credit, and no division by
	// zero below.
	if a == "" || b == "" {
		return 0
	}

	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return 1 - float64(levenshtein(ra, rb))/float64(maxLen)
}

// levenshtein computes the classic single-character insert/delete/substitute
// edit distance over runes, using two rows instead of the full matrix.
func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(
				curr[j-1]+1,    // insertion
				prev[j]+1,      // deletion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
