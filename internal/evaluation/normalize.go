package evaluation

import "strings"

// strippedPunctuation is the fixed set of punctuation removed before any
// answer comparison.
const strippedPunctuation = `.,!?;:'"()[]{}`

// Normalize returns the canonical comparison form of an answer: lower-cased,
// punctuation stripped, whitespace runs collapsed to a single space, edges
// trimmed. Normalize is idempotent and total: an empty string maps to an
// empty string.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(strippedPunctuation, r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
