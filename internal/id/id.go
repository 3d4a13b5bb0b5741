package id

import "crypto/rand"

const (
	chars  = "abcdefghijklmnopqrstuvwxyz0123456789"
	length = 16
)

// New creates a unique 16-character alphanumeric ID.
func New() string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	for i := range b {
		b[i] = chars[b[i]%byte(len(chars))]
	}
	return string(b)
}

// NewPrefixed creates an ID with a readable type prefix, e.g. "card_x7k9...".
// Prefixes make IDs self-describing in logs and API payloads.
func NewPrefixed(prefix string) string {
	return prefix + "_" + New()
}
