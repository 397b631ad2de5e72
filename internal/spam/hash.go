package spam

import (
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// Normalize folds case and collapses every run of whitespace, including
// zero-width and non-breaking spaces, to a single space.
func Normalize(content string) string {
	var b strings.Builder
	b.Grow(len(content))
	space := false
	for _, r := range strings.ToLower(content) {
		if unicode.IsSpace(r) || r == '\u200b' || r == '\ufeff' {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// Hash is the content address used for duplicate detection.
func Hash(content string) string {
	sum := blake2b.Sum256([]byte(Normalize(content)))
	return hex.EncodeToString(sum[:])
}
