package geocache

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics decomposes and drops combining marks so "Télé" and "Tele"
// produce the same cache key.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeKey builds the cache key for entities without a natural id, such
// as resorts: lowercase, diacritics stripped, "name|state".
func NormalizeKey(name, state string) string {
	return normalizePart(name) + "|" + normalizePart(state)
}

func normalizePart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if out, _, err := transform.String(stripDiacritics, s); err == nil {
		s = out
	}
	return s
}
