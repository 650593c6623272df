// Package normalize canonicalizes user text before it is used as a key or stored.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// PromptKey is the cache key form of free text sent to the recommender.
// Two inputs that differ only in case, width, compatibility characters or
// whitespace map to the same key.
//
//	"  Chill   VIBES "  -> "chill vibes"
//	"ｆｏｃｕｓ"          -> "focus"
func PromptKey(raw string) string {
	s := norm.NFKC.String(sanitizeString(raw))
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// InterestTag converts an interest to its stored form: compatibility
// normalized, lowercased, separators collapsed to single dashes.
//
//	"Hip Hop"   -> "hip-hop"
//	"lo_fi"     -> "lo-fi"
//	"Café Jazz" -> "café-jazz"
func InterestTag(raw string) string {
	s := strings.ToLower(norm.NFKC.String(sanitizeString(raw)))

	var b strings.Builder
	dash := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	return b.String()
}

// Interests normalizes every tag, dropping empties and duplicates while
// keeping first-seen order.
func Interests(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		tag := InterestTag(r)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// sanitizeString removes null bytes, which break SQLite text comparisons
// and JSON encoding.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s)
}
