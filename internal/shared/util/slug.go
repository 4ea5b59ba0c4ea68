package util

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Slugify lowercases s and joins its letter/digit runs with single dashes.
// Returns fallback when nothing survives.
func Slugify(s, fallback string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	out := b.String()
	if len(out) > 80 {
		cut := 80
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = strings.TrimRight(out[:cut], "-")
	}
	if out == "" {
		return fallback
	}
	return out
}
