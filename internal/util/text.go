package util

import (
	"strings"
	"unicode"
)

// SanitizeText drops NUL, other control characters and U+FFFD, which PDF extraction
// produces and Postgres text columns reject. Newlines and tabs are kept.
func SanitizeText(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch {
		case r == '\n', r == '\r', r == '\t':
			return r
		case r < 0x20, r == 0x7f, r == unicode.ReplacementChar:
			return -1
		}
		return r
	}, s))
}

// Snippet collapses whitespace and cuts s to maxRunes, marking the cut with "...".
// A non-positive maxRunes means 420.
func Snippet(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 420
	}
	flat := strings.Join(strings.Fields(SanitizeText(s)), " ")
	runes := []rune(flat)
	if len(runes) <= maxRunes {
		return flat
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true, "were": true,
	"what": true, "how": true, "why": true, "which": true, "that": true, "this": true,
	"these": true, "those": true, "with": true, "from": true, "across": true, "does": true,
	"did": true, "about": true, "paper": true, "papers": true, "who": true, "their": true,
	"they": true,
}

func trimPunct(r rune) bool { return unicode.IsPunct(r) || r == '`' }

// Terms returns the lower-cased content words of s in first-seen order. Words shorter
// than three runes and stop words are skipped.
func Terms(s string) []string {
	var terms []string
	seen := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(SanitizeText(s))) {
		w = strings.TrimFunc(w, trimPunct)
		if len([]rune(w)) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}
