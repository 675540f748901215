package common

import (
	"strings"
	"unicode"
)

// SplitSentences breaks text into sentences on [.?!] followed by whitespace.
// Results are trimmed, empties discarded, and sentences shorter than minChars
// dropped. The split is deterministic: identical input yields identical output.
func SplitSentences(text string, minChars int) []string {
	if minChars <= 0 {
		minChars = 3
	}

	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		if r == '.' || r == '?' || r == '!' {
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				s := strings.TrimSpace(current.String())
				if len(s) >= minChars {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}

	if tail := strings.TrimSpace(current.String()); len(tail) >= minChars {
		sentences = append(sentences, tail)
	}

	return sentences
}

// NormalizeTerm lowercases (ASCII) and collapses whitespace. All skill and
// keyword comparisons run on this form. Unicode case folding is deliberately
// not applied; normalization happens once at ingest.
func NormalizeTerm(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
		lastSpace = false
	}

	return strings.TrimRight(b.String(), " ")
}

// Truncate limits text to maxChars, cutting at a rune boundary.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}

// ContainsTerm reports whether normalized needle occurs as a substring of
// normalized haystack.
func ContainsTerm(haystack, needle string) bool {
	return strings.Contains(NormalizeTerm(haystack), NormalizeTerm(needle))
}

// WordsLongerThan splits text into fields and keeps words with more than
// minLen characters, normalized.
func WordsLongerThan(text string, minLen int) []string {
	var words []string
	for _, w := range strings.Fields(text) {
		w = strings.Trim(w, ".,;:()[]{}\"'")
		if len(w) > minLen {
			words = append(words, NormalizeTerm(w))
		}
	}
	return words
}
