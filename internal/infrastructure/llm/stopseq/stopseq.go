// Package stopseq enforces stop sequences on completion text for providers
// that ignore or only partly honour them.
package stopseq

import "strings"

// Truncate cuts text at the earliest occurrence of any stop sequence.
func Truncate(text string, stops []string) string {
	cut := len(text)
	for _, s := range stops {
		if s == "" {
			continue
		}
		if i := strings.Index(text, s); i >= 0 && i < cut {
			cut = i
		}
	}
	return text[:cut]
}
