package heuristics

import (
	"regexp"
	"strings"
)

var nonWord = regexp.MustCompile(`[^\w\sㄱ-힣]`)

// Similarity is the share of a's distinct words that also occur in b. It is asymmetric:
// a is the name being checked for redundancy, b the surrounding context. Empty input on
// either side yields 0.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	words := wordSet(a)
	if len(words) == 0 {
		return 0
	}
	shared := 0
	for w := range wordSet(b) {
		if _, ok := words[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(len(words), 1))
}

func wordSet(s string) map[string]struct{} {
	clean := nonWord.ReplaceAllString(strings.ToLower(s), "")
	set := map[string]struct{}{}
	for _, w := range strings.Fields(clean) {
		set[w] = struct{}{}
	}
	return set
}
