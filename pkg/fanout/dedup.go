package fanout

import (
	"sort"
	"strings"
	"unicode"
)

// dedupPrefixLen is how many normalized characters of the response text
// form the similarity key.
const dedupPrefixLen = 100

// dedupKey builds the similarity fingerprint for a response: lower-cased,
// punctuation-stripped, truncated to the first 100 characters. This is a
// deliberately cheap prefix heuristic, not semantic similarity; it catches
// near-identical completions from different endpoints without expensive
// comparison.
func dedupKey(text string) string {
	var b strings.Builder
	b.Grow(dedupPrefixLen)
	n := 0
	for _, r := range strings.ToLower(text) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
		n++
		if n == dedupPrefixLen {
			break
		}
	}
	return b.String()
}

// dedupe sorts branches by descending confidence and collapses branches
// whose similarity keys match, keeping the first (highest-confidence)
// occurrence of each key.
func dedupe(branches []Branch) []Branch {
	sorted := append([]Branch(nil), branches...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	seen := make(map[string]bool, len(sorted))
	out := sorted[:0]
	for _, b := range sorted {
		key := dedupKey(b.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, b)
	}
	return out
}
