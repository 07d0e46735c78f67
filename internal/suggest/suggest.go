// Package suggest finds candidate words close to a misspelled one.
package suggest

import (
	"sort"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	// DefaultLimit is the maximum number of matches returned by Close.
	DefaultLimit = 3
	// DefaultCutoff is the minimum similarity ratio for a match.
	DefaultCutoff = 0.6
)

// Close returns up to DefaultLimit candidates similar to word, best first.
func Close(word string, candidates []string) []string {
	return CloseN(word, candidates, DefaultLimit, DefaultCutoff)
}

// CloseN returns up to limit candidates whose similarity ratio to word is at
// least cutoff, ordered by descending ratio. Ties are ordered by descending candidate.
func CloseN(word string, candidates []string, limit int, cutoff float64) []string {
	if limit <= 0 || word == "" || len(candidates) == 0 {
		return nil
	}
	type scored struct {
		value string
		ratio float64
	}
	target := runes(word)
	matcher := difflib.NewMatcher(nil, target)
	var matches []scored
	for _, candidate := range candidates {
		matcher.SetSeq1(runes(candidate))
		if matcher.RealQuickRatio() < cutoff || matcher.QuickRatio() < cutoff {
			continue
		}
		if ratio := matcher.Ratio(); ratio >= cutoff {
			matches = append(matches, scored{value: candidate, ratio: ratio})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].ratio != matches[j].ratio {
			return matches[i].ratio > matches[j].ratio
		}
		return matches[i].value > matches[j].value
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.value)
	}
	return out
}

// Ratio returns the similarity of a and b in [0, 1].
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(runes(a), runes(b)).Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
