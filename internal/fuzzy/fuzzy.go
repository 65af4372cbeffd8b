// Package fuzzy implements Indel-normalized string similarity scorers on a 0-100 scale.
package fuzzy

import (
	"fmt"
	"sort"
	"strings"
)

// Scorer returns a similarity score in [0, 100] for two strings.
type Scorer func(a, b string) float64

const (
	NameRatio     = "ratio"
	NameTokenSort = "token_sort_ratio"
	NameTokenSet  = "token_set_ratio"
)

// Lookup resolves a scorer by configuration name. Empty selects token_set_ratio.
func Lookup(name string) (Scorer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameTokenSet:
		return TokenSetRatio, nil
	case NameTokenSort:
		return TokenSortRatio, nil
	case NameRatio:
		return Ratio, nil
	default:
		return nil, fmt.Errorf("unknown scorer %q", name)
	}
}

// Ratio is the normalized Indel similarity of a and b.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	return normalized(indelDistance(ra, rb), total)
}

// TokenSortRatio compares both inputs after sorting their whitespace tokens.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedJoin(strings.Fields(a)), sortedJoin(strings.Fields(b)))
}

// TokenSetRatio compares the token intersection and the two token differences, so word
// order and repeated words do not matter. One side being a token subset of the other scores 100.
func TokenSetRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	var intersection, onlyA, onlyB []string
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection = append(intersection, token)
		} else {
			onlyA = append(onlyA, token)
		}
	}
	for token := range setB {
		if _, ok := setA[token]; !ok {
			onlyB = append(onlyB, token)
		}
	}

	if len(intersection) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	diffA := []rune(sortedJoin(onlyA))
	diffB := []rune(sortedJoin(onlyB))
	sectLen := len([]rune(sortedJoin(intersection)))

	sectA := len(diffA)
	sectB := len(diffB)
	if sectLen > 0 {
		// "sect" vs "sect diff" differ only by the separator plus the diff itself.
		sectA += sectLen + 1
		sectB += sectLen + 1
	}

	best := 0.0
	if total := sectA + sectB; total > 0 {
		best = normalized(indelDistance(diffA, diffB), total)
	}
	if sectLen == 0 {
		return best
	}
	best = max(best,
		normalized(1+len(diffA), sectLen+sectA),
		normalized(1+len(diffB), sectLen+sectB),
	)
	return best
}

func normalized(distance, total int) float64 {
	if total == 0 {
		return 100
	}
	return 100 * (1 - float64(distance)/float64(total))
}

// indelDistance counts insertions and deletions needed to turn a into b.
func indelDistance(a, b []rune) int {
	return len(a) + len(b) - 2*lcsLength(a, b)
}

func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, token := range strings.Fields(s) {
		out[token] = struct{}{}
	}
	return out
}

func sortedJoin(tokens []string) string {
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}
