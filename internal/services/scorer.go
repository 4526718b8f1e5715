package services

import (
	"sort"
	"strings"

	"github.com/medaudit/invoice-audit-service/internal/normalize"
)

// ScoreFloor is the acceptance floor for fuzzy candidates: scores at or below
// it are discarded before ranking.
const ScoreFloor = 45.0

// TokenSetRatio computes a 0-100 similarity score between an invoice
// description and a catalog name. Both sides are normalized and compared as
// word sets, so token order and duplicates never matter; the shared-token
// core is then weighed against each side's leftover tokens with an edit
// distance ratio. Two strings with identical token sets score exactly 100.
func TokenSetRatio(a, b string) float64 {
	tokensA := uniqueSorted(normalize.Tokens(a))
	tokensB := uniqueSorted(normalize.Tokens(b))

	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setB := make(map[string]bool, len(tokensB))
	for _, t := range tokensB {
		setB[t] = true
	}
	setA := make(map[string]bool, len(tokensA))
	for _, t := range tokensA {
		setA[t] = true
	}

	var intersection, diffA, diffB []string
	for _, t := range tokensA {
		if setB[t] {
			intersection = append(intersection, t)
		} else {
			diffA = append(diffA, t)
		}
	}
	for _, t := range tokensB {
		if !setA[t] {
			diffB = append(diffB, t)
		}
	}

	base := strings.Join(intersection, " ")
	combinedA := joinNonEmpty(base, strings.Join(diffA, " "))
	combinedB := joinNonEmpty(base, strings.Join(diffB, " "))

	// The best of the three pairings dominates: when one description is a
	// token-subset of the other, base vs combined scores 100.
	best := levenshteinRatio(base, combinedA)
	if r := levenshteinRatio(base, combinedB); r > best {
		best = r
	}
	if r := levenshteinRatio(combinedA, combinedB); r > best {
		best = r
	}
	return best
}

func uniqueSorted(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	var out []string
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

// levenshteinRatio converts edit distance into a 0-100 similarity percentage:
// (len(a)+len(b)-distance) / (len(a)+len(b)) * 100.
func levenshteinRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	lensum := len(ra) + len(rb)
	dist := levenshteinDistance(ra, rb)
	return float64(lensum-dist) / float64(lensum) * 100
}

func levenshteinDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(curr[j-1]+1, minInt(prev[j]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
