package matcher

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// TokenSetRatio scores two product names 0-100 by word overlap, ignoring
// case, punctuation, word order and repeated words. A name that is a word
// subset of the other scores 100.
func TokenSetRatio(a, b string) int {
	a, b = normalize(a), normalize(b)
	if a == "" || b == "" {
		return 0
	}

	setA, setB := tokenSet(a), tokenSet(b)
	var common, onlyA, onlyB []string
	for t := range setA {
		if setB[t] {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if !setA[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	t0 := strings.Join(common, " ")
	t1 := strings.TrimSpace(t0 + " " + strings.Join(onlyA, " "))
	t2 := strings.TrimSpace(t0 + " " + strings.Join(onlyB, " "))

	return max(ratio(t0, t1), ratio(t0, t2), ratio(t1, t2))
}

// normalize lower-cases s and turns every rune that is not a letter, digit
// or underscore into a space.
func normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.TrimSpace(mapped)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		set[t] = true
	}
	return set
}

// ratio is the normalized indel similarity of two strings: twice the
// longest common subsequence over the total rune count, as a rounded
// percentage. Empty input scores 0.
func ratio(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	total := len(r1) + len(r2)
	if len(r1) == 0 || len(r2) == 0 {
		return 0
	}
	return int(math.RoundToEven(100 * float64(2*lcsLength(r1, r2)) / float64(total)))
}

func lcsLength(r1, r2 []rune) int {
	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for i := 1; i <= len(r1); i++ {
		for j := 1; j <= len(r2); j++ {
			if r1[i-1] == r2[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(r2)]
}
