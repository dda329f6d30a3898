package wordembed

import "github.com/unixpickle/essentials"

// TokenCounts keeps track of how many times different
// tokens occur in some corpus.
type TokenCounts map[string]int

// CountSlice counts the tokens in a slice.
func CountSlice(tokens []string) TokenCounts {
	counts := TokenCounts{}
	for _, tok := range tokens {
		counts[tok]++
	}
	return counts
}

// AtLeast produces every token occurring at least min
// times, most frequent first.
// Ties are broken alphabetically, so the result does not
// depend on map iteration order.
func (t TokenCounts) AtLeast(min int) []string {
	return t.byFrequency(min)
}

func (t TokenCounts) byFrequency(min int) []string {
	var counts []int
	var tokens []string
	for tok, num := range t {
		if num < min {
			continue
		}
		tokens = append(tokens, tok)
		counts = append(counts, num)
	}
	essentials.VoodooSort(counts, func(i, j int) bool {
		if counts[i] != counts[j] {
			return counts[i] > counts[j]
		}
		return tokens[i] < tokens[j]
	}, tokens)
	return tokens
}
