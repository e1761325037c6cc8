package llm

import (
	"strings"
	"unicode"
)

// wordOverlap is the Jaccard similarity of the word sets of a and b,
// ignoring case, punctuation and a plural "s".
func wordOverlap(a, b string) float64 {
	wa, wb := words(a), words(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if wb[w] {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

func words(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(f) > 3 && strings.HasSuffix(f, "s") && !strings.HasSuffix(f, "ss") {
			f = strings.TrimSuffix(f, "s")
		}
		out[f] = true
	}
	return out
}

// closest returns the index of the best-overlapping name at or above threshold.
func closest(name string, candidates []string, threshold float64) (int, float64, bool) {
	bestIdx, bestSim := -1, 0.0
	for i, c := range candidates {
		if s := wordOverlap(name, c); s > bestSim {
			bestIdx, bestSim = i, s
		}
	}
	if bestIdx < 0 || bestSim < threshold {
		return -1, bestSim, false
	}
	return bestIdx, bestSim, true
}
