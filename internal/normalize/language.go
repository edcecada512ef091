package normalize

import (
	"strings"
	"unicode"
)

// scriptThreshold is the share of letters a script needs to be called dominant.
const scriptThreshold = 0.3

// classifyLanguage does a coarse script classification by counting code-point
// ranges. It is a routing signal for detectors, not language identification.
func classifyLanguage(s string) string {
	counts := map[string]int{}
	letters := 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch {
		case unicode.Is(unicode.Latin, r):
			counts["latin"]++
		case unicode.Is(unicode.Cyrillic, r):
			counts["cyrillic"]++
		case unicode.Is(unicode.Han, r), unicode.Is(unicode.Hiragana, r),
			unicode.Is(unicode.Katakana, r), unicode.Is(unicode.Hangul, r):
			counts["cjk"]++
		case unicode.Is(unicode.Arabic, r):
			counts["arabic"]++
		}
	}
	if letters == 0 {
		return "unknown"
	}

	best, bestCount := "", 0
	for script, count := range counts {
		if count > bestCount {
			best, bestCount = script, count
		}
	}
	if best != "" && float64(bestCount)/float64(letters) >= scriptThreshold {
		return best
	}
	return "latin"
}

// computeStats computes length statistics on the original text.
func computeStats(s string) Stats {
	stats := Stats{
		Words: len(strings.Fields(s)),
	}
	if s != "" {
		stats.Lines = 1 + strings.Count(s, "\n")
	}
	for _, r := range s {
		stats.Chars++
		if r > unicode.MaxASCII {
			stats.NonASCII++
		}
		if unicode.IsSpace(r) {
			stats.Whitespace++
		}
	}
	return stats
}
