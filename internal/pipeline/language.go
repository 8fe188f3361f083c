package pipeline

import "unicode"

// hangulRatio is the share of non-whitespace runes in s that are Hangul.
func hangulRatio(s string) float64 {
	var total, hangul int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.Is(unicode.Hangul, r) {
			hangul++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hangul) / float64(total)
}
