package analyzer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/curation-crawler/internal/crawler"
)

// Reading speeds used to convert text length to minutes.
const (
	KoreanCharsPerMinute  = 500
	EnglishWordsPerMinute = 200
)

var leadingCount = regexp.MustCompile(`^\d[\d,]*(?:\.\d+)?`)

// estimateTime derives the consumption time. The model's rn_time wins; otherwise the caller's
// duration (seconds) or word count is used. Nil means no source was usable.
func estimateTime(rnTime string, lang crawler.Language, duration, wordCount int) *crawler.EstimatedTime {
	rnTime = strings.TrimSpace(rnTime)
	if strings.Contains(rnTime, ":") {
		if seconds, ok := parseClock(rnTime); ok && seconds > 0 {
			return &crawler.EstimatedTime{Type: crawler.TimeTypeVideo, Value: ceilDiv(seconds, 60)}
		}
	} else if count, ok := parseCount(rnTime); ok && count > 0 {
		return readingTime(count, lang)
	}

	if duration > 0 {
		return &crawler.EstimatedTime{Type: crawler.TimeTypeVideo, Value: ceilDiv(duration, 60)}
	}
	if wordCount > 0 {
		return readingTime(wordCount, lang)
	}
	return nil
}

func readingTime(count int, lang crawler.Language) *crawler.EstimatedTime {
	if lang == crawler.LanguageEN {
		return &crawler.EstimatedTime{Type: crawler.TimeTypeTextEN, Value: ceilDiv(count, EnglishWordsPerMinute)}
	}
	return &crawler.EstimatedTime{Type: crawler.TimeTypeTextKO, Value: ceilDiv(count, KoreanCharsPerMinute)}
}

// parseClock reads HH:MM:SS or MM:SS into seconds.
func parseClock(s string) (int, bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

// parseCount reads a leading number such as "1,200", "1200자" or "850 words".
func parseCount(s string) (int, bool) {
	m := leadingCount.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
