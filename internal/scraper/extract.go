package scraper

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var (
	lengthSecondsPattern = regexp.MustCompile(`"lengthSeconds"\s*:\s*"?(\d+)`)
	isoDurationPattern   = regexp.MustCompile(`\bPT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?\b`)
	viewCountPattern     = regexp.MustCompile(`(?i)([\d][\d,]*)\s*(?:views|회)`)
	jsonDatePattern      = regexp.MustCompile(`"(?:uploadDate|datePublished|publishDate)"\s*:\s*"([^"]+)"`)
	dottedDatePattern    = regexp.MustCompile(`\b(\d{4})[.\-/]\s?(\d{1,2})[.\-/]\s?(\d{1,2})\b`)
	englishDatePattern   = regexp.MustCompile(`\b((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.? \d{1,2}, \d{4})\b`)
	shortDescPattern     = regexp.MustCompile(`"shortDescription"\s*:\s*("(?:[^"\\]|\\.)*")`)
	authorPattern        = regexp.MustCompile(`(?im)^\s*(?:by|author|written by|글쓴이|작성자|저자|기자)\s*[:：]?\s+(.{2,80}?)\s*$`)
	latinTokenPattern    = regexp.MustCompile(`[A-Za-z]`)
	markdownNoisePattern = regexp.MustCompile(`^(?:#|!\[|\[!\[|\||>|[-*_]{3,}$|\d+\.\s*$)`)
	markdownLinkPattern  = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
)

// durationSeconds recovers a video length from reader text.
func durationSeconds(text string) int {
	if m := lengthSecondsPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	for _, m := range isoDurationPattern.FindAllStringSubmatch(text, -1) {
		if m[1] == "" && m[2] == "" && m[3] == "" {
			continue
		}
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		s, _ := strconv.Atoi(m[3])
		return h*3600 + mi*60 + s
	}
	return 0
}

// viewCount recovers a view counter, returning zero when absent.
func viewCount(text string) int64 {
	m := viewCountPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	digits := strings.ReplaceAll(m[1], ",", "")
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// publishedAt finds the first recognizable date in the text.
func publishedAt(text string) (time.Time, bool) {
	if m := jsonDatePattern.FindStringSubmatch(text); m != nil {
		if t, ok := parseDate(m[1]); ok {
			return t, true
		}
	}
	if m := dottedDatePattern.FindStringSubmatch(text); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if y >= 2000 && mo >= 1 && mo <= 12 && d >= 1 && d <= 31 {
			return time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC), true
		}
	}
	if m := englishDatePattern.FindStringSubmatch(text); m != nil {
		if t, ok := parseDate(m[1]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan. 2, 2006",
	time.RFC1123,
	time.RFC1123Z,
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// videoDescription pulls the uploader's description out of embedded page JSON.
func videoDescription(text string) string {
	m := shortDescPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	var desc string
	if err := json.Unmarshal([]byte(m[1]), &desc); err != nil {
		return ""
	}
	return strings.TrimSpace(desc)
}

func author(text string) string {
	if m := authorPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(markdownLinkPattern.ReplaceAllString(m[1], "$1"))
	}
	return ""
}

// wordCount counts Hangul characters when any are present, otherwise latin-looking tokens.
func wordCount(text string) int {
	hangul := 0
	for _, r := range text {
		if unicode.Is(unicode.Hangul, r) {
			hangul++
		}
	}
	if hangul > 0 {
		return hangul
	}
	count := 0
	for _, token := range strings.Fields(text) {
		if latinTokenPattern.MatchString(token) {
			count++
		}
	}
	return count
}

// firstParagraph returns the first prose paragraph, skipping markdown headings, images,
// tables and rules.
func firstParagraph(text string) string {
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		var lines []string
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || markdownNoisePattern.MatchString(line) {
				continue
			}
			lines = append(lines, markdownLinkPattern.ReplaceAllString(line, "$1"))
		}
		paragraph := strings.TrimSpace(strings.Join(lines, " "))
		if utf8.RuneCountInString(paragraph) >= 20 {
			return paragraph
		}
	}
	return ""
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
