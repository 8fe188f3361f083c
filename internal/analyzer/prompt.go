package analyzer

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/curation-crawler/internal/crawler"
)

// promptContentBudget bounds how much body text is sent to the model, in runes.
const promptContentBudget = 3000

func buildPrompt(in Input) string {
	body := []rune(strings.TrimSpace(in.Content))
	if len(body) > promptContentBudget {
		body = body[:promptContentBudget]
	}

	var categories strings.Builder
	for _, c := range crawler.Categories {
		fmt.Fprintf(&categories, "  - %s (%s)\n", c.ID, c.Name)
	}

	return fmt.Sprintf(`You are a curator of Korean AI-tool tutorials. Analyze the content below and answer with ONE JSON object only.
다음 콘텐츠를 분석하여 JSON 객체 하나만 응답하세요. 설명 문장이나 마크다운을 덧붙이지 마세요.

Title: %s
URL: %s
Content:
"""
%s
"""

Rules / 규칙:
1. "category": exactly one of the keys below.
%s2. "tools": AI tools used in the content, lowercase with no spaces (e.g. "chatgpt", "notebooklm").
   Prefer these known slugs when they apply: %s.
3. "rn_time": for videos the running time as "HH:MM:SS" or "MM:SS"; for text the character count (Korean) or word count (English) as a number.
4. "description": two sentences in Korean, polite "~합니다" register, describing what the reader learns.
5. "tags": 3 to 7 unique hashtag-style keywords, e.g. "#업무자동화".
6. "difficulty": one of "beginner", "intermediate", "advanced".
7. "language": two-letter code of the content language, "ko" or "en".
8. "result_preview": exactly 4 short Korean sentences, each describing something the reader can do after following the content.

Respond in this shape:
{"category":"","tools":[],"rn_time":"","description":"","tags":[],"difficulty":"","language":"","result_preview":["","","",""]}`,
		in.Title, in.URL, string(body), categories.String(), strings.Join(crawler.KnownToolSlugs(), ", "))
}
