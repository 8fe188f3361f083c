package crawler

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Category is a member of the fixed controlled vocabulary. ID equals the canonical key.
type Category struct {
	ID    string
	Name  string
	Slug  string
	Query string
}

// Categories is the controlled vocabulary, in crawl order.
var Categories = []Category{
	{
		ID:    "productivity",
		Name:  "업무 생산성",
		Slug:  "productivity",
		Query: "AI 업무 자동화 활용법 ChatGPT 생산성 productivity",
	},
	{
		ID:    "creative",
		Name:  "창작·디자인",
		Slug:  "creative",
		Query: "AI 이미지 영상 디자인 생성 활용 creative AI tools",
	},
	{
		ID:    "development",
		Name:  "개발·코딩",
		Slug:  "development",
		Query: "AI 코딩 개발 도구 활용 Cursor Copilot coding",
	},
	{
		ID:    "learning",
		Name:  "학습·리서치",
		Slug:  "learning",
		Query: "AI 공부 학습 리서치 활용법 learning research",
	},
}

// CategoryByID returns the vocabulary entry for a canonical key.
func CategoryByID(id string) (Category, bool) {
	for _, c := range Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// ToolInfo describes a curated AI tool.
type ToolInfo struct {
	Name   string
	Domain string
}

// KnownTools maps normalized tool slugs to curated brand names.
var KnownTools = map[string]ToolInfo{
	"chatgpt":         {Name: "ChatGPT", Domain: "chatgpt.com"},
	"claude":          {Name: "Claude", Domain: "claude.ai"},
	"gemini":          {Name: "Gemini", Domain: "gemini.google.com"},
	"copilot":         {Name: "Microsoft Copilot", Domain: "copilot.microsoft.com"},
	"githubcopilot":   {Name: "GitHub Copilot", Domain: "github.com"},
	"cursor":          {Name: "Cursor", Domain: "cursor.com"},
	"perplexity":      {Name: "Perplexity", Domain: "perplexity.ai"},
	"midjourney":      {Name: "Midjourney", Domain: "midjourney.com"},
	"dalle":           {Name: "DALL·E", Domain: "openai.com"},
	"stablediffusion": {Name: "Stable Diffusion", Domain: "stability.ai"},
	"runway":          {Name: "Runway", Domain: "runwayml.com"},
	"sora":            {Name: "Sora", Domain: "sora.com"},
	"suno":            {Name: "Suno", Domain: "suno.com"},
	"elevenlabs":      {Name: "ElevenLabs", Domain: "elevenlabs.io"},
	"notion":          {Name: "Notion AI", Domain: "notion.so"},
	"notebooklm":      {Name: "NotebookLM", Domain: "notebooklm.google.com"},
	"gamma":           {Name: "Gamma", Domain: "gamma.app"},
	"canva":           {Name: "Canva", Domain: "canva.com"},
	"zapier":          {Name: "Zapier", Domain: "zapier.com"},
	"make":            {Name: "Make", Domain: "make.com"},
	"wrtn":            {Name: "뤼튼", Domain: "wrtn.ai"},
	"clovax":          {Name: "CLOVA X", Domain: "clova-x.naver.com"},
	"replit":          {Name: "Replit", Domain: "replit.com"},
	"lovable":         {Name: "Lovable", Domain: "lovable.dev"},
	"v0":              {Name: "v0", Domain: "v0.dev"},
}

// KnownToolSlugs returns the curated slugs in a stable order for prompt hints.
func KnownToolSlugs() []string {
	return []string{
		"chatgpt", "claude", "gemini", "copilot", "githubcopilot", "cursor", "perplexity",
		"midjourney", "dalle", "stablediffusion", "runway", "sora", "suno", "elevenlabs",
		"notion", "notebooklm", "gamma", "canva", "zapier", "make", "wrtn", "clovax",
		"replit", "lovable", "v0",
	}
}

const faviconSource = "https://www.google.com/s2/favicons?domain=%s&sz=128"

// ToolDisplayName returns the curated brand name for a slug, falling back to the slug.
func ToolDisplayName(slug string) string {
	if info, ok := KnownTools[slug]; ok {
		return info.Name
	}
	return slug
}

// ToolLogoSource returns where a tool's logo can be downloaded, or "" if unknown.
func ToolLogoSource(slug string) string {
	info, ok := KnownTools[slug]
	if !ok || info.Domain == "" {
		return ""
	}
	return fmt.Sprintf(faviconSource, info.Domain)
}

// ToolSlug normalizes a tool name: NFKC, lowercase, whitespace removed.
func ToolSlug(name string) string {
	folded := strings.ToLower(norm.NFKC.String(strings.TrimSpace(name)))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, folded)
}

// CleanTagName strips leading '#' characters and surrounding whitespace.
func CleanTagName(name string) string {
	cleaned := strings.TrimSpace(norm.NFKC.String(name))
	cleaned = strings.TrimLeft(cleaned, "#")
	return strings.TrimSpace(cleaned)
}

// TagSlug builds a URL-safe slug that keeps Hangul and other letters.
func TagSlug(name string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(CleanTagName(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
