package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/curation-crawler/internal/crawler"
)

// Preview and tag bounds.
const (
	previewCount = 4
	minTags      = 3
	maxTags      = 7
)

// rawAnalysis is the model's JSON before normalization. Fields the model is known to vary the
// type of are kept raw.
type rawAnalysis struct {
	Category      string            `json:"category"`
	Tools         []json.RawMessage `json:"tools"`
	RnTime        json.RawMessage   `json:"rn_time"`
	Description   string            `json:"description"`
	Tags          []json.RawMessage `json:"tags"`
	Difficulty    string            `json:"difficulty"`
	Language      string            `json:"language"`
	ResultPreview []json.RawMessage `json:"result_preview"`
}

// extractJSON strips markdown fences and returns the outermost JSON object.
func extractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", errors.New("no JSON object in response")
	}
	return s[start : end+1], nil
}

func parseResponse(text string) (rawAnalysis, error) {
	payload, err := extractJSON(text)
	if err != nil {
		return rawAnalysis{}, err
	}
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return rawAnalysis{}, fmt.Errorf("unmarshal analysis: %w", err)
	}
	return raw, nil
}

// normalizeCategory accepts the canonical key, its slug, or its display name.
func normalizeCategory(value string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, c := range crawler.Categories {
		if v == c.ID || v == c.Slug || strings.TrimSpace(value) == c.Name {
			return c.ID, true
		}
	}
	return "", false
}

var difficultyAliases = map[string]crawler.Difficulty{
	"beginner":     crawler.DifficultyBeginner,
	"easy":         crawler.DifficultyBeginner,
	"basic":        crawler.DifficultyBeginner,
	"초급":           crawler.DifficultyBeginner,
	"입문":           crawler.DifficultyBeginner,
	"intermediate": crawler.DifficultyIntermediate,
	"medium":       crawler.DifficultyIntermediate,
	"중급":           crawler.DifficultyIntermediate,
	"advanced":     crawler.DifficultyAdvanced,
	"expert":       crawler.DifficultyAdvanced,
	"hard":         crawler.DifficultyAdvanced,
	"고급":           crawler.DifficultyAdvanced,
}

// normalizeDifficulty never fails: unknown terms resolve to BEGINNER.
func normalizeDifficulty(value string) crawler.Difficulty {
	if d, ok := difficultyAliases[strings.ToLower(strings.TrimSpace(value))]; ok {
		return d
	}
	return crawler.DifficultyBeginner
}

// normalizeLanguage never fails: anything that is not English resolves to KO.
func normalizeLanguage(value string) crawler.Language {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "en", "eng", "english", "영어":
		return crawler.LanguageEN
	default:
		return crawler.LanguageKO
	}
}

func normalizeTools(raw []json.RawMessage) []string {
	seen := make(map[string]struct{}, len(raw))
	tools := make([]string, 0, len(raw))
	for _, r := range raw {
		slug := crawler.ToolSlug(coerceText(r))
		if slug == "" {
			continue
		}
		if _, dup := seen[slug]; dup {
			continue
		}
		seen[slug] = struct{}{}
		tools = append(tools, slug)
	}
	return tools
}

func normalizeTags(raw []json.RawMessage, logger *zap.Logger) []string {
	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, r := range raw {
		name := crawler.CleanTagName(coerceText(r))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		tags = append(tags, name)
		if len(tags) == maxTags {
			break
		}
	}
	if len(tags) < minTags {
		logger.Warn("analysis returned too few tags", zap.Int("tags", len(tags)))
	}
	return tags
}

// normalizePreviews keeps at most four non-empty previews, ordered from zero.
func normalizePreviews(raw []json.RawMessage, logger *zap.Logger) []crawler.ResultPreview {
	if len(raw) != previewCount {
		logger.Warn("analysis returned unexpected preview count",
			zap.Int("got", len(raw)),
			zap.Int("want", previewCount),
		)
	}
	if len(raw) > previewCount {
		raw = raw[:previewCount]
	}
	previews := make([]crawler.ResultPreview, 0, len(raw))
	for _, r := range raw {
		text := strings.TrimSpace(coerceText(r))
		if text == "" {
			continue
		}
		previews = append(previews, crawler.ResultPreview{
			Order:       len(previews),
			Type:        crawler.PreviewTypeText,
			Description: text,
		})
	}
	if len(previews) != previewCount && len(raw) == previewCount {
		logger.Warn("dropped empty previews", zap.Int("kept", len(previews)))
	}
	return previews
}

// coerceText turns a JSON scalar or a {"description"|"text": ...} object into plain text.
func coerceText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range []string{"description", "text", "name", "value"} {
			if v, ok := obj[key]; ok {
				return coerceText(v)
			}
		}
	}
	return ""
}

// rnTimeText returns rn_time as text whether the model sent a string or a number.
func rnTimeText(raw json.RawMessage) string {
	return strings.TrimSpace(coerceText(raw))
}
