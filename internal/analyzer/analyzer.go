// Package analyzer classifies scraped content with a generative model and normalizes the
// answer into the storage vocabulary.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/curation-crawler/internal/crawler"
	"github.com/JakeFAU/curation-crawler/internal/metrics"
)

// Generator produces free text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Input is what the analyzer needs from a scrape.
type Input struct {
	Title   string
	Content string
	URL     string
	// Duration is the video length in seconds, zero when unknown.
	Duration int
	// WordCount is the text length, zero when unknown.
	WordCount int
}

// InputFromScrape adapts scraper output.
func InputFromScrape(s crawler.ScrapedContent) Input {
	return Input{
		Title:     s.Title,
		Content:   s.Content,
		URL:       s.URL,
		Duration:  s.Duration,
		WordCount: s.WordCount,
	}
}

// Analyzer wraps one model call per item. It never retries; rate-limit errors are tagged for
// the caller.
type Analyzer struct {
	gen    Generator
	logger *zap.Logger
}

// New builds an Analyzer.
func New(gen Generator, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{gen: gen, logger: logger}
}

// Analyze classifies in and returns the normalized result.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (crawler.AnalysisResult, error) {
	start := time.Now()
	defer func() { metrics.ObserveStage("analyze", time.Since(start)) }()

	text, err := a.gen.Generate(ctx, buildPrompt(in))
	if err != nil {
		return crawler.AnalysisResult{}, err
	}

	raw, err := parseResponse(text)
	if err != nil {
		a.logger.Warn("unparseable analysis response",
			zap.String("url", in.URL),
			zap.String("response", truncate(text, 500)),
		)
		return crawler.AnalysisResult{}, crawler.NewError(crawler.ErrValidationFailed, "failed to parse analysis", err)
	}

	category, ok := normalizeCategory(raw.Category)
	if !ok {
		return crawler.AnalysisResult{}, crawler.NewError(crawler.ErrValidationFailed, "failed to parse analysis",
			fmt.Errorf("unknown category %q", raw.Category))
	}

	logger := a.logger.With(zap.String("url", in.URL))
	lang := normalizeLanguage(raw.Language)
	result := crawler.AnalysisResult{
		Category:       category,
		Tools:          normalizeTools(raw.Tools),
		Description:    strings.TrimSpace(raw.Description),
		Tags:           normalizeTags(raw.Tags, logger),
		Difficulty:     normalizeDifficulty(raw.Difficulty),
		Language:       lang,
		EstimatedTime:  estimateTime(rnTimeText(raw.RnTime), lang, in.Duration, in.WordCount),
		ResultPreviews: normalizePreviews(raw.ResultPreview, logger),
	}
	logger.Debug("analyzed",
		zap.String("category", result.Category),
		zap.Strings("tools", result.Tools),
		zap.String("difficulty", string(result.Difficulty)),
	)
	return result, nil
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
