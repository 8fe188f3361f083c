// Package search finds candidate URLs for a topic across video and web search backends.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/curation-crawler/internal/crawler"
	"github.com/JakeFAU/curation-crawler/internal/metrics"
)

// Source selects which backends a search consults.
type Source string

// Source values.
const (
	SourceVideo Source = "video"
	SourceWeb   Source = "web"
	SourceBoth  Source = "both"
)

// ParseSource validates a user-supplied source name.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceVideo, SourceWeb, SourceBoth:
		return Source(s), nil
	default:
		return "", fmt.Errorf("unknown search source %q", s)
	}
}

// Backend is one external search API.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]crawler.SearchResult, error)
}

// Adapter fans a query out to the configured backends. A nil backend is treated as
// unavailable and contributes nothing.
type Adapter struct {
	video   Backend
	web     Backend
	blocked *Blocklist
	logger  *zap.Logger
}

// NewAdapter builds an Adapter. Either backend may be nil.
func NewAdapter(video, web Backend, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{video: video, web: web, logger: logger}
}

// SetBlocklist filters every later search through bl.
func (a *Adapter) SetBlocklist(bl *Blocklist) {
	a.blocked = bl
}

// Search returns at most limit results: video results first, then web results.
// Backend failures are logged and swallowed, so the result may be empty but never an error.
func (a *Adapter) Search(ctx context.Context, query string, source Source, limit int) []crawler.SearchResult {
	if limit <= 0 {
		return nil
	}

	perBackend := limit
	if source == SourceBoth {
		perBackend = (limit + 1) / 2
	}

	var results []crawler.SearchResult
	if source == SourceVideo || source == SourceBoth {
		results = append(results, a.query(ctx, a.video, query, perBackend)...)
	}
	if source == SourceWeb || source == SourceBoth {
		results = append(results, a.query(ctx, a.web, query, perBackend)...)
	}

	if len(results) > limit {
		results = results[:limit]
	}
	a.logger.Info("search complete",
		zap.String("query", query),
		zap.String("source", string(source)),
		zap.Int("limit", limit),
		zap.Int("results", len(results)),
	)
	return results
}

func (a *Adapter) query(ctx context.Context, backend Backend, query string, limit int) []crawler.SearchResult {
	if backend == nil {
		return nil
	}
	results, err := backend.Search(ctx, query, limit)
	if err != nil {
		metrics.ObserveSearch(backend.Name(), "error", 0)
		a.logger.Warn("search backend failed",
			zap.String("backend", backend.Name()),
			zap.String("query", query),
			zap.Error(err),
		)
		return nil
	}
	metrics.ObserveSearch(backend.Name(), "ok", len(results))
	if a.blocked != nil {
		kept := results[:0]
		for _, r := range results {
			if a.blocked.Blocked(r.URL) {
				a.logger.Debug("dropping blocked result", zap.String("url", r.URL))
				continue
			}
			kept = append(kept, r)
		}
		results = kept
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
