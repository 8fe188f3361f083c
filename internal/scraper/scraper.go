// Package scraper turns a candidate URL into normalized ScrapedContent.
//
// Video URLs combine the oEmbed metadata endpoint with a reader proxy. Every other URL is
// read through the proxy alone and optionally enriched from the page's own HTML.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/curation-crawler/internal/crawler"
	"github.com/JakeFAU/curation-crawler/internal/metrics"
)

// Default endpoints.
const (
	DefaultReaderBaseURL = "https://r.jina.ai/"
	DefaultOEmbedURL     = "https://www.youtube.com/oembed"
)

// descriptionBudget is the maximum description length in runes.
const descriptionBudget = 200

// Limiter throttles outbound calls per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls endpoints and timeouts.
type Config struct {
	ReaderBaseURL  string
	ReaderAPIKey   string
	OEmbedURL      string
	UserAgent      string
	ReaderTimeout  time.Duration
	OEmbedTimeout  time.Duration
	EnrichTimeout  time.Duration
	EnrichMetadata bool
	// RespectRobots makes enrichment honor robots.txt on the source site.
	RespectRobots bool
}

func (c Config) withDefaults() Config {
	if c.ReaderBaseURL == "" {
		c.ReaderBaseURL = DefaultReaderBaseURL
	}
	if c.OEmbedURL == "" {
		c.OEmbedURL = DefaultOEmbedURL
	}
	if c.ReaderTimeout <= 0 {
		c.ReaderTimeout = 30 * time.Second
	}
	if c.OEmbedTimeout <= 0 {
		c.OEmbedTimeout = 10 * time.Second
	}
	if c.EnrichTimeout <= 0 {
		c.EnrichTimeout = 15 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "curation-crawler/1.0"
	}
	return c
}

// Scraper extracts fields from video and generic pages.
type Scraper struct {
	cfg    Config
	reader *readerClient
	oembed *oembedClient
	enrich *enricher
	now    func() time.Time
	logger *zap.Logger
}

// New builds a Scraper. limiter may be nil to disable throttling.
func New(cfg Config, client *http.Client, limiter Limiter, clock crawler.Clock, logger *zap.Logger) *Scraper {
	cfg = cfg.withDefaults()
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now
	if clock != nil {
		now = clock.Now
	}
	s := &Scraper{
		cfg:    cfg,
		reader: &readerClient{baseURL: cfg.ReaderBaseURL, apiKey: cfg.ReaderAPIKey, timeout: cfg.ReaderTimeout, client: client, limiter: limiter},
		oembed: &oembedClient{endpoint: cfg.OEmbedURL, timeout: cfg.OEmbedTimeout, client: client},
		now:    now,
		logger: logger,
	}
	if cfg.EnrichMetadata {
		s.enrich = newEnricher(cfg.UserAgent, cfg.EnrichTimeout, cfg.RespectRobots)
	}
	return s
}

// Scrape routes rawURL to the video or generic path.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (crawler.ScrapedContent, error) {
	start := time.Now()
	kind := "generic"
	var (
		out crawler.ScrapedContent
		err error
	)
	if videoID, ok := crawler.VideoID(rawURL); ok {
		kind = "video"
		out, err = s.scrapeVideo(ctx, rawURL, videoID)
	} else {
		out, err = s.scrapeGeneric(ctx, rawURL)
	}
	metrics.ObserveStage("scrape", time.Since(start))
	if err != nil {
		metrics.ObserveScrape(rawURL, kind, "error")
		return crawler.ScrapedContent{}, scrapeError(rawURL, err)
	}
	metrics.ObserveScrape(rawURL, kind, "ok")
	s.logger.Debug("scraped",
		zap.String("url", rawURL),
		zap.String("kind", kind),
		zap.Int("content_len", len(out.Content)),
	)
	return out, nil
}

// scrapeError prefixes err with the subsystem message while keeping its kind.
func scrapeError(rawURL string, err error) error {
	op := fmt.Sprintf("failed to scrape %s", rawURL)
	var ce *crawler.Error
	if errors.As(err, &ce) {
		return crawler.NewError(ce.Kind, op, err)
	}
	return crawler.NewError(crawler.ErrUpstreamUnavailable, op, err)
}
