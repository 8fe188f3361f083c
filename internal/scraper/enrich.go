package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	collyfetcher "github.com/JakeFAU/curation-crawler/internal/fetcher/colly"
)

// pageMeta holds fields read directly from a page's HTML.
type pageMeta struct {
	Title         string
	Description   string
	Author        string
	Image         string
	PublishedTime string
	// Body is the readability text, only computed when asked for.
	Body string
}

// htmlFetcher downloads raw HTML.
type htmlFetcher interface {
	Fetch(ctx context.Context, rawURL string) (collyfetcher.Page, error)
}

type enricher struct {
	fetcher htmlFetcher
	timeout time.Duration
}

func newEnricher(userAgent string, timeout time.Duration, respectRobots bool) *enricher {
	return &enricher{
		fetcher: collyfetcher.New(collyfetcher.Config{
			UserAgent:     userAgent,
			Timeout:       timeout,
			RespectRobots: respectRobots,
		}),
		timeout: timeout,
	}
}

func (e *enricher) Fetch(ctx context.Context, rawURL string) (pageMeta, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	page, err := e.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return pageMeta{}, err
	}
	return parsePageMeta(page.Body, rawURL)
}

func parsePageMeta(body []byte, rawURL string) (pageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageMeta{}, fmt.Errorf("parse html: %w", err)
	}

	meta := pageMeta{
		Title:         firstAttr(doc, "meta[property='og:title']", "meta[name='twitter:title']"),
		Description:   firstAttr(doc, "meta[property='og:description']", "meta[name='description']"),
		Author:        firstAttr(doc, "meta[name='author']", "meta[property='article:author']"),
		Image:         firstAttr(doc, "meta[property='og:image']", "meta[name='twitter:image']"),
		PublishedTime: firstAttr(doc, "meta[property='article:published_time']", "meta[itemprop='datePublished']"),
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if meta.Image != "" {
		meta.Image = resolveRef(rawURL, meta.Image)
	}

	if parsed, err := url.Parse(rawURL); err == nil {
		if article, err := readability.FromReader(bytes.NewReader(body), parsed); err == nil {
			meta.Body = strings.TrimSpace(article.TextContent)
			if meta.Title == "" {
				meta.Title = strings.TrimSpace(article.Title)
			}
		}
	}
	return meta, nil
}

func firstAttr(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func resolveRef(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
