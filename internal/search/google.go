package search

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/JakeFAU/curation-crawler/internal/crawler"
)

// maxCustomSearchResults is the per-request ceiling enforced by the API.
const maxCustomSearchResults = 10

// CustomSearch queries a Google Programmable Search engine for web pages.
type CustomSearch struct {
	svc      *customsearch.Service
	engineID string
	timeout  time.Duration
	// DateRestrict limits results by recency, e.g. "m6". Empty disables it.
	DateRestrict string
}

// NewCustomSearch returns a web backend. Missing credentials yield a backend whose searches
// fail validation; opts may override the endpoint.
func NewCustomSearch(ctx context.Context, apiKey, engineID string, timeout time.Duration, opts ...option.ClientOption) (*CustomSearch, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &CustomSearch{engineID: engineID, timeout: timeout, DateRestrict: "m6"}
	if apiKey == "" || engineID == "" {
		return c, nil
	}
	svc, err := customsearch.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("custom search client init: %w", err)
	}
	c.svc = svc
	return c, nil
}

// Name implements Backend.
func (c *CustomSearch) Name() string { return "google" }

// Search implements Backend.
func (c *CustomSearch) Search(ctx context.Context, query string, limit int) ([]crawler.SearchResult, error) {
	if c.svc == nil {
		return nil, crawler.NewError(crawler.ErrValidationFailed, "custom search", fmt.Errorf("missing API key or engine id"))
	}
	if limit > maxCustomSearchResults {
		limit = maxCustomSearchResults
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	call := c.svc.Cse.List().Cx(c.engineID).Q(query).Num(int64(limit))
	if c.DateRestrict != "" {
		call = call.DateRestrict(c.DateRestrict)
	}
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, apiError("custom search", err)
	}

	results := make([]crawler.SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Link == "" {
			continue
		}
		results = append(results, crawler.SearchResult{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
			Source:  crawler.SourceWeb,
		})
	}
	return results, nil
}
