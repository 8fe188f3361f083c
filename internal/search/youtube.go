package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/JakeFAU/curation-crawler/internal/crawler"
)

// maxYouTubeResults is the per-request ceiling enforced by the API.
const maxYouTubeResults = 50

// defaultTimeout bounds one backend request.
const defaultTimeout = 15 * time.Second

// YouTube searches videos through the YouTube Data API.
type YouTube struct {
	svc     *youtube.Service
	timeout time.Duration
}

// NewYouTube returns a YouTube backend. An empty apiKey yields a backend whose searches fail
// validation; opts may override the endpoint.
func NewYouTube(ctx context.Context, apiKey string, timeout time.Duration, opts ...option.ClientOption) (*YouTube, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	y := &YouTube{timeout: timeout}
	if apiKey == "" {
		return y, nil
	}
	svc, err := youtube.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("youtube client init: %w", err)
	}
	y.svc = svc
	return y, nil
}

// Name implements Backend.
func (y *YouTube) Name() string { return "youtube" }

// Search implements Backend.
func (y *YouTube) Search(ctx context.Context, query string, limit int) ([]crawler.SearchResult, error) {
	if y.svc == nil {
		return nil, crawler.NewError(crawler.ErrValidationFailed, "youtube search", fmt.Errorf("missing API key"))
	}
	if limit > maxYouTubeResults {
		limit = maxYouTubeResults
	}
	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	resp, err := y.svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		MaxResults(int64(limit)).
		RegionCode("KR").
		RelevanceLanguage("ko").
		Order("relevance").
		Context(ctx).
		Do()
	if err != nil {
		return nil, apiError("youtube search", err)
	}

	results := make([]crawler.SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		results = append(results, crawler.SearchResult{
			Title:   item.Snippet.Title,
			URL:     "https://www.youtube.com/watch?v=" + item.Id.VideoId,
			Snippet: item.Snippet.Description,
			Source:  crawler.SourceVideo,
		})
	}
	return results, nil
}

// apiError tags a Google API failure. Quota and rate-limit responses become ErrRateLimited.
func apiError(op string, err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return crawler.NewError(crawler.ErrUpstreamUnavailable, op, err)
	}
	if gerr.Code == http.StatusTooManyRequests {
		return crawler.NewError(crawler.ErrRateLimited, op, err)
	}
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "quotaExceeded", "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded":
			return crawler.NewError(crawler.ErrRateLimited, op, err)
		}
	}
	return crawler.NewError(crawler.ErrUpstreamUnavailable, op, err)
}
