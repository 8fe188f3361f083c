package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/curation-crawler/internal/crawler"
)

// readerPage is the subset of the reader proxy's JSON we consume.
type readerPage struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Content       string `json:"content"`
	Image         string `json:"image"`
	PublishedTime string `json:"publishedTime"`
}

// readerEnvelope accepts both the wrapped ({"data": {...}}) and flat response shapes.
type readerEnvelope struct {
	Data *readerPage `json:"data"`
	readerPage
}

type readerClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	limiter Limiter
}

func (r *readerClient) Read(ctx context.Context, target string) (readerPage, error) {
	endpoint := strings.TrimSuffix(r.baseURL, "/") + "/" + target
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, endpoint); err != nil {
			return readerPage{}, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return readerPage{}, fmt.Errorf("create reader request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return readerPage{}, crawler.NewError(crawler.ErrUpstreamUnavailable, "reader proxy", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		kind := crawler.ErrUpstreamUnavailable
		if resp.StatusCode == http.StatusTooManyRequests {
			kind = crawler.ErrRateLimited
		}
		return readerPage{}, crawler.NewError(kind, "reader proxy",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var env readerEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return readerPage{}, crawler.NewError(crawler.ErrValidationFailed, "reader proxy", fmt.Errorf("decode response: %w", err))
	}
	if env.Data != nil {
		return *env.Data, nil
	}
	return env.readerPage, nil
}

type oembedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

type oembedClient struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

func (o *oembedClient) Lookup(ctx context.Context, videoURL string) (oembedResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("format", "json")
	params.Set("url", videoURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return oembedResponse{}, fmt.Errorf("create oembed request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return oembedResponse{}, crawler.NewError(crawler.ErrUpstreamUnavailable, "oembed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return oembedResponse{}, crawler.NewError(crawler.ErrUpstreamUnavailable, "oembed",
			fmt.Errorf("status %d", resp.StatusCode))
	}

	var out oembedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return oembedResponse{}, crawler.NewError(crawler.ErrValidationFailed, "oembed", fmt.Errorf("decode response: %w", err))
	}
	return out, nil
}
