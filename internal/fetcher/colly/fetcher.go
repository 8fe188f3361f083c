// Package collyfetcher downloads single HTML pages with gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// maxBodySize caps how much of a page is read.
const maxBodySize = 5 << 20

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Page is a fetched HTML document.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

// Fetcher performs one-off GETs through a Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. Clones share the visited set, so revisits stay allowed for a
// long-running process that sees the same URL on a later run.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false), colly.MaxBodySize(maxBodySize), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch retrieves rawURL, honoring ctx cancellation.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	var (
		result   Page
		fetchErr error
	)
	collector := f.buildCollector(time.Now(), &result, &fetchErr)
	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return Page{}, err
	}
	if result.StatusCode >= http.StatusBadRequest {
		return Page{}, fmt.Errorf("colly fetch %s: status %d", rawURL, result.StatusCode)
	}
	return result, nil
}

func (f *Fetcher) buildCollector(start time.Time, result *Page, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	f.configureCollectorHooks(collector, start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, start time.Time, result *Page, fetchErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = Page{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        append([]byte(nil), r.Body...),
			Duration:    time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
