package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"
)

func TestFetchReturnsBody(t *testing.T) {
	t.Parallel()

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><head><title>Hi</title></head></html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "curator-test", Timeout: time.Second})
	page, err := f.Fetch(context.Background(), srv.URL+"/post")

	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Contains(t, string(page.Body), "<title>Hi</title>")
	require.Contains(t, page.ContentType, "text/html")
	require.Equal(t, "curator-test", gotUA)
}

func TestFetchSameURLTwice(t *testing.T) {
	t.Parallel()

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>again</body></html>"))
	}))
	defer srv.Close()

	f := New(Config{Timeout: time.Second})
	for i := 0; i < 2; i++ {
		page, err := f.Fetch(context.Background(), srv.URL+"/post")
		require.NoError(t, err)
		require.Contains(t, string(page.Body), "again")
	}
	require.Equal(t, 2, hits)
}

func TestFetchPropagatesHTTPErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(Config{}).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestFetchHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(Config{Timeout: 5 * time.Second}).Fetch(ctx, srv.URL)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	var result Page
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, time.Unix(0, 0), &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	require.Contains(t, collyReq.Headers.Get("Accept"), "text/html")

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"Content-Type": {"text/html"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com")},
	})
	require.Equal(t, http.StatusCreated, result.StatusCode)
	require.Equal(t, "body", string(result.Body))
	require.Equal(t, "text/html", result.ContentType)

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
