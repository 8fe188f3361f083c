package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/curation-crawler/internal/crawler"
)

type fakeBackend struct {
	name   string
	n      int
	err    error
	limits []int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Search(_ context.Context, query string, limit int) ([]crawler.SearchResult, error) {
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]crawler.SearchResult, 0, f.n)
	for i := 0; i < f.n; i++ {
		out = append(out, crawler.SearchResult{
			Title: fmt.Sprintf("%s %s %d", f.name, query, i),
			URL:   fmt.Sprintf("https://%s.example/%d", f.name, i),
		})
	}
	return out, nil
}

func TestAdapterBothOrdersVideoFirst(t *testing.T) {
	t.Parallel()

	video := &fakeBackend{name: "video", n: 10}
	web := &fakeBackend{name: "web", n: 10}
	a := NewAdapter(video, web, nil)

	results := a.Search(context.Background(), "ai", SourceBoth, 5)

	require.Len(t, results, 5)
	assert.Equal(t, []int{3}, video.limits)
	assert.Equal(t, []int{3}, web.limits)
	assert.Equal(t, "https://video.example/0", results[0].URL)
	assert.Equal(t, "https://video.example/2", results[2].URL)
	assert.Equal(t, "https://web.example/0", results[3].URL)
}

func TestAdapterSwallowsBackendFailure(t *testing.T) {
	t.Parallel()

	video := &fakeBackend{name: "video", err: errors.New("quota exceeded")}
	web := &fakeBackend{name: "web", n: 2}
	a := NewAdapter(video, web, nil)

	results := a.Search(context.Background(), "ai", SourceBoth, 4)
	require.Len(t, results, 2)
	assert.Equal(t, "https://web.example/0", results[0].URL)

	assert.Empty(t, NewAdapter(video, nil, nil).Search(context.Background(), "ai", SourceBoth, 4))
}

func TestAdapterSingleSource(t *testing.T) {
	t.Parallel()

	video := &fakeBackend{name: "video", n: 4}
	web := &fakeBackend{name: "web", n: 4}
	a := NewAdapter(video, web, nil)

	results := a.Search(context.Background(), "ai", SourceWeb, 3)
	require.Len(t, results, 3)
	assert.Empty(t, video.limits)
	assert.Equal(t, []int{3}, web.limits)

	assert.Nil(t, a.Search(context.Background(), "ai", SourceVideo, 0))
}

func TestAdapterDropsBlockedHosts(t *testing.T) {
	t.Parallel()

	video := &fakeBackend{name: "video", n: 2}
	web := &fakeBackend{name: "web", n: 2}
	a := NewAdapter(video, web, nil)
	a.SetBlocklist(NewBlocklist([]string{"web.example"}))

	results := a.Search(context.Background(), "ai", SourceBoth, 4)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Contains(t, r.URL, "video.example")
	}
}

func TestParseSource(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"video", "web", "both"} {
		got, err := ParseSource(s)
		require.NoError(t, err)
		assert.Equal(t, Source(s), got)
	}
	_, err := ParseSource("images")
	require.Error(t, err)
}

func newYouTube(t *testing.T, apiKey string, handler http.Handler) *YouTube {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	yt, err := NewYouTube(context.Background(), apiKey, time.Second, option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return yt
}

func newCustomSearch(t *testing.T, handler http.Handler) *CustomSearch {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cs, err := NewCustomSearch(context.Background(), "k", "cx1", time.Second, option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return cs
}

func TestYouTubeSearch(t *testing.T) {
	t.Parallel()

	yt := newYouTube(t, "k", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/youtube/v3/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "video", q.Get("type"))
		assert.Equal(t, "chatgpt 활용", q.Get("q"))
		assert.Equal(t, "3", q.Get("maxResults"))
		assert.Equal(t, "KR", q.Get("regionCode"))
		assert.Equal(t, "k", q.Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"id":{"kind":"youtube#video","videoId":"abc123"},"snippet":{"title":"튜토리얼","description":"설명"}},
			{"id":{"kind":"youtube#channel","channelId":"skip"},"snippet":{"title":"channel"}}
		]}`))
	}))

	results, err := yt.Search(context.Background(), "chatgpt 활용", 3)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", results[0].URL)
	assert.Equal(t, "튜토리얼", results[0].Title)
	assert.Equal(t, "설명", results[0].Snippet)
	assert.Equal(t, crawler.SourceVideo, results[0].Source)
}

func TestYouTubeSearchErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"too many requests", http.StatusTooManyRequests, `{"error":{"code":429,"message":"slow down"}}`, crawler.ErrRateLimited},
		{"quota exceeded", http.StatusForbidden, `{"error":{"code":403,"message":"quota","errors":[{"reason":"quotaExceeded","message":"quota"}]}}`, crawler.ErrRateLimited},
		{"server error", http.StatusInternalServerError, `{"error":{"code":500,"message":"boom"}}`, crawler.ErrUpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			yt := newYouTube(t, "k", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			_, err := yt.Search(context.Background(), "q", 5)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSearchBackendsWithoutCredentials(t *testing.T) {
	t.Parallel()

	yt, err := NewYouTube(context.Background(), "", 0)
	require.NoError(t, err)
	_, err = yt.Search(context.Background(), "q", 5)
	require.ErrorIs(t, err, crawler.ErrValidationFailed)

	cs, err := NewCustomSearch(context.Background(), "k", "", 0)
	require.NoError(t, err)
	_, err = cs.Search(context.Background(), "q", 5)
	require.ErrorIs(t, err, crawler.ErrValidationFailed)
}

func TestCustomSearch(t *testing.T) {
	t.Parallel()

	cs := newCustomSearch(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customsearch/v1", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "cx1", q.Get("cx"))
		assert.Equal(t, "notion ai", q.Get("q"))
		assert.Equal(t, "10", q.Get("num"))
		assert.Equal(t, "m6", q.Get("dateRestrict"))
		assert.Equal(t, "k", q.Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"title":"Guide","link":"https://blog.example/guide","snippet":"How to"},
			{"title":"No link"}
		]}`))
	}))

	results, err := cs.Search(context.Background(), "notion ai", 25)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://blog.example/guide", results[0].URL)
	assert.Equal(t, "How to", results[0].Snippet)
	assert.Equal(t, crawler.SourceWeb, results[0].Source)
}

func TestCustomSearchServerError(t *testing.T) {
	t.Parallel()

	cs := newCustomSearch(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := cs.Search(context.Background(), "q", 5)
	require.ErrorIs(t, err, crawler.ErrUpstreamUnavailable)
}
