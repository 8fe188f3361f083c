package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var videoURLPattern = regexp.MustCompile(
	`^(?:https?://)?(?:www\.|m\.|music\.)?` +
		`(?:youtube\.com/(?:watch\?(?:[^#]*&)?v=|embed/|shorts/|live/|v/)|youtu\.be/)` +
		`([A-Za-z0-9_-]{11})(?:[?&#/].*)?$`,
)

// VideoID returns the 11-character video ID when rawURL is a known video-platform URL.
func VideoID(rawURL string) (string, bool) {
	m := videoURLPattern.FindStringSubmatch(strings.TrimSpace(rawURL))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsVideoURL reports whether rawURL should be scraped through the video path.
func IsVideoURL(rawURL string) bool {
	_, ok := VideoID(rawURL)
	return ok
}

// NormalizeURL standardizes a URL so the same page always produces the same dedup key.
// It lowercases the scheme and host, removes default ports, drops fragments and
// tracking parameters, sorts the query, and rewrites video URLs to their watch form.
func NormalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if id, ok := VideoID(rawURL); ok {
		return "https://www.youtube.com/watch?v=" + id, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("parse url: %q is not absolute", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") || lower == "fbclid" || lower == "gclid" {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
