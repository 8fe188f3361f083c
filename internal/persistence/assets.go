package persistence

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

const (
	// DefaultDownloadTimeout bounds a single asset download.
	DefaultDownloadTimeout = 15 * time.Second
	// DefaultMaxAssetBytes caps downloaded asset size.
	DefaultMaxAssetBytes int64 = 10 << 20
)

var imageExtensions = map[string]string{
	"image/jpeg":               ".jpg",
	"image/jpg":                ".jpg",
	"image/png":                ".png",
	"image/webp":               ".webp",
	"image/gif":                ".gif",
	"image/avif":               ".avif",
	"image/svg+xml":            ".svg",
	"image/x-icon":             ".ico",
	"image/vnd.microsoft.icon": ".ico",
}

// asset is a downloaded image ready for upload.
type asset struct {
	ContentType string
	Ext         string
	Data        []byte
}

type downloader struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
}

// fetch downloads rawURL and accepts only image responses within the size cap.
func (d downloader) fetch(ctx context.Context, rawURL string) (asset, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return asset{}, fmt.Errorf("build asset request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return asset{}, fmt.Errorf("download asset: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return asset{}, fmt.Errorf("download asset: unexpected status %d", resp.StatusCode)
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return asset{}, fmt.Errorf("download asset: content type %q is not an image", resp.Header.Get("Content-Type"))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return asset{}, fmt.Errorf("read asset body: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return asset{}, fmt.Errorf("download asset: body exceeds %d bytes", d.maxBytes)
	}
	if len(data) == 0 {
		return asset{}, fmt.Errorf("download asset: empty body")
	}
	return asset{ContentType: mediaType, Ext: extensionFor(mediaType, rawURL), Data: data}, nil
}

func (a asset) reader() io.Reader {
	return bytes.NewReader(a.Data)
}

// extensionFor prefers the media type and falls back to the URL path.
func extensionFor(mediaType, rawURL string) string {
	if ext, ok := imageExtensions[mediaType]; ok {
		return ext
	}
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); len(ext) > 1 && len(ext) <= 5 {
			return ext
		}
	}
	return ".img"
}
