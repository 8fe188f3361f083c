package scraper

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/curation-crawler/internal/crawler"
)

// scrapeVideo requires oEmbed; the reader proxy only adds best-effort detail.
func (s *Scraper) scrapeVideo(ctx context.Context, rawURL, videoID string) (crawler.ScrapedContent, error) {
	watchURL := "https://www.youtube.com/watch?v=" + videoID

	meta, err := s.oembed.Lookup(ctx, watchURL)
	if err != nil {
		return crawler.ScrapedContent{}, err
	}

	out := crawler.ScrapedContent{
		Title:        strings.TrimSpace(meta.Title),
		Author:       strings.TrimSpace(meta.AuthorName),
		ThumbnailURL: meta.ThumbnailURL,
		URL:          rawURL,
		PublishedAt:  s.now(),
		IsVideo:      true,
	}
	if out.ThumbnailURL == "" {
		out.ThumbnailURL = fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", videoID)
	}

	page, err := s.reader.Read(ctx, watchURL)
	if err != nil {
		s.logger.Warn("reader proxy failed for video, continuing with embed metadata",
			zap.String("url", rawURL),
			zap.Error(err),
		)
	} else {
		text := page.Content
		out.Description = videoDescription(text)
		if out.Description == "" {
			out.Description = strings.TrimSpace(page.Description)
		}
		if out.Description == "" {
			out.Description = firstParagraph(text)
		}
		out.Duration = durationSeconds(text)
		out.ViewCount = viewCount(text)
		if t, ok := publishedAt(text); ok {
			out.PublishedAt = t
		} else if t, ok := parseDate(page.PublishedTime); ok {
			out.PublishedAt = t
		}
		if out.Title == "" {
			out.Title = strings.TrimSpace(page.Title)
		}
	}

	out.Content = out.Description
	if out.Content == "" {
		out.Content = out.Title
	}
	if out.Title == "" {
		return crawler.ScrapedContent{}, crawler.NewError(crawler.ErrValidationFailed, "video metadata",
			fmt.Errorf("no title for video %s", videoID))
	}
	return out, nil
}
