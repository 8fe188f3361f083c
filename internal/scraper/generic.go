package scraper

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/curation-crawler/internal/crawler"
)

const unknownAuthor = "Unknown"

func (s *Scraper) scrapeGeneric(ctx context.Context, rawURL string) (crawler.ScrapedContent, error) {
	page, err := s.reader.Read(ctx, rawURL)
	if err != nil {
		return crawler.ScrapedContent{}, err
	}

	text := strings.TrimSpace(page.Content)
	out := crawler.ScrapedContent{
		Title:        strings.TrimSpace(page.Title),
		ThumbnailURL: page.Image,
		Content:      text,
		URL:          rawURL,
		Author:       author(text),
	}

	published, found := publishedAt(text)
	if !found {
		published, found = parseDate(page.PublishedTime)
	}

	if s.enrich != nil {
		meta, err := s.enrich.Fetch(ctx, rawURL)
		if err != nil {
			s.logger.Debug("metadata enrichment failed", zap.String("url", rawURL), zap.Error(err))
		} else {
			if out.Title == "" {
				out.Title = meta.Title
			}
			if out.ThumbnailURL == "" {
				out.ThumbnailURL = meta.Image
			}
			if out.Author == "" {
				out.Author = meta.Author
			}
			if !found {
				published, found = parseDate(meta.PublishedTime)
			}
			if out.Content == "" {
				out.Content = meta.Body
			}
			out.Description = meta.Description
		}
	}

	if out.Content == "" {
		return crawler.ScrapedContent{}, crawler.NewError(crawler.ErrValidationFailed, "reader proxy",
			errors.New("empty page content"))
	}
	if out.Title == "" {
		out.Title = rawURL
	}
	if out.Author == "" {
		out.Author = unknownAuthor
	}
	if !found {
		published = s.now()
	}
	out.PublishedAt = published

	if desc := firstParagraph(out.Content); desc != "" {
		out.Description = desc
	} else if out.Description == "" {
		out.Description = strings.TrimSpace(page.Description)
	}
	out.Description = truncateRunes(out.Description, descriptionBudget)
	out.WordCount = wordCount(out.Content)
	return out, nil
}
