// Package persistence writes analyzed content packages: assets to object storage, rows to
// the relational store, and a notification once the write commits.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/curation-crawler/internal/crawler"
	"github.com/JakeFAU/curation-crawler/internal/hash/sha256"
	"github.com/JakeFAU/curation-crawler/internal/id/uuid"
	"github.com/JakeFAU/curation-crawler/internal/metrics"
)

// logoConcurrency bounds parallel logo downloads for one package.
const logoConcurrency = 4

// Store is the relational side of a save.
type Store interface {
	CheckDuplicate(ctx context.Context, sourceURL string) (bool, error)
	ExistingToolSlugs(ctx context.Context, slugs []string) (map[string]bool, error)
	SavePackage(ctx context.Context, rec crawler.ContentRecord) (string, error)
}

// Config tunes asset handling and notifications.
type Config struct {
	// EventTopic receives a SavedEvent after each commit. Empty disables publishing.
	EventTopic      string
	DownloadTimeout time.Duration
	MaxAssetBytes   int64
	UserAgent       string
}

// Dependencies are the collaborators a Saver writes through.
type Dependencies struct {
	Store      Store
	Thumbnails crawler.BlobStore
	Logos      crawler.BlobStore
	HTTPClient *http.Client
	Publisher  crawler.Publisher
	Clock      crawler.Clock
	// IDs names each save attempt's objects. Nil uses UUIDv7.
	IDs    crawler.IDGenerator
	Logger *zap.Logger
}

// Result reports the outcome of a save.
type Result struct {
	ContentID string
	Success   bool
	// ThumbnailURL is the re-hosted thumbnail, empty when none was stored.
	ThumbnailURL string
}

// Saver implements the persistence layer.
type Saver struct {
	cfg        Config
	store      Store
	thumbnails crawler.BlobStore
	logos      crawler.BlobStore
	download   downloader
	publisher  crawler.Publisher
	clock      crawler.Clock
	ids        crawler.IDGenerator
	logger     *zap.Logger
	logoSource func(slug string) string
	contentKey func(sourceURL string) string
}

// New builds a Saver. Store, both blob stores, and Clock are required.
func New(cfg Config, deps Dependencies) (*Saver, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("content store is required")
	}
	if deps.Thumbnails == nil || deps.Logos == nil {
		return nil, fmt.Errorf("thumbnail and logo blob stores are required")
	}
	if deps.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}
	if cfg.MaxAssetBytes <= 0 {
		cfg.MaxAssetBytes = DefaultMaxAssetBytes
	}
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var ids crawler.IDGenerator = uuid.New()
	if deps.IDs != nil {
		ids = deps.IDs
	}
	return &Saver{
		cfg:        cfg,
		store:      deps.Store,
		thumbnails: deps.Thumbnails,
		logos:      deps.Logos,
		download: downloader{
			client:    client,
			timeout:   cfg.DownloadTimeout,
			maxBytes:  cfg.MaxAssetBytes,
			userAgent: cfg.UserAgent,
		},
		publisher:  deps.Publisher,
		clock:      deps.Clock,
		ids:        ids,
		logger:     logger.Named("persistence"),
		logoSource: crawler.ToolLogoSource,
		contentKey: sha256.ContentKey,
	}, nil
}

// IsDuplicate reports whether sourceURL is already stored. Callers check before Save.
func (s *Saver) IsDuplicate(ctx context.Context, sourceURL string) (bool, error) {
	dup, err := s.store.CheckDuplicate(ctx, sourceURL)
	if err != nil {
		return false, fmt.Errorf("check duplicate content: %w", err)
	}
	return dup, nil
}

// uploaded remembers an object so it can be removed if the write fails.
type uploaded struct {
	store crawler.BlobStore
	path  string
}

// Save uploads the package's assets, writes every row in one transaction, and publishes a
// notification. On failure nothing is committed and assets uploaded for this call are removed.
// Objects are written under a per-attempt path, so removing them never touches assets that a
// committed row references.
func (s *Saver) Save(ctx context.Context, pkg crawler.Package) (Result, error) {
	start := s.clock.Now()
	defer func() { metrics.ObserveStage("save", s.clock.Now().Sub(start)) }()

	if err := validatePackage(pkg); err != nil {
		return Result{}, fmt.Errorf("failed to save content package: %w", err)
	}
	logger := s.logger.With(zap.String("url", pkg.SourceURL))

	existing, err := s.store.ExistingToolSlugs(ctx, pkg.Tools)
	if err != nil {
		return Result{}, fmt.Errorf("failed to save content package: %w", err)
	}

	attempt, err := s.ids.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("failed to save content package: %w", err)
	}
	key := s.contentKey(pkg.SourceURL) + "/" + attempt
	var objects []uploaded

	thumbnailRef, thumbPath := s.uploadThumbnail(ctx, logger, key, pkg.ThumbnailURL)
	if thumbPath != "" {
		objects = append(objects, uploaded{store: s.thumbnails, path: thumbPath})
	}

	var newTools []string
	for _, slug := range pkg.Tools {
		if !existing[slug] {
			newTools = append(newTools, slug)
		}
	}
	logos, logoPaths := s.uploadLogos(ctx, logger, attempt, newTools)
	for _, p := range logoPaths {
		objects = append(objects, uploaded{store: s.logos, path: p})
	}

	rec := crawler.ContentRecord{
		Package:      pkg,
		ThumbnailRef: thumbnailRef,
		ToolLogos:    logos,
		CreatedAt:    s.clock.Now(),
	}
	contentID, err := s.store.SavePackage(ctx, rec)
	if err != nil {
		s.compensate(context.WithoutCancel(ctx), logger, objects)
		return Result{}, fmt.Errorf("failed to save content package: %w", err)
	}

	logger.Info("content package saved",
		zap.String("content_id", contentID),
		zap.Strings("categories", pkg.Categories),
		zap.Int("tools", len(pkg.Tools)),
		zap.Int("tags", len(pkg.Tags)),
		zap.Bool("thumbnail", thumbnailRef != ""),
	)
	s.publish(ctx, logger, contentID, pkg)
	return Result{ContentID: contentID, Success: true, ThumbnailURL: thumbnailRef}, nil
}

func validatePackage(pkg crawler.Package) error {
	switch {
	case pkg.SourceURL == "":
		return crawler.NewError(crawler.ErrValidationFailed, "validate package", errors.New("source url is required"))
	case pkg.Title == "":
		return crawler.NewError(crawler.ErrValidationFailed, "validate package", errors.New("title is required"))
	case len(pkg.Categories) == 0:
		return crawler.NewError(crawler.ErrValidationFailed, "validate package", errors.New("at least one category is required"))
	}
	return nil
}

// uploadThumbnail re-hosts the thumbnail. Any failure yields an empty reference; the original
// URL is never stored.
func (s *Saver) uploadThumbnail(ctx context.Context, logger *zap.Logger, key, sourceURL string) (string, string) {
	if sourceURL == "" {
		metrics.ObserveAssetUpload("thumbnail", "skipped")
		return "", ""
	}
	a, err := s.download.fetch(ctx, sourceURL)
	if err != nil {
		metrics.ObserveAssetUpload("thumbnail", "failed")
		logger.Warn("thumbnail download failed, saving without thumbnail",
			zap.String("thumbnail_url", sourceURL), zap.Error(err))
		return "", ""
	}
	objectPath := key + "/thumbnail" + a.Ext
	ref, err := s.thumbnails.PutObject(ctx, objectPath, a.ContentType, a.reader())
	if err != nil {
		metrics.ObserveAssetUpload("thumbnail", "failed")
		logger.Warn("thumbnail upload failed, saving without thumbnail",
			zap.String("path", objectPath), zap.Error(err))
		return "", ""
	}
	metrics.ObserveAssetUpload("thumbnail", "ok")
	return ref, objectPath
}

// uploadLogos fetches logos for tools being created by this save. Missing logos only warn.
func (s *Saver) uploadLogos(ctx context.Context, logger *zap.Logger, attempt string, slugs []string) (map[string]string, []string) {
	var (
		mu    sync.Mutex
		logos = make(map[string]string, len(slugs))
		paths []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(logoConcurrency)
	for _, slug := range slugs {
		source := s.logoSource(slug)
		if source == "" {
			metrics.ObserveAssetUpload("logo", "skipped")
			logger.Warn("no logo source for tool", zap.String("tool", slug))
			continue
		}
		g.Go(func() error {
			a, err := s.download.fetch(gctx, source)
			if err != nil {
				metrics.ObserveAssetUpload("logo", "failed")
				logger.Warn("logo download failed", zap.String("tool", slug), zap.Error(err))
				return nil
			}
			objectPath := slug + "/" + attempt + a.Ext
			ref, err := s.logos.PutObject(gctx, objectPath, a.ContentType, a.reader())
			if err != nil {
				metrics.ObserveAssetUpload("logo", "failed")
				logger.Warn("logo upload failed", zap.String("tool", slug), zap.Error(err))
				return nil
			}
			metrics.ObserveAssetUpload("logo", "ok")
			mu.Lock()
			logos[slug] = ref
			paths = append(paths, objectPath)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return logos, paths
}

// compensate deletes objects uploaded for a write that did not commit.
func (s *Saver) compensate(ctx context.Context, logger *zap.Logger, objects []uploaded) {
	for _, obj := range objects {
		if err := obj.store.DeleteObject(ctx, obj.path); err != nil {
			logger.Warn("failed to remove orphaned asset", zap.String("path", obj.path), zap.Error(err))
		}
	}
}

func (s *Saver) publish(ctx context.Context, logger *zap.Logger, contentID string, pkg crawler.Package) {
	if s.publisher == nil || s.cfg.EventTopic == "" {
		return
	}
	event := crawler.SavedEvent{
		ContentID: contentID,
		SourceURL: pkg.SourceURL,
		Category:  pkg.Categories[0],
		Title:     pkg.Title,
		SavedAt:   s.clock.Now(),
	}
	if _, err := s.publisher.Publish(ctx, s.cfg.EventTopic, event); err != nil {
		logger.Warn("failed to publish saved event", zap.String("content_id", contentID), zap.Error(err))
	}
}
