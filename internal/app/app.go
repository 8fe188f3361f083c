// Package app builds and holds the long-lived services behind the CLI commands.
package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/curation-crawler/internal/analyzer"
	"github.com/JakeFAU/curation-crawler/internal/api"
	"github.com/JakeFAU/curation-crawler/internal/clock/system"
	"github.com/JakeFAU/curation-crawler/internal/config"
	"github.com/JakeFAU/curation-crawler/internal/crawler"
	"github.com/JakeFAU/curation-crawler/internal/id/uuid"
	"github.com/JakeFAU/curation-crawler/internal/persistence"
	"github.com/JakeFAU/curation-crawler/internal/pipeline"
	"github.com/JakeFAU/curation-crawler/internal/policy/ratelimit"
	pubmemory "github.com/JakeFAU/curation-crawler/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/curation-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/curation-crawler/internal/runlock"
	"github.com/JakeFAU/curation-crawler/internal/scraper"
	"github.com/JakeFAU/curation-crawler/internal/search"
	gcsstorage "github.com/JakeFAU/curation-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/curation-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/curation-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/curation-crawler/internal/storage/postgres"
	"github.com/JakeFAU/curation-crawler/internal/telemetry"
)

// App holds the wired pipeline and the clients it must release on shutdown.
type App struct {
	cfg             config.Config
	logger          *zap.Logger
	store           *pgstore.ContentStore
	gcs             *storage.Client
	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher
	localEvents     *pubmemory.Publisher
	redis           *redis.Client
	tracer          *sdktrace.TracerProvider
	orchestrator    *pipeline.Orchestrator
	apiServer       *api.Server
}

// Build connects every dependency described by cfg. Partially built apps are closed on error.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	a.tracer = tp

	store, err := pgstore.NewContentStore(ctx, pgstore.ContentStoreConfig{
		DSN:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, uuid.New(), pgstore.WithClock(system.New()))
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("content store init failed: %w", err)
	}
	a.store = store

	if err := a.assemble(ctx, store); err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

// assemble wires the pipeline on top of an opened content store.
func (a *App) assemble(ctx context.Context, store persistence.Store) error {
	thumbnails, logos, err := a.setupBlobStores(ctx)
	if err != nil {
		return err
	}
	publisher, err := a.setupPublisher(ctx)
	if err != nil {
		return err
	}
	locker, err := a.setupLocker()
	if err != nil {
		return err
	}
	source, err := search.ParseSource(a.cfg.Crawl.Source)
	if err != nil {
		return fmt.Errorf("crawl source: %w", err)
	}

	clock := system.New()
	saver, err := persistence.New(persistence.Config{
		EventTopic: a.cfg.PubSub.Topic,
		UserAgent:  a.cfg.Reader.UserAgent,
	}, persistence.Dependencies{
		Store:      store,
		Thumbnails: thumbnails,
		Logos:      logos,
		Publisher:  publisher,
		Clock:      clock,
		Logger:     a.logger,
	})
	if err != nil {
		return fmt.Errorf("saver init failed: %w", err)
	}

	searcher, err := a.setupSearch(ctx)
	if err != nil {
		return err
	}
	a.orchestrator, err = pipeline.New(pipeline.Config{
		ItemsPerCategory: a.cfg.Crawl.ItemsPerCategory,
		CandidateDelay:   a.cfg.Crawl.CandidateDelay,
		CategoryDelay:    a.cfg.Crawl.CategoryDelay,
		AnalyzeAttempts:  a.cfg.Crawl.AnalyzeAttempts,
		AnalyzeBackoff:   a.cfg.Crawl.AnalyzeBackoff,
		Source:           source,
	}, pipeline.Dependencies{
		Searcher: searcher,
		Scraper:  a.setupScraper(clock),
		Analyzer: a.setupAnalyzer(),
		Saver:    saver,
		Clock:    clock,
		Locker:   locker,
		Logger:   a.logger,
	})
	if err != nil {
		return fmt.Errorf("pipeline init failed: %w", err)
	}

	var ready api.Pinger
	if a.store != nil {
		ready = a.store
	}
	a.apiServer = api.NewServer(ready, a.logger.Named("api"))
	return nil
}

func (a *App) setupBlobStores(ctx context.Context) (crawler.BlobStore, crawler.BlobStore, error) {
	sc := a.cfg.Storage
	switch sc.Backend {
	case "gcs":
		a.logger.Info("using GCS storage backend",
			zap.String("thumbnails_bucket", sc.ThumbnailsBucket),
			zap.String("logos_bucket", sc.LogosBucket),
		)
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.gcs = client
		thumbs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: sc.ThumbnailsBucket, PublicBaseURL: sc.PublicBaseURL})
		if err != nil {
			return nil, nil, fmt.Errorf("thumbnail blob store init failed: %w", err)
		}
		logos, err := gcsstorage.New(client, gcsstorage.Config{Bucket: sc.LogosBucket, PublicBaseURL: sc.PublicBaseURL})
		if err != nil {
			return nil, nil, fmt.Errorf("logo blob store init failed: %w", err)
		}
		return thumbs, logos, nil
	case "local":
		a.logger.Info("using local storage backend", zap.String("path", sc.LocalDir))
		thumbs, err := localstorage.New(localstorage.Config{BaseDir: filepath.Join(sc.LocalDir, sc.ThumbnailsBucket)})
		if err != nil {
			return nil, nil, fmt.Errorf("thumbnail blob store init failed: %w", err)
		}
		logos, err := localstorage.New(localstorage.Config{BaseDir: filepath.Join(sc.LocalDir, sc.LogosBucket)})
		if err != nil {
			return nil, nil, fmt.Errorf("logo blob store init failed: %w", err)
		}
		return thumbs, logos, nil
	default:
		a.logger.Info("using in-memory storage backend")
		return memorystorage.NewBlobStore(sc.ThumbnailsBucket), memorystorage.NewBlobStore(sc.LogosBucket), nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (crawler.Publisher, error) {
	pc := a.cfg.PubSub
	if pc.ProjectID == "" {
		a.logger.Info("no Pub/Sub project configured, keeping saved events in process",
			zap.String("topic", pc.Topic))
		a.localEvents = pubmemory.New(0)
		return a.localEvents, nil
	}
	client, err := pubsub.NewClient(ctx, pc.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.pubsubPublisher = client.Publisher(pc.Topic)
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", pc.ProjectID),
		zap.String("topic", pc.Topic),
	)
	return gcppublisher.New(a.pubsubPublisher), nil
}

func (a *App) setupLocker() (runlock.Locker, error) {
	rc := a.cfg.Redis
	if rc.Addr == "" {
		return runlock.Noop{}, nil
	}
	lc := runlock.Config{
		Address:  rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
		Key:      rc.LockKey,
		TTL:      rc.LockTTL,
	}
	client, err := runlock.NewClient(lc)
	if err != nil {
		return nil, fmt.Errorf("redis init failed: %w", err)
	}
	a.redis = client
	a.logger.Info("run lock enabled", zap.String("addr", lc.Address), zap.String("key", lc.Key))
	return runlock.NewRedisLocker(client, lc.Key, lc.TTL), nil
}

func (a *App) setupSearch(ctx context.Context) (*search.Adapter, error) {
	sc := a.cfg.Search
	var video, web search.Backend
	if sc.YouTubeAPIKey != "" {
		yt, err := search.NewYouTube(ctx, sc.YouTubeAPIKey, sc.Timeout, endpointOptions(sc.YouTubeBaseURL)...)
		if err != nil {
			return nil, err
		}
		video = yt
	}
	if sc.GoogleAPIKey != "" && sc.GoogleEngineID != "" {
		cs, err := search.NewCustomSearch(ctx, sc.GoogleAPIKey, sc.GoogleEngineID, sc.Timeout, endpointOptions(sc.GoogleBaseURL)...)
		if err != nil {
			return nil, err
		}
		cs.DateRestrict = sc.DateRestrict
		web = cs
	}
	adapter := search.NewAdapter(video, web, a.logger.Named("search"))
	adapter.SetBlocklist(search.NewBlocklist(sc.BlockedDomains))
	return adapter, nil
}

func endpointOptions(endpoint string) []option.ClientOption {
	if endpoint == "" {
		return nil
	}
	return []option.ClientOption{option.WithEndpoint(endpoint)}
}

func (a *App) setupScraper(clock crawler.Clock) *scraper.Scraper {
	rc := a.cfg.Reader
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: rc.RequestsPerMinute,
		Burst:             rc.Burst,
	})
	return scraper.New(scraper.Config{
		ReaderBaseURL:  rc.BaseURL,
		ReaderAPIKey:   rc.APIKey,
		OEmbedURL:      rc.OEmbedURL,
		UserAgent:      rc.UserAgent,
		ReaderTimeout:  rc.Timeout,
		EnrichMetadata: rc.EnrichMetadata,
		RespectRobots:  rc.RespectRobots,
	}, &http.Client{}, limiter, clock, a.logger.Named("scraper"))
}

func (a *App) setupAnalyzer() *analyzer.Analyzer {
	gc := a.cfg.Gemini
	gen := analyzer.NewGeminiClient(gc.APIKey, gc.Model, gc.BaseURL, &http.Client{Timeout: gc.Timeout})
	return analyzer.New(gen, a.logger.Named("analyzer"))
}

// Run performs one crawl across every category.
func (a *App) Run(ctx context.Context) (pipeline.Stats, error) {
	return a.orchestrator.Run(ctx)
}

// Collect processes one URL or search query.
func (a *App) Collect(ctx context.Context, arg string) (pipeline.Stats, error) {
	return a.orchestrator.Collect(ctx, arg)
}

// Serve exposes health and metrics until ctx is canceled. It is a no-op when disabled.
func (a *App) Serve(ctx context.Context) error {
	if !a.cfg.Server.Enabled {
		return nil
	}
	return a.apiServer.ListenAndServe(ctx, fmt.Sprintf(":%d", a.cfg.Server.Port))
}

// Close releases every client that was opened.
func (a *App) Close(ctx context.Context) {
	if a.localEvents != nil {
		a.logger.Info("saved events kept in process", zap.Int("count", a.localEvents.Total()))
	}
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis client close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
