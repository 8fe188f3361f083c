// Package pipeline drives the crawl: per category it searches, then scrapes, analyzes, and
// saves candidates one at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/curation-crawler/internal/analyzer"
	"github.com/JakeFAU/curation-crawler/internal/crawler"
	"github.com/JakeFAU/curation-crawler/internal/metrics"
	"github.com/JakeFAU/curation-crawler/internal/persistence"
	"github.com/JakeFAU/curation-crawler/internal/retry"
	"github.com/JakeFAU/curation-crawler/internal/runlock"
	"github.com/JakeFAU/curation-crawler/internal/search"
)

// Defaults for Config.
const (
	DefaultItemsPerCategory = 5
	DefaultCandidateDelay   = 4 * time.Second
	DefaultCategoryDelay    = 10 * time.Second
	DefaultAnalyzeAttempts  = 3
	DefaultAnalyzeBackoff   = 30 * time.Second
	DefaultMinHangulRatio   = 0.3
	DefaultCollectLimit     = 5
)

// Searcher finds candidates.
type Searcher interface {
	Search(ctx context.Context, query string, source search.Source, limit int) []crawler.SearchResult
}

// Scraper extracts a page.
type Scraper interface {
	Scrape(ctx context.Context, rawURL string) (crawler.ScrapedContent, error)
}

// Analyzer classifies scraped content.
type Analyzer interface {
	Analyze(ctx context.Context, in analyzer.Input) (crawler.AnalysisResult, error)
}

// Saver persists analyzed packages.
type Saver interface {
	IsDuplicate(ctx context.Context, sourceURL string) (bool, error)
	Save(ctx context.Context, pkg crawler.Package) (persistence.Result, error)
}

// Config tunes a run.
type Config struct {
	ItemsPerCategory int
	CandidateDelay   time.Duration
	CategoryDelay    time.Duration
	AnalyzeAttempts  int
	AnalyzeBackoff   time.Duration
	MinHangulRatio   float64
	CollectLimit     int
	Source           search.Source
	// Categories overrides the crawl order. Empty uses crawler.Categories.
	Categories []crawler.Category
}

func (c Config) withDefaults() Config {
	if c.ItemsPerCategory <= 0 {
		c.ItemsPerCategory = DefaultItemsPerCategory
	}
	if c.CandidateDelay < 0 {
		c.CandidateDelay = 0
	}
	if c.CategoryDelay < 0 {
		c.CategoryDelay = 0
	}
	if c.AnalyzeAttempts <= 0 {
		c.AnalyzeAttempts = DefaultAnalyzeAttempts
	}
	if c.AnalyzeBackoff <= 0 {
		c.AnalyzeBackoff = DefaultAnalyzeBackoff
	}
	if c.MinHangulRatio <= 0 {
		c.MinHangulRatio = DefaultMinHangulRatio
	}
	if c.CollectLimit <= 0 {
		c.CollectLimit = DefaultCollectLimit
	}
	if c.Source == "" {
		c.Source = search.SourceBoth
	}
	if len(c.Categories) == 0 {
		c.Categories = crawler.Categories
	}
	return c
}

// DefaultConfig returns the production pacing.
func DefaultConfig() Config {
	return Config{
		CandidateDelay: DefaultCandidateDelay,
		CategoryDelay:  DefaultCategoryDelay,
	}.withDefaults()
}

// Dependencies are the stages the orchestrator drives.
type Dependencies struct {
	Searcher Searcher
	Scraper  Scraper
	Analyzer Analyzer
	Saver    Saver
	Clock    crawler.Clock
	// Locker guards against concurrent runs. Nil means no locking.
	Locker runlock.Locker
	Logger *zap.Logger
}

// Orchestrator runs the sequential crawl.
type Orchestrator struct {
	cfg         Config
	searcher    Searcher
	scraper     Scraper
	analyzer    Analyzer
	saver       Saver
	clock       crawler.Clock
	locker      runlock.Locker
	logger      *zap.Logger
	tracer      trace.Tracer
	analyzeWith retry.Policy
}

// New validates deps and builds an Orchestrator.
func New(cfg Config, deps Dependencies) (*Orchestrator, error) {
	switch {
	case deps.Searcher == nil:
		return nil, fmt.Errorf("searcher is required")
	case deps.Scraper == nil:
		return nil, fmt.Errorf("scraper is required")
	case deps.Analyzer == nil:
		return nil, fmt.Errorf("analyzer is required")
	case deps.Saver == nil:
		return nil, fmt.Errorf("saver is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	}
	cfg = cfg.withDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("pipeline")
	locker := deps.Locker
	if locker == nil {
		locker = runlock.Noop{}
	}
	o := &Orchestrator{
		cfg:      cfg,
		searcher: deps.Searcher,
		scraper:  deps.Scraper,
		analyzer: deps.Analyzer,
		saver:    deps.Saver,
		clock:    deps.Clock,
		locker:   locker,
		logger:   logger,
		tracer:   otel.Tracer("github.com/JakeFAU/curation-crawler/internal/pipeline"),
	}
	o.analyzeWith = retry.Policy{
		MaxAttempts: cfg.AnalyzeAttempts,
		Backoff:     retry.Linear(cfg.AnalyzeBackoff),
		Retryable:   crawler.IsRetryableRateLimit,
		Sleep:       deps.Clock.Sleep,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			metrics.IncAnalyzerRetries()
			logger.Warn("analyzer rate limited, backing off",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		},
	}
	return o, nil
}

// Run crawls every category once. Cancelling ctx stops the run at the next candidate
// boundary; the candidate in flight always finishes.
func (o *Orchestrator) Run(ctx context.Context) (Stats, error) {
	stats := Stats{StartedAt: o.clock.Now()}

	lease, err := o.locker.Acquire(ctx)
	if err != nil {
		metrics.ObserveRun("locked")
		return stats, fmt.Errorf("start crawl run: %w", err)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			o.logger.Warn("failed to release crawl lock", zap.Error(err))
		}
	}()

	ctx, span := o.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	o.logger.Info("crawl run started",
		zap.Int("categories", len(o.cfg.Categories)),
		zap.Int("items_per_category", o.cfg.ItemsPerCategory),
	)

	var runErr error
	for i, category := range o.cfg.Categories {
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}
		stats.addCategory(o.runCategory(ctx, category))

		if err := lease.Refresh(context.WithoutCancel(ctx)); err != nil {
			o.logger.Warn("failed to refresh crawl lock", zap.Error(err))
		}
		if i < len(o.cfg.Categories)-1 {
			if err := o.clock.Sleep(ctx, o.cfg.CategoryDelay); err != nil {
				runErr = err
				break
			}
		}
	}
	stats.FinishedAt = o.clock.Now()

	status := "completed"
	if runErr != nil {
		status = "interrupted"
		span.SetStatus(codes.Error, runErr.Error())
	}
	metrics.ObserveRun(status)
	span.SetAttributes(attribute.Int("saved", stats.Saved), attribute.Int("errors", stats.Errors))
	o.logger.Info("crawl run finished",
		zap.String("status", status),
		zap.Int("searched", stats.Searched),
		zap.Int("language_skipped", stats.LanguageSkipped),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("scraped", stats.Scraped),
		zap.Int("analyzed", stats.Analyzed),
		zap.Int("saved", stats.Saved),
		zap.Int("errors", stats.Errors),
		zap.Duration("duration", stats.Duration()),
	)
	return stats, runErr
}

// state names the orchestrator's position inside a category.
type state string

const (
	stateSearching state = "SEARCHING"
	stateScraping  state = "SCRAPING"
	stateAnalyzing state = "ANALYZING"
	stateSaving    state = "SAVING"
	stateAdvance   state = "ADVANCE"
	stateDone      state = "DONE"
)

// outcome is the terminal result of one candidate.
type outcome string

const (
	outcomeSaved    outcome = "saved"
	outcomeLanguage outcome = "language_skipped"
	outcomeDup      outcome = "duplicate"
	outcomeError    outcome = "error"
)

func (o *Orchestrator) runCategory(ctx context.Context, category crawler.Category) CategoryStats {
	cs := CategoryStats{Category: category.ID}
	logger := o.logger.With(zap.String("category", category.ID))
	target := o.cfg.ItemsPerCategory

	logger.Debug("category state", zap.String("state", string(stateSearching)))
	start := o.clock.Now()
	candidates := o.searcher.Search(ctx, category.Query, o.cfg.Source, 2*target)
	metrics.ObserveStage("search", o.clock.Now().Sub(start))
	cs.Searched = len(candidates)
	logger.Info("candidates found", zap.Int("candidates", len(candidates)))

	for _, candidate := range candidates {
		if cs.Saved >= target {
			break
		}
		if ctx.Err() != nil {
			logger.Info("run cancelled, stopping before next candidate")
			break
		}
		if hangulRatio(candidate.Title+" "+candidate.Snippet) < o.cfg.MinHangulRatio {
			cs.LanguageSkipped++
			metrics.ObserveCandidate(category.ID, string(outcomeLanguage))
			logger.Debug("skipping non-Korean candidate", zap.String("url", candidate.URL))
			continue
		}

		// The candidate runs to completion even if the run is cancelled meanwhile.
		res, _ := o.process(context.WithoutCancel(ctx), category.ID, candidate.URL, &cs.Counts)
		if res != outcomeSaved {
			continue
		}
		logger.Debug("category state", zap.String("state", string(stateAdvance)), zap.Int("saved", cs.Saved))
		if err := o.clock.Sleep(ctx, o.cfg.CandidateDelay); err != nil {
			break
		}
	}
	logger.Info("category finished",
		zap.String("state", string(stateDone)),
		zap.Int("saved", cs.Saved),
		zap.Int("errors", cs.Errors),
	)
	return cs
}

// process takes one URL through duplicate check, scrape, analyze, and save, updating counts.
// Failures are counted and logged; the returned error is for callers that surface it.
func (o *Orchestrator) process(ctx context.Context, category, rawURL string, counts *Counts) (outcome, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.candidate",
		trace.WithAttributes(attribute.String("category", category), attribute.String("url", rawURL)))
	defer span.End()

	url := rawURL
	if normalized, err := crawler.NormalizeURL(rawURL); err == nil {
		url = normalized
	}
	logger := o.logger.With(zap.String("category", category), zap.String("url", url))

	fail := func(st state, err error) (outcome, error) {
		counts.Errors++
		metrics.ObserveCandidate(category, string(outcomeError))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(st))
		logger.Error("candidate failed", zap.String("state", string(st)), zap.Error(err))
		return outcomeError, err
	}

	dup, err := o.saver.IsDuplicate(ctx, url)
	if err != nil {
		return fail(stateSearching, err)
	}
	if dup {
		counts.Duplicates++
		metrics.ObserveCandidate(category, string(outcomeDup))
		logger.Debug("skipping duplicate")
		return outcomeDup, nil
	}

	scraped, err := o.scraper.Scrape(ctx, url)
	if err != nil {
		return fail(stateScraping, err)
	}
	counts.Scraped++

	var analysis crawler.AnalysisResult
	err = o.analyzeWith.Do(ctx, func(ctx context.Context) error {
		var aerr error
		analysis, aerr = o.analyzer.Analyze(ctx, analyzer.InputFromScrape(scraped))
		return aerr
	})
	if err != nil {
		return fail(stateAnalyzing, err)
	}
	counts.Analyzed++

	result, err := o.saver.Save(ctx, crawler.NewPackage(scraped, analysis))
	if err != nil {
		return fail(stateSaving, err)
	}
	counts.Saved++
	metrics.ObserveCandidate(category, string(outcomeSaved))
	span.SetAttributes(attribute.String("content_id", result.ContentID))
	logger.Info("candidate saved",
		zap.String("content_id", result.ContentID),
		zap.String("analyzed_category", analysis.Category),
		zap.String("title", scraped.Title),
	)
	return outcomeSaved, nil
}

// ErrNoResults is returned by Collect when a query matched nothing.
var ErrNoResults = errors.New("no results found")

// collectCategory labels metrics for on-demand collection.
const collectCategory = "collect"

// Collect processes one URL, or every search result for a non-URL query. A URL failure is
// returned; per-result failures in query mode are only counted.
func (o *Orchestrator) Collect(ctx context.Context, arg string) (stats Stats, err error) {
	stats.StartedAt = o.clock.Now()
	cs := CategoryStats{Category: collectCategory}
	defer func() {
		stats.addCategory(cs)
		stats.FinishedAt = o.clock.Now()
	}()

	if isURL(arg) {
		cs.Searched = 1
		_, err = o.process(ctx, collectCategory, arg, &cs.Counts)
		return stats, err
	}

	results := o.searcher.Search(ctx, arg, search.SourceBoth, o.cfg.CollectLimit)
	cs.Searched = len(results)
	if len(results) == 0 {
		o.logger.Info("no results found", zap.String("query", arg))
		return stats, ErrNoResults
	}
	for i, r := range results {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		res, _ := o.process(context.WithoutCancel(ctx), collectCategory, r.URL, &cs.Counts)
		if res == outcomeSaved && i < len(results)-1 {
			if err := o.clock.Sleep(ctx, o.cfg.CandidateDelay); err != nil {
				return stats, err
			}
		}
	}
	return stats, nil
}

func isURL(arg string) bool {
	u, err := neturl.Parse(strings.TrimSpace(arg))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
