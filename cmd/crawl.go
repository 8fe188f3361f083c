package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/curation-crawler/internal/clock/system"
	"github.com/JakeFAU/curation-crawler/internal/pipeline"
)

type crawlOptions struct {
	once     bool
	items    int
	interval time.Duration
}

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	var opts crawlOptions
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl every category, once or on an interval",
		Long: `Runs the category crawl. In recurring mode the health and metrics server
runs alongside the scheduler until SIGINT or SIGTERM; the candidate being
processed when the signal arrives is finished before exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.once, "once", false, "run a single crawl and exit (overrides RUN_ONCE)")
	cmd.Flags().IntVar(&opts.items, "items-per-category", 0, "items to save per category (overrides ITEMS_PER_CATEGORY)")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "pause between runs (overrides CRAWL_INTERVAL_HOURS)")
	return cmd
}

func runCrawl(cmd *cobra.Command, opts crawlOptions) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	cfg := rt.cfg
	if cmd.Flags().Changed("once") {
		cfg.Crawl.RunOnce = opts.once
	}
	if opts.items > 0 {
		cfg.Crawl.ItemsPerCategory = opts.items
	}
	interval := cfg.Crawl.Interval()
	if opts.interval > 0 {
		interval = opts.interval
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, cfg, rt.logger)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	out := cmd.OutOrStdout()
	sched := pipeline.NewScheduler(a, pipeline.SchedulerConfig{
		Once:     cfg.Crawl.RunOnce,
		Interval: interval,
		OnRun: func(stats pipeline.Stats, _ error) {
			renderSummary(out, "Crawl summary", stats)
		},
	}, system.New(), rt.logger)

	if cfg.Crawl.RunOnce {
		return sched.Start(ctx)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Serve(gctx) })
	g.Go(func() error { return sched.Start(gctx) })
	return g.Wait()
}
