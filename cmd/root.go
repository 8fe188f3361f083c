// Package cmd defines the curator CLI.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/curation-crawler/internal/app"
	"github.com/JakeFAU/curation-crawler/internal/config"
	"github.com/JakeFAU/curation-crawler/internal/logging"
	"github.com/JakeFAU/curation-crawler/internal/pipeline"
)

// runtimeKeyType is the key for storing the runtime in the command context.
type runtimeKeyType string

const runtimeKey runtimeKeyType = "runtime"

// runtime carries what PersistentPreRunE loaded.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
}

// App is the service surface commands drive. Tests substitute a fake.
type App interface {
	Run(ctx context.Context) (pipeline.Stats, error)
	Collect(ctx context.Context, arg string) (pipeline.Stats, error)
	Serve(ctx context.Context) error
	Close(ctx context.Context)
}

// newApp is the application factory, replaceable in tests.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.Build(ctx, cfg, logger)
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "curator",
		Short: "Collects Korean AI-tool tutorials into the curation database.",
		Long: `curator searches video and web sources for AI-tool tutorials, extracts and
classifies each candidate with an LLM, and stores the result with its
thumbnail, tools, and tags.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)

			ctx := context.WithValue(cmd.Context(), runtimeKey, &runtime{cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newCollectCmd())
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(runtimeKey).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("configuration not loaded")
	}
	return rt, nil
}

// openApp validates crawl credentials and builds the app.
func openApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	if err := cfg.RequireCrawl(); err != nil {
		return nil, err
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application services: %w", err)
	}
	return a, nil
}

// execute runs the root command with args and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command context.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	_ = zap.L().Sync()
	return code
}
