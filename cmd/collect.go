package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/curation-crawler/internal/pipeline"
)

// newCollectCmd creates the 'collect' subcommand.
func newCollectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect <url|query>",
		Short: "Collect a single URL, or every result of a search query",
		Long: `Processes one URL directly (duplicate check, scrape, analyze, save). Any
other argument is treated as a search query against both backends and every
result is processed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCollect,
	}
}

func runCollect(cmd *cobra.Command, args []string) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := openApp(ctx, rt.cfg, rt.logger)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	arg := strings.Join(args, " ")
	out := cmd.OutOrStdout()
	stats, err := a.Collect(ctx, arg)
	if errors.Is(err, pipeline.ErrNoResults) {
		fmt.Fprintln(out, "no results found")
		return nil
	}
	renderSummary(out, "Collect summary", stats)
	if err != nil {
		return fmt.Errorf("collect %q: %w", arg, err)
	}
	return nil
}
