package cmd

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JakeFAU/curation-crawler/internal/pipeline"
)

// renderSummary prints per-category counts with a totals footer.
func renderSummary(w io.Writer, title string, stats pipeline.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Category", "Searched", "Lang skipped", "Duplicates", "Scraped", "Analyzed", "Saved", "Errors"})
	for _, c := range stats.Categories {
		t.AppendRow(countsRow(c.Category, c.Counts))
	}
	t.AppendFooter(countsRow("Total", stats.Counts))
	t.SetCaption("duration %s", stats.Duration().Round(time.Second))
	t.Render()
}

func countsRow(label string, c pipeline.Counts) table.Row {
	return table.Row{label, c.Searched, c.LanguageSkipped, c.Duplicates, c.Scraped, c.Analyzed, c.Saved, c.Errors}
}
