package pipeline

import "time"

// Counts tallies candidate outcomes.
type Counts struct {
	Searched        int `json:"searched"`
	LanguageSkipped int `json:"language_skipped"`
	Duplicates      int `json:"duplicates"`
	Scraped         int `json:"scraped"`
	Analyzed        int `json:"analyzed"`
	Saved           int `json:"saved"`
	Errors          int `json:"errors"`
}

func (c *Counts) add(o Counts) {
	c.Searched += o.Searched
	c.LanguageSkipped += o.LanguageSkipped
	c.Duplicates += o.Duplicates
	c.Scraped += o.Scraped
	c.Analyzed += o.Analyzed
	c.Saved += o.Saved
	c.Errors += o.Errors
}

// CategoryStats is the per-category breakdown of a run.
type CategoryStats struct {
	Category string `json:"category"`
	Counts
}

// Stats summarizes one run. Totals are the sum of Categories.
type Stats struct {
	Counts
	Categories []CategoryStats `json:"categories"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Duration is how long the run took.
func (s Stats) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *Stats) addCategory(cs CategoryStats) {
	s.Categories = append(s.Categories, cs)
	s.add(cs.Counts)
}
