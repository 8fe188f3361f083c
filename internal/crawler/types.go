// Package crawler defines the domain types shared by the ingestion subsystems.
package crawler

import "time"

// Difficulty is the ordered skill tier attached to a content item.
type Difficulty string

// Difficulty values persisted in the contents table.
const (
	DifficultyBeginner     Difficulty = "BEGINNER"
	DifficultyIntermediate Difficulty = "INTERMEDIATE"
	DifficultyAdvanced     Difficulty = "ADVANCED"
)

// Language is the two-way language enum used by the storage schema.
type Language string

// Language values persisted in the contents table.
const (
	LanguageKO Language = "KO"
	LanguageEN Language = "EN"
)

// TimeType discriminates how an EstimatedTime value was derived.
type TimeType string

// EstimatedTime discriminators.
const (
	TimeTypeVideo  TimeType = "VIDEO"
	TimeTypeTextKO TimeType = "TEXT_KO"
	TimeTypeTextEN TimeType = "TEXT_EN"
)

// PreviewType discriminates result preview rows. Only short text exists today.
type PreviewType string

// PreviewTypeText is a one-sentence "what you can do" description.
const PreviewTypeText PreviewType = "TEXT"

// SourceKind tags which search backend produced a result.
type SourceKind string

// Search backends.
const (
	SourceVideo SourceKind = "video"
	SourceWeb   SourceKind = "web"
)

// SearchResult is one candidate returned by a search backend.
type SearchResult struct {
	Title   string     `json:"title"`
	URL     string     `json:"url"`
	Snippet string     `json:"snippet"`
	Source  SourceKind `json:"source"`
}

// ScrapedContent carries the normalized fields extracted from a source URL.
// Only Title, Content, and URL are guaranteed to be populated.
type ScrapedContent struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Author       string    `json:"author"`
	PublishedAt  time.Time `json:"published_at"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Content      string    `json:"content"`
	URL          string    `json:"url"`
	// WordCount is zero when unknown (video pages).
	WordCount int `json:"word_count,omitempty"`
	// Duration is the video length in seconds, zero when unknown.
	Duration  int   `json:"duration,omitempty"`
	ViewCount int64 `json:"view_count,omitempty"`
	IsVideo   bool  `json:"is_video"`
}

// EstimatedTime is the consumption time of a content item in whole minutes.
type EstimatedTime struct {
	Type  TimeType `json:"type"`
	Value int      `json:"value"`
}

// ResultPreview is one ordered preview bullet.
type ResultPreview struct {
	Order       int         `json:"order"`
	Type        PreviewType `json:"type"`
	Description string      `json:"description"`
}

// AnalysisResult is the normalized output of the content analyzer.
type AnalysisResult struct {
	Category       string          `json:"category"`
	Tools          []string        `json:"tools"`
	Description    string          `json:"description"`
	Tags           []string        `json:"tags"`
	Difficulty     Difficulty      `json:"difficulty"`
	Language       Language        `json:"language"`
	EstimatedTime  *EstimatedTime  `json:"estimated_time,omitempty"`
	ResultPreviews []ResultPreview `json:"result_previews"`
}

// Package is everything the persistence layer needs to write one content item.
type Package struct {
	Title          string
	Description    string
	Author         string
	SourceURL      string
	PublishedAt    time.Time
	Language       Language
	Difficulty     Difficulty
	ThumbnailURL   string
	Categories     []string
	Tools          []string
	Tags           []string
	EstimatedTime  *EstimatedTime
	ResultPreviews []ResultPreview
}

// NewPackage merges scraped fields and the analysis into a write package.
func NewPackage(scraped ScrapedContent, analysis AnalysisResult) Package {
	description := analysis.Description
	if description == "" {
		description = scraped.Description
	}
	return Package{
		Title:          scraped.Title,
		Description:    description,
		Author:         scraped.Author,
		SourceURL:      scraped.URL,
		PublishedAt:    scraped.PublishedAt,
		Language:       analysis.Language,
		Difficulty:     analysis.Difficulty,
		ThumbnailURL:   scraped.ThumbnailURL,
		Categories:     []string{analysis.Category},
		Tools:          analysis.Tools,
		Tags:           analysis.Tags,
		EstimatedTime:  analysis.EstimatedTime,
		ResultPreviews: analysis.ResultPreviews,
	}
}

// ContentRecord is the fully resolved row set written in one transaction.
type ContentRecord struct {
	Package
	// ThumbnailRef is the object-storage URL of the re-hosted thumbnail, empty when
	// the upload failed or no thumbnail existed.
	ThumbnailRef string
	// ToolLogos maps tool slugs to uploaded logo URLs for tools created by this write.
	ToolLogos map[string]string
	CreatedAt time.Time
}

// SavedEvent is published after a content package commits.
type SavedEvent struct {
	ContentID string    `json:"content_id"`
	SourceURL string    `json:"source_url"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	SavedAt   time.Time `json:"saved_at"`
}
