// Package config loads and validates curator configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Search    SearchConfig    `mapstructure:"search"`
	Reader    ReaderConfig    `mapstructure:"reader"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// DatabaseConfig controls the Postgres pool.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// GeminiConfig configures the analyzer model.
type GeminiConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SearchConfig holds search backend credentials. Missing credentials disable a backend.
// The base URLs override the Google API endpoints and stay empty in production.
type SearchConfig struct {
	YouTubeAPIKey  string        `mapstructure:"youtube_api_key"`
	YouTubeBaseURL string        `mapstructure:"youtube_base_url"`
	GoogleAPIKey   string        `mapstructure:"google_api_key"`
	GoogleEngineID string        `mapstructure:"google_engine_id"`
	GoogleBaseURL  string        `mapstructure:"google_base_url"`
	DateRestrict   string        `mapstructure:"date_restrict"`
	Timeout        time.Duration `mapstructure:"timeout"`
	// BlockedDomains are hosts whose results are never processed ("*.example.com" matches subdomains).
	BlockedDomains []string `mapstructure:"blocked_domains"`
}

// ReaderConfig configures the content-extraction proxy and page enrichment.
type ReaderConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	OEmbedURL         string        `mapstructure:"oembed_url"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	EnrichMetadata    bool          `mapstructure:"enrich_metadata"`
	RespectRobots     bool          `mapstructure:"respect_robots"`
}

// CrawlConfig governs the orchestrator.
type CrawlConfig struct {
	ItemsPerCategory int           `mapstructure:"items_per_category"`
	IntervalHours    int           `mapstructure:"interval_hours"`
	RunOnce          bool          `mapstructure:"run_once"`
	CandidateDelay   time.Duration `mapstructure:"candidate_delay"`
	CategoryDelay    time.Duration `mapstructure:"category_delay"`
	AnalyzeAttempts  int           `mapstructure:"analyze_attempts"`
	AnalyzeBackoff   time.Duration `mapstructure:"analyze_backoff"`
	Source           string        `mapstructure:"source"`
}

// Interval is the pause between recurring runs.
func (c CrawlConfig) Interval() time.Duration {
	return time.Duration(c.IntervalHours) * time.Hour
}

// StorageConfig selects where thumbnails and logos are written.
type StorageConfig struct {
	// Backend is gcs, local, or memory.
	Backend          string `mapstructure:"backend"`
	ThumbnailsBucket string `mapstructure:"thumbnails_bucket"`
	LogosBucket      string `mapstructure:"logos_bucket"`
	PublicBaseURL    string `mapstructure:"public_base_url"`
	LocalDir         string `mapstructure:"local_dir"`
}

// PubSubConfig holds metadata for saved-content notifications. Without a project ID, events
// are kept in an in-process log.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// RedisConfig enables the cross-process run lock when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockKey  string        `mapstructure:"lock_key"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// ServerConfig controls the health and metrics listener used in recurring mode.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig controls tracing.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// envAliases binds the unprefixed variable names used by deployments.
var envAliases = map[string]string{
	"database.url":              "DATABASE_URL",
	"gemini.api_key":            "GEMINI_API_KEY",
	"gemini.model":              "GEMINI_MODEL",
	"search.youtube_api_key":    "YOUTUBE_API_KEY",
	"search.google_api_key":     "GOOGLE_SEARCH_API_KEY",
	"search.google_engine_id":   "GOOGLE_SEARCH_ENGINE_ID",
	"crawl.items_per_category":  "ITEMS_PER_CATEGORY",
	"crawl.interval_hours":      "CRAWL_INTERVAL_HOURS",
	"crawl.run_once":            "RUN_ONCE",
	"redis.addr":                "REDIS_ADDR",
	"storage.thumbnails_bucket": "GCS_BUCKET_THUMBNAILS",
	"storage.logos_bucket":      "GCS_BUCKET_LOGOS",
	"reader.api_key":            "JINA_API_KEY",
	"pubsub.project_id":         "GOOGLE_CLOUD_PROJECT",
}

const envPrefix = "CURATOR"

// LoadDotEnv loads KEY=VALUE files into the process environment. Missing files are ignored
// and existing variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds a Config from defaults, an optional file, and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, alias := range envAliases {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("gemini.timeout", 30*time.Second)
	v.SetDefault("search.date_restrict", "m6")
	v.SetDefault("search.timeout", 15*time.Second)
	v.SetDefault("reader.base_url", "https://r.jina.ai/")
	v.SetDefault("reader.oembed_url", "https://www.youtube.com/oembed")
	v.SetDefault("reader.requests_per_minute", 20)
	v.SetDefault("reader.burst", 1)
	v.SetDefault("reader.timeout", 30*time.Second)
	v.SetDefault("reader.user_agent", "curation-crawler/0.1")
	v.SetDefault("reader.enrich_metadata", true)
	v.SetDefault("reader.respect_robots", true)
	v.SetDefault("crawl.items_per_category", 5)
	v.SetDefault("crawl.interval_hours", 24)
	v.SetDefault("crawl.run_once", false)
	v.SetDefault("crawl.candidate_delay", 4*time.Second)
	v.SetDefault("crawl.category_delay", 10*time.Second)
	v.SetDefault("crawl.analyze_attempts", 3)
	v.SetDefault("crawl.analyze_backoff", 30*time.Second)
	v.SetDefault("crawl.source", "both")
	v.SetDefault("storage.backend", "gcs")
	v.SetDefault("storage.thumbnails_bucket", "content-thumbnails")
	v.SetDefault("storage.logos_bucket", "tool-logos")
	v.SetDefault("storage.local_dir", "./assets")
	v.SetDefault("pubsub.topic", "content.saved")
	v.SetDefault("redis.lock_key", "curator:crawl:lock")
	v.SetDefault("redis.lock_ttl", 6*time.Hour)
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "curation-crawler")
}

// Validate enforces reasonable limits. Credentials are checked separately by RequireCrawl
// so that maintenance commands can run without them.
func (c Config) Validate() error {
	if c.Crawl.ItemsPerCategory <= 0 {
		return fmt.Errorf("crawl.items_per_category must be > 0")
	}
	if c.Crawl.IntervalHours <= 0 {
		return fmt.Errorf("crawl.interval_hours must be > 0")
	}
	if c.Crawl.AnalyzeAttempts <= 0 {
		return fmt.Errorf("crawl.analyze_attempts must be > 0")
	}
	switch c.Crawl.Source {
	case "video", "web", "both":
	default:
		return fmt.Errorf("crawl.source must be one of video, web, both")
	}
	if c.Reader.RequestsPerMinute <= 0 {
		return fmt.Errorf("reader.requests_per_minute must be > 0")
	}
	switch c.Storage.Backend {
	case "gcs":
		if c.Storage.ThumbnailsBucket == "" || c.Storage.LogosBucket == "" {
			return fmt.Errorf("storage.thumbnails_bucket and storage.logos_bucket are required for the gcs backend")
		}
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.backend must be one of gcs, local, memory")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.PubSub.Topic == "" {
		return fmt.Errorf("pubsub.topic must not be empty")
	}
	return nil
}

// RequireDatabase reports a missing database URL.
func (c Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required (set DATABASE_URL)")
	}
	return nil
}

// RequireCrawl reports every missing credential needed to crawl.
func (c Config) RequireCrawl() error {
	var errs []error
	if err := c.RequireDatabase(); err != nil {
		errs = append(errs, err)
	}
	if c.Gemini.APIKey == "" {
		errs = append(errs, fmt.Errorf("gemini.api_key is required (set GEMINI_API_KEY)"))
	}
	return errors.Join(errs...)
}

// Warnings lists degraded-capability conditions worth logging at startup.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Search.YouTubeAPIKey == "" {
		warnings = append(warnings, "YOUTUBE_API_KEY not set: video search disabled")
	}
	if c.Search.GoogleAPIKey == "" || c.Search.GoogleEngineID == "" {
		warnings = append(warnings, "GOOGLE_SEARCH_API_KEY or GOOGLE_SEARCH_ENGINE_ID not set: web search disabled")
	}
	if c.Search.YouTubeAPIKey == "" && c.Search.GoogleAPIKey == "" {
		warnings = append(warnings, "no search backend configured: crawl runs will find no candidates")
	}
	if c.Storage.Backend == "memory" {
		warnings = append(warnings, "storage.backend=memory: uploaded assets are lost on exit")
	}
	if c.PubSub.ProjectID == "" {
		warnings = append(warnings, "GOOGLE_CLOUD_PROJECT not set: saved-content events stay in process")
	}
	if c.Redis.Addr == "" {
		warnings = append(warnings, "REDIS_ADDR not set: concurrent crawlers are not prevented")
	}
	return warnings
}
