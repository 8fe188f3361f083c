package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Crawl.ItemsPerCategory)
	assert.Equal(t, 24*time.Hour, cfg.Crawl.Interval())
	assert.False(t, cfg.Crawl.RunOnce)
	assert.Equal(t, 4*time.Second, cfg.Crawl.CandidateDelay)
	assert.Equal(t, 10*time.Second, cfg.Crawl.CategoryDelay)
	assert.Equal(t, 3, cfg.Crawl.AnalyzeAttempts)
	assert.Equal(t, 30*time.Second, cfg.Crawl.AnalyzeBackoff)
	assert.Equal(t, "both", cfg.Crawl.Source)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, "gcs", cfg.Storage.Backend)
	assert.Equal(t, "content-thumbnails", cfg.Storage.ThumbnailsBucket)
	assert.Equal(t, "tool-logos", cfg.Storage.LogosBucket)
	assert.Equal(t, "curator:crawl:lock", cfg.Redis.LockKey)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "content.saved", cfg.PubSub.Topic)
	assert.InDelta(t, 20.0, cfg.Reader.RequestsPerMinute, 0.001)
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
database:
  url: postgres://file/db
gemini:
  api_key: file-key
crawl:
  items_per_category: 3
  interval_hours: 6
  run_once: true
  candidate_delay: 1s
storage:
  backend: local
  local_dir: /tmp/assets
server:
  port: 9090
logging:
  development: true
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://file/db", cfg.Database.URL)
	assert.Equal(t, "file-key", cfg.Gemini.APIKey)
	assert.Equal(t, 3, cfg.Crawl.ItemsPerCategory)
	assert.Equal(t, 6*time.Hour, cfg.Crawl.Interval())
	assert.True(t, cfg.Crawl.RunOnce)
	assert.Equal(t, time.Second, cfg.Crawl.CandidateDelay)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/assets", cfg.Storage.LocalDir)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.NoError(t, cfg.RequireCrawl())
}

func TestLoadBindsDeploymentEnvNames(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("GEMINI_API_KEY", "gem")
	t.Setenv("GEMINI_MODEL", "gemini-custom")
	t.Setenv("YOUTUBE_API_KEY", "yt")
	t.Setenv("GOOGLE_SEARCH_API_KEY", "cse")
	t.Setenv("GOOGLE_SEARCH_ENGINE_ID", "cx")
	t.Setenv("ITEMS_PER_CATEGORY", "7")
	t.Setenv("CRAWL_INTERVAL_HOURS", "12")
	t.Setenv("RUN_ONCE", "true")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("GCS_BUCKET_THUMBNAILS", "thumbs")
	t.Setenv("GCS_BUCKET_LOGOS", "logos")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, "gem", cfg.Gemini.APIKey)
	assert.Equal(t, "gemini-custom", cfg.Gemini.Model)
	assert.Equal(t, "yt", cfg.Search.YouTubeAPIKey)
	assert.Equal(t, "cse", cfg.Search.GoogleAPIKey)
	assert.Equal(t, "cx", cfg.Search.GoogleEngineID)
	assert.Equal(t, 7, cfg.Crawl.ItemsPerCategory)
	assert.Equal(t, 12*time.Hour, cfg.Crawl.Interval())
	assert.True(t, cfg.Crawl.RunOnce)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "thumbs", cfg.Storage.ThumbnailsBucket)
	assert.Equal(t, "logos", cfg.Storage.LogosBucket)
	assert.NoError(t, cfg.RequireCrawl())
}

func TestPrefixedEnvWinsOverAlias(t *testing.T) {
	t.Setenv("CURATOR_DATABASE_URL", "postgres://prefixed")
	t.Setenv("DATABASE_URL", "postgres://alias")
	t.Setenv("CURATOR_SERVER_PORT", "9191")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://prefixed", cfg.Database.URL)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero items", map[string]string{"ITEMS_PER_CATEGORY": "0"}},
		{"zero interval", map[string]string{"CRAWL_INTERVAL_HOURS": "0"}},
		{"bad source", map[string]string{"CURATOR_CRAWL_SOURCE": "podcasts"}},
		{"bad backend", map[string]string{"CURATOR_STORAGE_BACKEND": "s3"}},
		{"empty topic", map[string]string{"CURATOR_PUBSUB_TOPIC": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestRequireCrawlReportsEveryMissingCredential(t *testing.T) {
	t.Parallel()

	err := Config{}.RequireCrawl()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	err = Config{Database: DatabaseConfig{URL: "postgres://x"}}.RequireCrawl()
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "DATABASE_URL")

	require.NoError(t, Config{Database: DatabaseConfig{URL: "postgres://x"}}.RequireDatabase())
}

func TestWarnings(t *testing.T) {
	t.Parallel()

	full := Config{
		Search:  SearchConfig{YouTubeAPIKey: "yt", GoogleAPIKey: "g", GoogleEngineID: "cx"},
		Storage: StorageConfig{Backend: "gcs"},
		PubSub:  PubSubConfig{ProjectID: "proj", Topic: "content.saved"},
		Redis:   RedisConfig{Addr: "localhost:6379"},
	}
	assert.Empty(t, full.Warnings())

	bare := Config{Storage: StorageConfig{Backend: "memory"}}
	warnings := bare.Warnings()
	assert.Len(t, warnings, 6)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CURATOR_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("CURATOR_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("CURATOR_TEST_DOTENV"))
}
