package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultEndpoint, cfg.API.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 500, cfg.Crawl.PageSize)
	assert.Equal(t, 10000, cfg.Crawl.CheckpointEvery)
	assert.Equal(t, 200*time.Millisecond, cfg.RateLimit.PageDelay)
	assert.Equal(t, 0, cfg.Retry.MaxAttempts)
	assert.Equal(t, "file", cfg.Checkpoint.Backend)
	assert.False(t, cfg.Checkpoint.Salvage)
	assert.Equal(t, "./data", cfg.Output.DataDirectory)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CBLCRAWL_ENDPOINT", "http://localhost:8080/graphql")
	t.Setenv("CBLCRAWL_API_TOKEN", "secret-token")
	t.Setenv("CBLCRAWL_DATA_DIR", "/tmp/cbl")
	t.Setenv("CBLCRAWL_PAGE_SIZE", "100")
	t.Setenv("CBLCRAWL_CHECKPOINT_EVERY", "250")
	t.Setenv("CBLCRAWL_PAGE_DELAY", "1s")
	t.Setenv("CBLCRAWL_MAX_RETRIES", "2")
	t.Setenv("CBLCRAWL_CHECKPOINT_BACKEND", "REDIS")
	t.Setenv("CBLCRAWL_REDIS_ADDR", "localhost:6379")
	t.Setenv("CBLCRAWL_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "http://localhost:8080/graphql", cfg.API.Endpoint)
	assert.Equal(t, "secret-token", cfg.API.Token)
	assert.Equal(t, "/tmp/cbl", cfg.Output.DataDirectory)
	assert.Equal(t, 100, cfg.Crawl.PageSize)
	assert.Equal(t, 250, cfg.Crawl.CheckpointEvery)
	assert.Equal(t, time.Second, cfg.RateLimit.PageDelay)
	assert.Equal(t, 2, cfg.Retry.MaxAttempts)
	assert.Equal(t, "redis", cfg.Checkpoint.Backend)
	assert.Equal(t, "localhost:6379", cfg.Checkpoint.RedisAddr)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidNumbers(t *testing.T) {
	t.Setenv("CBLCRAWL_PAGE_SIZE", "many")
	t.Setenv("CBLCRAWL_PAGE_DELAY", "soon")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CBLCRAWL_PAGE_SIZE")
	assert.Contains(t, err.Error(), "CBLCRAWL_PAGE_DELAY")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"missing endpoint", func(c *Config) { c.API.Endpoint = "" }, true},
		{"bad endpoint", func(c *Config) { c.API.Endpoint = "not a url" }, true},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, true},
		{"zero page size", func(c *Config) { c.Crawl.PageSize = 0 }, true},
		{"page size too large", func(c *Config) { c.Crawl.PageSize = 5000 }, true},
		{"zero checkpoint threshold", func(c *Config) { c.Crawl.CheckpointEvery = 0 }, true},
		{"negative delay", func(c *Config) { c.RateLimit.PageDelay = -time.Second }, true},
		{"unknown backend", func(c *Config) { c.Checkpoint.Backend = "s3" }, true},
		{"redis without addr", func(c *Config) { c.Checkpoint.Backend = "redis" }, true},
		{"redis with addr", func(c *Config) {
			c.Checkpoint.Backend = "redis"
			c.Checkpoint.RedisAddr = "localhost:6379"
		}, false},
		{"uppercase level", func(c *Config) { c.Logging.Level = "DEBUG" }, false},
		{"invalid level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"inverted backoff", func(c *Config) {
			c.Retry.MaxAttempts = 3
			c.Retry.InitialBackoff = time.Minute
			c.Retry.MaxBackoff = time.Second
		}, true},
		{"empty data dir", func(c *Config) { c.Output.DataDirectory = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cblcrawl.yaml")
	content := `
api:
  endpoint: "http://127.0.0.1:9999/graphql"
  timeout: 5s
crawl:
  page_size: 50
  checkpoint_every: 100
rate_limit:
  page_delay: 0s
output:
  data_directory: "` + dir + `"
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "http://127.0.0.1:9999/graphql", cfg.API.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 50, cfg.Crawl.PageSize)
	assert.Equal(t, 100, cfg.Crawl.CheckpointEvery)
	assert.Equal(t, time.Duration(0), cfg.RateLimit.PageDelay)
	assert.Equal(t, dir, cfg.Output.DataDirectory)
	assert.Equal(t, "warn", cfg.Logging.Level)
	// untouched sections keep their defaults
	assert.Equal(t, "file", cfg.Checkpoint.Backend)
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unterminated"), 0644))

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawl:\n  page_size: 50\n  checkpoint_every: 70\n"), 0644))
	t.Setenv("CBLCRAWL_PAGE_SIZE", "60")

	cfg, err := Load(path, map[string]interface{}{
		"checkpoint-every": 80,
		"data-dir":         dir,
	})
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Crawl.PageSize)
	assert.Equal(t, 80, cfg.Crawl.CheckpointEvery)
	assert.Equal(t, dir, cfg.Output.DataDirectory)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Crawl.PageSize = 123

	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 123, loaded.Crawl.PageSize)
	assert.Equal(t, cfg.RateLimit.PageDelay, loaded.RateLimit.PageDelay)
}
