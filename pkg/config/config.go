package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultEndpoint is the Community Ban List GraphQL endpoint
	DefaultEndpoint = "https://communitybanlist.com/graphql"

	envPrefix = "CBLCRAWL_"
)

// Config holds all configuration options for the crawler
type Config struct {
	// Remote API settings
	API APIConfig `yaml:"api" json:"api"`

	// Pagination and checkpoint cadence
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Fetch retry policy
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Checkpoint backend
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds remote GraphQL endpoint configuration
type APIConfig struct {
	Endpoint  string        `yaml:"endpoint" json:"endpoint" validate:"required,url"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Token     string        `yaml:"token" json:"token"`
}

// CrawlConfig holds pagination settings
type CrawlConfig struct {
	PageSize        int `yaml:"page_size" json:"page_size" validate:"min=1,max=1000"`
	CheckpointEvery int `yaml:"checkpoint_every" json:"checkpoint_every" validate:"min=1"`
}

// RateLimitConfig holds the fixed inter-page delay and an optional request ceiling.
// RequestsPerSecond of 0 leaves requests paced by PageDelay alone.
type RateLimitConfig struct {
	PageDelay         time.Duration `yaml:"page_delay" json:"page_delay" validate:"gte=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second" validate:"gte=0"`
	Burst             int           `yaml:"burst" json:"burst" validate:"min=0"`
}

// RetryConfig holds fetch retry configuration. MaxAttempts of 0 disables retries.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts" validate:"min=0,max=10"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff" validate:"gte=0"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff" validate:"gte=0"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier" validate:"gte=1"`
}

// CheckpointConfig selects and configures the checkpoint backend
type CheckpointConfig struct {
	Backend       string `yaml:"backend" json:"backend" validate:"oneof=file redis"`
	Salvage       bool   `yaml:"salvage" json:"salvage"`
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string `yaml:"redis_password" json:"redis_password"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db" validate:"min=0"`
	RedisPrefix   string `yaml:"redis_prefix" json:"redis_prefix"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	DataDirectory string `yaml:"data_directory" json:"data_directory" validate:"required"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn warning error disabled"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Endpoint:  DefaultEndpoint,
			Timeout:   30 * time.Second,
			UserAgent: "cblcrawl/1.0",
		},
		Crawl: CrawlConfig{
			PageSize:        500,
			CheckpointEvery: 10000,
		},
		RateLimit: RateLimitConfig{
			PageDelay: 200 * time.Millisecond,
			Burst:     1,
		},
		Retry: RetryConfig{
			MaxAttempts:    0,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
		},
		Checkpoint: CheckpointConfig{
			Backend:     "file",
			RedisPrefix: "cblcrawl:checkpoint:",
		},
		Output: OutputConfig{
			DataDirectory: "./data",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := getenv("ENDPOINT"); v != "" {
		c.API.Endpoint = v
	}
	if v := getenv("API_TOKEN"); v != "" {
		c.API.Token = v
	}
	if v := getenv("USER_AGENT"); v != "" {
		c.API.UserAgent = v
	}
	if v := getenv("DATA_DIR"); v != "" {
		c.Output.DataDirectory = v
	}
	if v := getenv("CHECKPOINT_BACKEND"); v != "" {
		c.Checkpoint.Backend = strings.ToLower(v)
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Checkpoint.RedisAddr = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Checkpoint.RedisPassword = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	if v := getenv("PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPAGE_SIZE: %w", envPrefix, err))
		} else {
			c.Crawl.PageSize = n
		}
	}
	if v := getenv("CHECKPOINT_EVERY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCHECKPOINT_EVERY: %w", envPrefix, err))
		} else {
			c.Crawl.CheckpointEvery = n
		}
	}
	if v := getenv("MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_RETRIES: %w", envPrefix, err))
		} else {
			c.Retry.MaxAttempts = n
		}
	}
	if v := getenv("PAGE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPAGE_DELAY: %w", envPrefix, err))
		} else {
			c.RateLimit.PageDelay = d
		}
	}
	if v := getenv("TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTIMEOUT: %w", envPrefix, err))
		} else {
			c.API.Timeout = d
		}
	}

	return errors.Join(errs...)
}

func getenv(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"cblcrawl.yaml",
		".cblcrawl.yaml",
		".cblcrawl.yml",
		filepath.Join(home, ".config", "cblcrawl", "config.yaml"),
		filepath.Join(home, ".cblcrawl.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

var validate = validator.New()

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Checkpoint.Backend = strings.ToLower(c.Checkpoint.Backend)

	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q validation (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	if c.Retry.MaxAttempts > 0 && c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		errs = append(errs, errors.New("retry max_backoff must not be smaller than initial_backoff"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["endpoint"].(string); ok && v != "" {
		c.API.Endpoint = v
	}
	if v, ok := flags["data-dir"].(string); ok && v != "" {
		c.Output.DataDirectory = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["page-size"].(int); ok && v > 0 {
		c.Crawl.PageSize = v
	}
	if v, ok := flags["checkpoint-every"].(int); ok && v > 0 {
		c.Crawl.CheckpointEvery = v
	}
	if v, ok := flags["max-retries"].(int); ok && v >= 0 {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["page-delay"].(time.Duration); ok && v >= 0 {
		c.RateLimit.PageDelay = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".cblcrawl.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
