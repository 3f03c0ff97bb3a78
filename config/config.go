package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Output formats understood by the pipeline writers.
const (
	FormatCSV    = "csv"
	FormatJSON   = "json"
	FormatDual   = "dual"
	FormatSQLite = "sqlite"
	FormatMongo  = "mongo"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL          string        `mapstructure:"base_url"`
	AllowedDomains   []string      `mapstructure:"allowed_domains"`
	MaxPages         int           `mapstructure:"max_pages"`
	Parallelism      int           `mapstructure:"parallelism"`
	Delay            time.Duration `mapstructure:"delay"`
	RandomDelay      time.Duration `mapstructure:"random_delay"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	RetryBackoffMax  time.Duration `mapstructure:"retry_backoff_max"`
	OutputFile       string        `mapstructure:"output_file"`
	OutputFormat     string        `mapstructure:"output_format"` // csv, json, dual, sqlite or mongo
	MongoURI         string        `mapstructure:"mongo_uri"`
	MongoDatabase    string        `mapstructure:"mongo_database"`
	MongoCollection  string        `mapstructure:"mongo_collection"`
	UserAgent        string        `mapstructure:"user_agent"`
	Verbose          bool          `mapstructure:"verbose"`
	RespectRobotsTxt bool          `mapstructure:"respect_robots_txt"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`

	PipelineBufferSize int `mapstructure:"pipeline_buffer_size"`
	BatchSize          int `mapstructure:"batch_size"`
	DedupeMaxSize      int `mapstructure:"dedupe_max_size"`
}

// DefaultConfig returns conservative defaults for the demo target.
// MaxPages of zero follows pagination until the last page.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://books.toscrape.com/",
		MaxPages:           0,
		Parallelism:        16,
		Delay:              0,
		RandomDelay:        0,
		Timeout:            10 * time.Second,
		MaxRetries:         2,
		RetryBackoff:       200 * time.Millisecond,
		RetryBackoffMax:    2 * time.Second,
		OutputFile:         "output/books.csv",
		OutputFormat:       FormatCSV,
		MongoDatabase:      "books",
		MongoCollection:    "books",
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Verbose:            false,
		RespectRobotsTxt:   false,
		PipelineBufferSize: 512,
		BatchSize:          64,
		DedupeMaxSize:      100000,
	}
}

// AllowedHosts returns the domain allow-list, falling back to the seed host.
func (c *Config) AllowedHosts() ([]string, error) {
	if len(c.AllowedDomains) > 0 {
		return c.AllowedDomains, nil
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	return []string{parsed.Hostname()}, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	for _, domain := range c.AllowedDomains {
		if strings.TrimSpace(domain) == "" {
			return fmt.Errorf("allowed domains cannot contain empty entries")
		}
	}

	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}

	switch c.OutputFormat {
	case FormatCSV, FormatJSON, FormatDual, FormatSQLite:
		if c.OutputFile == "" {
			return fmt.Errorf("output file cannot be empty")
		}
	case FormatMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("mongo uri is required for mongo output")
		}
		if c.MongoDatabase == "" || c.MongoCollection == "" {
			return fmt.Errorf("mongo database and collection are required for mongo output")
		}
	default:
		return fmt.Errorf("output format must be csv, json, dual, sqlite, or mongo")
	}

	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}

	return nil
}
