// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	BackendGist   = "gist"
	BackendSQLite = "sqlite"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	PublicURL string `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`

	BlobBackend  string `env:"BLOB_BACKEND" envDefault:"gist"`
	GithubToken  string `env:"GITHUB_TOKEN"`
	GistID       string `env:"GIST_ID"`
	GistFilename string `env:"GIST_FILENAME" envDefault:"posts.xml"`
	SQLitePath   string `env:"SQLITE_DB_PATH" envDefault:"./gistblog.db"`

	AdminToken string `env:"ADMIN_TOKEN"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
	LogFile   string `env:"LOG_FILE"`

	InitTimeout         time.Duration `env:"INIT_TIMEOUT" envDefault:"15s"`
	FeedTimeout         time.Duration `env:"FEED_TIMEOUT" envDefault:"5s"`
	WebhookTimeout      time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
	FeedRefreshSchedule string        `env:"FEED_REFRESH_SCHEDULE" envDefault:"@every 15m"`

	PeerRateLimit float64 `env:"PEER_RATE_LIMIT" envDefault:"5"`
	PeerRateBurst int     `env:"PEER_RATE_BURST" envDefault:"10"`
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// AdminEnabled reports whether admin routes can be authenticated at all.
func (c Config) AdminEnabled() bool {
	return c.AdminToken != ""
}

// Load reads an optional .env file and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.BlobBackend {
	case BackendGist, BackendSQLite:
	default:
		return fmt.Errorf("BLOB_BACKEND must be %q or %q, got %q", BackendGist, BackendSQLite, c.BlobBackend)
	}

	u, err := url.Parse(c.PublicURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("PUBLIC_URL must be an absolute http(s) URL, got %q", c.PublicURL)
	}

	if c.BlobBackend == BackendGist && c.GistFilename == "" {
		return fmt.Errorf("GIST_FILENAME must not be empty")
	}

	if c.PeerRateLimit <= 0 || c.PeerRateBurst <= 0 {
		return fmt.Errorf("PEER_RATE_LIMIT and PEER_RATE_BURST must be positive")
	}

	return nil
}
