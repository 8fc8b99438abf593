// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers .env, an optional YAML file and ARMORY_ environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"time"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Region is used when a request does not name one.
	Region string `koanf:"region"`
	// ZoneID scopes performance queries to one raid tier.
	ZoneID int `koanf:"zone_id"`

	// UpstreamTimeout bounds every outbound call, token exchanges included.
	UpstreamTimeout time.Duration `koanf:"upstream_timeout"`
	// TokenDefaultTTL is used when a token response carries no expires_in.
	TokenDefaultTTL time.Duration `koanf:"token_default_ttl"`

	BlizzardAPIURL       string `koanf:"blizzard_api_url"`
	BlizzardTokenURL     string `koanf:"blizzard_token_url"`
	BlizzardNamespace    string `koanf:"blizzard_namespace"`
	BlizzardLocale       string `koanf:"blizzard_locale"`
	BlizzardClientID     string `koanf:"blizzard_client_id"`
	BlizzardClientSecret string `koanf:"blizzard_client_secret"`

	WarcraftLogsAPIURL       string `koanf:"warcraftlogs_api_url"`
	WarcraftLogsTokenURL     string `koanf:"warcraftlogs_token_url"`
	WarcraftLogsClientID     string `koanf:"warcraftlogs_client_id"`
	WarcraftLogsClientSecret string `koanf:"warcraftlogs_client_secret"`

	// CacheBackend is memory or redis.
	CacheBackend       string        `koanf:"cache_backend"`
	CacheTTL           time.Duration `koanf:"cache_ttl"`
	CacheMaxEntries    int           `koanf:"cache_max_entries"`
	CacheSweepInterval time.Duration `koanf:"cache_sweep_interval"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// WorkerCount sets the number of batch lookup workers.
	WorkerCount int `koanf:"worker_count"`
	// QueueSize bounds the in-memory lookup queue.
	QueueSize int `koanf:"queue_size"`
	// BatchTimeout caps a whole batch or team request.
	BatchTimeout time.Duration `koanf:"batch_timeout"`

	// RosterPath points at the YAML team roster. Empty means no teams.
	RosterPath string `koanf:"roster_path"`
	// RaiderIOSeason is appended to raider.io profile links.
	RaiderIOSeason string `koanf:"raiderio_season"`

	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":9080",
		Region:    "eu",
		ZoneID:    42,

		UpstreamTimeout: 10 * time.Second,
		TokenDefaultTTL: 15 * time.Minute,

		BlizzardAPIURL:    "https://eu.api.blizzard.com",
		BlizzardTokenURL:  "https://oauth.battle.net/token",
		BlizzardNamespace: "profile-eu",
		BlizzardLocale:    "en_GB",

		WarcraftLogsAPIURL:   "https://www.warcraftlogs.com/api/v2/client",
		WarcraftLogsTokenURL: "https://www.warcraftlogs.com/oauth/token",

		CacheBackend:       CacheBackendMemory,
		CacheTTL:           10 * time.Minute,
		CacheMaxEntries:    10_000,
		CacheSweepInterval: time.Minute,

		RedisAddr: "localhost:6379",

		WorkerCount:  8,
		QueueSize:    1024,
		BatchTimeout: 60 * time.Second,

		RaiderIOSeason: "season-tww-2",

		CORSAllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// HasBlizzardCredentials reports whether both Blizzard credentials are set.
func (c *Config) HasBlizzardCredentials() bool {
	return c.BlizzardClientID != "" && c.BlizzardClientSecret != ""
}

// HasWarcraftLogsCredentials reports whether both WarcraftLogs credentials are set.
func (c *Config) HasWarcraftLogsCredentials() bool {
	return c.WarcraftLogsClientID != "" && c.WarcraftLogsClientSecret != ""
}
