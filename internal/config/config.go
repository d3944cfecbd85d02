// Package config handles loading and validating configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendREST     = "rest"
	BackendRedis    = "redis"
)

// defaultLeagues is the LEAGUE_FILTER default, as a comma-separated list.
const defaultLeagues = "italy. serie a,italy serie a,serie a,италия. серия а,italian serie a"

// Config holds all configuration values for the odds engine.
type Config struct {
	// Feed
	APIKey               string
	FeedWSURL            string
	BookmakerIDs         []int
	SportIDs             []int
	PingInterval         time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int

	// Filtering
	LeagueFilter  []string
	DefaultLeague string

	// Caches
	EventCacheSize  int
	EventCacheEvict int
	PendingSize     int
	ChangeTTL       time.Duration
	TimeBucket      time.Duration

	// Write queue
	WriteBatchSize     int
	WriteBatchDelay    time.Duration
	WriteRetrySchedule []time.Duration

	// Store
	StoreBackend       string
	OddsTable          string
	DatabaseURL        string
	SupabaseURL        string
	SupabaseServiceKey string
	RedisURL           string

	// Matching
	TeamAliasesPath string

	// Status
	Port                int
	CORSOrigins         []string
	UnmappedReportEvery time.Duration

	// UI
	EnableTUI     bool
	UIRefreshRate time.Duration

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables with fallback to .env file.
// Priority order: Environment variables > .env file > hardcoded defaults
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	retry, err := parseDurations(getEnv("WRITE_RETRY_SCHEDULE", "500ms,1s,2s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_RETRY_SCHEDULE: %w", err)
	}
	bookmakers, err := parseInts(getEnv("BOOKMAKER_IDS", "21,103"))
	if err != nil {
		return nil, fmt.Errorf("invalid BOOKMAKER_IDS: %w", err)
	}
	sports, err := parseInts(getEnv("SPORT_IDS", "7"))
	if err != nil {
		return nil, fmt.Errorf("invalid SPORT_IDS: %w", err)
	}

	cfg := &Config{
		// Feed
		APIKey:               getEnv("ODDSMARKET_API_KEY", ""),
		FeedWSURL:            getEnv("FEED_WS_URL", "wss://api-pr.oddsmarket.org/v4/odds_ws"),
		BookmakerIDs:         bookmakers,
		SportIDs:             sports,
		PingInterval:         time.Duration(getEnvInt("PING_INTERVAL_SECONDS", 30)) * time.Second,
		ReconnectDelay:       time.Duration(getEnvInt("RECONNECT_DELAY_SECONDS", 5)) * time.Second,
		MaxReconnectAttempts: getEnvInt("MAX_RECONNECT_ATTEMPTS", 10),

		// Filtering
		LeagueFilter:  splitList(getEnv("LEAGUE_FILTER", defaultLeagues)),
		DefaultLeague: getEnv("DEFAULT_LEAGUE", "Serie A"),

		// Caches
		EventCacheSize:  getEnvInt("EVENT_CACHE_SIZE", 2000),
		EventCacheEvict: getEnvInt("EVENT_CACHE_EVICT", 500),
		PendingSize:     getEnvInt("PENDING_BUFFER_SIZE", 500),
		ChangeTTL:       time.Duration(getEnvInt("CHANGE_TTL_SECONDS", 300)) * time.Second,
		TimeBucket:      time.Duration(getEnvInt("MATCH_TIME_BUCKET_MINUTES", 30)) * time.Minute,

		// Write queue
		WriteBatchSize:     getEnvInt("WRITE_BATCH_SIZE", 50),
		WriteBatchDelay:    time.Duration(getEnvInt("WRITE_BATCH_DELAY_MS", 200)) * time.Millisecond,
		WriteRetrySchedule: retry,

		// Store
		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),
		OddsTable:          getEnv("ODDS_TABLE", "live_odds"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		RedisURL:           getEnv("REDIS_URL", ""),

		// Matching
		TeamAliasesPath: getEnv("TEAM_ALIASES_PATH", ""),

		// Status
		Port:                getEnvInt("PORT", 3000),
		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", "*")),
		UnmappedReportEvery: time.Duration(getEnvInt("UNMAPPED_REPORT_MINUTES", 2)) * time.Minute,

		// UI
		EnableTUI:     getEnvBool("ENABLE_TUI", false),
		UIRefreshRate: time.Duration(getEnvInt("UI_REFRESH_MS", 500)) * time.Millisecond,

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("ODDSMARKET_API_KEY is required")
	}

	if c.FeedWSURL == "" {
		return fmt.Errorf("FEED_WS_URL is required")
	}

	if len(c.BookmakerIDs) == 0 {
		return fmt.Errorf("BOOKMAKER_IDS must list at least one bookmaker")
	}

	if len(c.SportIDs) == 0 {
		return fmt.Errorf("SPORT_IDS must list at least one sport")
	}

	if c.PingInterval <= 0 || c.ReconnectDelay <= 0 {
		return fmt.Errorf("PING_INTERVAL_SECONDS and RECONNECT_DELAY_SECONDS must be positive")
	}

	if c.MaxReconnectAttempts < 1 {
		return fmt.Errorf("MAX_RECONNECT_ATTEMPTS must be at least 1")
	}

	if c.EventCacheSize < 1 || c.EventCacheEvict < 1 || c.EventCacheEvict > c.EventCacheSize {
		return fmt.Errorf("EVENT_CACHE_EVICT must be between 1 and EVENT_CACHE_SIZE")
	}

	if c.PendingSize < 1 {
		return fmt.Errorf("PENDING_BUFFER_SIZE must be at least 1")
	}

	if c.ChangeTTL <= 0 || c.TimeBucket <= 0 {
		return fmt.Errorf("CHANGE_TTL_SECONDS and MATCH_TIME_BUCKET_MINUTES must be positive")
	}

	if c.WriteBatchSize < 1 {
		return fmt.Errorf("WRITE_BATCH_SIZE must be at least 1")
	}

	if c.WriteBatchDelay <= 0 {
		return fmt.Errorf("WRITE_BATCH_DELAY_MS must be positive")
	}

	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	case BackendREST:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for the rest backend")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of postgres, rest, redis (got %q)", c.StoreBackend)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	return nil
}

// MaskedAPIKey returns the feed API key with most characters hidden for logging.
func (c *Config) MaskedAPIKey() string {
	return maskSecret(c.APIKey)
}

// MaskedServiceKey returns the REST service key with most characters hidden for logging.
func (c *Config) MaskedServiceKey() string {
	return maskSecret(c.SupabaseServiceKey)
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean or returns a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseInts parses a comma-separated list of integers.
func parseInts(value string) ([]int, error) {
	parts := splitList(value)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", p)
		}
		out = append(out, n)
	}
	return out, nil
}

// parseDurations parses a comma-separated list of Go durations. An empty
// value or "none" disables retries.
func parseDurations(value string) ([]time.Duration, error) {
	if strings.EqualFold(strings.TrimSpace(value), "none") {
		return []time.Duration{}, nil
	}
	parts := splitList(value)
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		d, err := time.ParseDuration(p)
		if err != nil {
			return nil, err
		}
		if d < 0 {
			return nil, fmt.Errorf("negative delay %s", p)
		}
		out = append(out, d)
	}
	return out, nil
}
