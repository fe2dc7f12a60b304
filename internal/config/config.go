package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Cache   CacheConfig
	Fetch   FetchConfig
	Refresh RefreshConfig
	Ranking RankingConfig
	Social  SocialConfig
	Chain   ChainConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	HTTPAddr            string
	EnableManualRefresh bool
	RefreshOnceMode     bool
	MCPMode             bool
	AllowedOrigins      []string
	RequestsPerMinute   int
	ShutdownTimeout     time.Duration
}

// CacheConfig selects the backend for last-good results. TTL only bounds
// storage and must outlive every source's staleness ceiling.
type CacheConfig struct {
	Backend       string // "memory" or "redis"
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

type FetchConfig struct {
	Timeout       time.Duration // per network call
	SourceTimeout time.Duration // per source, retries and fallbacks included
	RateLimit     time.Duration // minimum delay between requests to one host
	RetryAttempts int
	UserAgent     string
	MaxConcurrent int
	APIBatchSize  int
	APIBatchDelay time.Duration
	SourcesPath   string
}

type RefreshConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	// Cooldown is the minimum gap between two manual refreshes.
	Cooldown time.Duration
}

type RankingConfig struct {
	PostsPerSource  int
	VideosPerSource int
	MaxErrors       int
	PostsLimit      int
	VideosLimit     int
}

type SocialConfig struct {
	BearerToken string
	APIBase     string
}

type ChainConfig struct {
	ProxyBase   string
	PageBase    string
	SnapshotURL string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads an optional .env file, then flags, then environment overrides.
func Load() *Config {
	_ = godotenv.Load()

	httpAddr := flag.String("http", ":3000", "HTTP server address")
	refreshOnce := flag.Bool("refresh-once", false, "Run one refresh, log the counts and exit")
	mcpMode := flag.Bool("mcp", false, "Serve the feed over MCP stdio instead of HTTP")
	cacheBackend := flag.String("cache-backend", "memory", "Cache backend: memory or redis")
	cacheTTL := flag.Duration("cache-ttl", 48*time.Hour, "Storage TTL for last-good results")
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis server address")
	rateLimit := flag.Duration("rate-limit", 500*time.Millisecond, "Minimum delay between requests to same host")
	interval := flag.Duration("refresh-interval", 15*time.Minute, "Time between scheduled refreshes")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	sourcesPath := flag.String("sources", "", "Path to the source roster YAML")

	flag.Parse()

	cfg := &Config{
		Server: ServerConfig{
			HTTPAddr:            envString("HTTP_ADDR", *httpAddr),
			EnableManualRefresh: envBool("ENABLE_MANUAL_REFRESH", true),
			RefreshOnceMode:     *refreshOnce || envBool("REFRESH_ONCE_MODE", false),
			MCPMode:             *mcpMode || envBool("MCP_MODE", false),
			AllowedOrigins:      envList("ALLOWED_ORIGINS", []string{"*"}),
			RequestsPerMinute:   envInt("REQUESTS_PER_MINUTE", 120),
			ShutdownTimeout:     envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Cache: CacheConfig{
			Backend:       envString("CACHE_BACKEND", *cacheBackend),
			TTL:           envDuration("CACHE_TTL", *cacheTTL),
			RedisAddr:     envString("REDIS_ADDR", *redisAddr),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       envInt("REDIS_DB", 0),
			RedisPrefix:   envString("REDIS_PREFIX", "mcmahon-news:"),
		},
		Fetch: FetchConfig{
			Timeout:       envDuration("FETCH_TIMEOUT", 15*time.Second),
			SourceTimeout: envDuration("SOURCE_TIMEOUT", 60*time.Second),
			RateLimit:     envDuration("RATE_LIMIT", *rateLimit),
			RetryAttempts: envInt("RETRY_ATTEMPTS", 3),
			UserAgent:     envString("USER_AGENT", "Mozilla/5.0 (compatible; McMahonNews/1.0)"),
			MaxConcurrent: envInt("MAX_CONCURRENT_FETCHES", 8),
			APIBatchSize:  envInt("API_BATCH_SIZE", 3),
			APIBatchDelay: envDuration("API_BATCH_DELAY", time.Second),
			SourcesPath:   envString("SOURCES_CONFIG_PATH", *sourcesPath),
		},
		Refresh: RefreshConfig{
			Interval: envDuration("REFRESH_INTERVAL", *interval),
			Timeout:  envDuration("REFRESH_TIMEOUT", 5*time.Minute),
			Cooldown: envDuration("REFRESH_COOLDOWN", 30*time.Second),
		},
		Ranking: RankingConfig{
			PostsPerSource:  envInt("POSTS_PER_SOURCE", 3),
			VideosPerSource: envInt("VIDEOS_PER_SOURCE", 3),
			MaxErrors:       envInt("MAX_ERRORS", 10),
			PostsLimit:      envInt("POSTS_LIMIT", 30),
			VideosLimit:     envInt("VIDEOS_LIMIT", 20),
		},
		Social: SocialConfig{
			BearerToken: strings.TrimSpace(os.Getenv("X_BEARER_TOKEN")),
			APIBase:     envString("X_API_BASE", "https://api.twitter.com/2"),
		},
		Chain: ChainConfig{
			ProxyBase:   envString("PROXY_BASE", "https://openrss.org"),
			PageBase:    envString("RUMBLE_BASE", "https://rumble.com"),
			SnapshotURL: os.Getenv("SNAPSHOT_URL"),
		},
		Logging: LoggingConfig{
			Level:  envString("LOG_LEVEL", *logLevel),
			Format: envString("LOG_FORMAT", "json"),
		},
	}

	return cfg
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d >= 0 {
			return d
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return fallback
	}
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
