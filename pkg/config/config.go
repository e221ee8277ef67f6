package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "hunter-compare/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Storage
	DBDriver string
	DBDSN    string

	// Scheduling
	StaleAfter     time.Duration
	MatchThreshold int
	Workers        int
	QueueSize      int

	// Browser
	BrowserMode       string
	BrowserHeadless   bool
	BrowserUserAgent  string
	BrowserDebugDir   string
	NavigationTimeout time.Duration
	ParallelSessions  bool

	// Stores
	PyaterochkaURL string
	MagnitURL      string

	// Crawl timings
	CardWaitTimeout   time.Duration
	InitialWait       time.Duration
	ScrollWait        time.Duration
	MaxScrollAttempts int
	PageWait          time.Duration
	PageInterval      time.Duration
	MaxPages          int

	// Optional infrastructure
	RedisAddr         string
	RedisDB           int
	RedisStream       string
	RedisStreamMaxLen int64
	MemcacheAddr      string
}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads the configuration from environment variables with defaults.
// Call godotenv.Load first if a .env file should be honored.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "9090"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", ""),

		DBDriver: getEnv("DB_DRIVER", "sqlite"),
		DBDSN:    getEnv("DB_DSN", "./hunter.db"),

		StaleAfter:     getDuration("STALE_AFTER", 24*time.Hour),
		MatchThreshold: getInt("MATCH_THRESHOLD", 75),
		Workers:        getInt("WORKERS", 2),
		QueueSize:      getInt("QUEUE_SIZE", 16),

		BrowserMode:       strings.ToLower(getEnv("BROWSER_MODE", "chrome")),
		BrowserHeadless:   getBool("BROWSER_HEADLESS", true),
		BrowserUserAgent:  getEnv("BROWSER_USER_AGENT", DefaultUserAgent),
		BrowserDebugDir:   getEnv("BROWSER_DEBUG_DIR", ""),
		NavigationTimeout: getDuration("NAVIGATION_TIMEOUT", 60*time.Second),
		ParallelSessions:  getBool("PARALLEL_SESSIONS", false),

		PyaterochkaURL: getEnv("PYATEROCHKA_URL", "https://5ka.ru/search/"),
		MagnitURL:      getEnv("MAGNIT_URL", "https://magnit.ru/search"),

		CardWaitTimeout:   getDuration("CARD_WAIT_TIMEOUT", 15*time.Second),
		InitialWait:       getDuration("INITIAL_WAIT", 5*time.Second),
		ScrollWait:        getDuration("SCROLL_WAIT", 2*time.Second),
		MaxScrollAttempts: getInt("MAX_SCROLL_ATTEMPTS", 20),
		PageWait:          getDuration("PAGE_WAIT", 3*time.Second),
		PageInterval:      getDuration("PAGE_INTERVAL", time.Second),
		MaxPages:          getInt("MAX_PAGES", 50),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisDB:           getInt("REDIS_DB", 0),
		RedisStream:       getEnv("REDIS_STREAM", "hunter:jobs"),
		RedisStreamMaxLen: int64(getInt("REDIS_STREAM_MAX_LEN", 1000)),
		MemcacheAddr:      getEnv("MEMCACHE_ADDR", ""),
	}
}

// Validate checks values that would otherwise fail deep inside a job.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return apperrors.NewConfiguration(fmt.Sprintf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver), nil)
	}
	if c.DBDSN == "" {
		return apperrors.NewConfiguration("DB_DSN is required", nil)
	}
	switch c.BrowserMode {
	case "chrome", "static":
	default:
		return apperrors.NewConfiguration(fmt.Sprintf("BROWSER_MODE must be chrome or static, got %q", c.BrowserMode), nil)
	}
	// A zero score never pairs, so 0 would silently behave like 1.
	if c.MatchThreshold < 1 || c.MatchThreshold > 100 {
		return apperrors.NewConfiguration(fmt.Sprintf("MATCH_THRESHOLD must be within 1..100, got %d", c.MatchThreshold), nil)
	}
	if c.Workers < 1 {
		return apperrors.NewConfiguration("WORKERS must be at least 1", nil)
	}
	if c.QueueSize < 1 {
		return apperrors.NewConfiguration("QUEUE_SIZE must be at least 1", nil)
	}
	if c.StaleAfter <= 0 {
		return apperrors.NewConfiguration("STALE_AFTER must be positive", nil)
	}
	if c.MaxPages < 1 {
		return apperrors.NewConfiguration("MAX_PAGES must be at least 1", nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

// getDuration accepts Go durations ("90s") or a bare number of seconds.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
