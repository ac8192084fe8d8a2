package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/i474232898/user-weather-hub/internal/common"
)

type AppConfig struct {
	Port       string
	StaticDir  string
	DBPath     string
	CORSOrigin string

	// Outbound NWS access.
	NWSBaseURL   string
	NWSUserAgent string
	HTTPTimeout  time.Duration

	// Forecast cache.
	CacheTTL           time.Duration
	CachePruneInterval time.Duration
	FetchConcurrency   int

	// States prefetched on a schedule (empty = no warming).
	WarmStates   []string
	WarmInterval time.Duration

	ShutdownTimeout time.Duration

	LogLevel  string
	LogFormat string

	// Event stream; disabled when no brokers are set.
	KafkaBrokers   []string
	KafkaUserTopic string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:           getenvDefault("PORT", "3001"),
		StaticDir:      getenvDefault("STATIC_DIR", "dist"),
		DBPath:         getenvDefault("DATABASE_PATH", "users.db"),
		CORSOrigin:     getenvDefault("CORS_ORIGINS", "*"),
		NWSBaseURL:     getenvDefault("NWS_BASE_URL", "https://api.weather.gov"),
		NWSUserAgent:   getenvDefault("NWS_USER_AGENT", "user-weather-hub (contact@example.com)"),
		WarmStates:     common.SplitList(os.Getenv("WEATHER_WARM_STATES")),
		LogLevel:       getenvDefault("LOG_LEVEL", "info"),
		LogFormat:      getenvDefault("LOG_FORMAT", "json"),
		KafkaBrokers:   common.SplitList(os.Getenv("KAFKA_BROKERS")),
		KafkaUserTopic: getenvDefault("KAFKA_USER_TOPIC", "user-events"),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", "10s", &cfg.HTTPTimeout},
		{"WEATHER_CACHE_TTL", "30m", &cfg.CacheTTL},
		{"CACHE_PRUNE_INTERVAL", "5m", &cfg.CachePruneInterval},
		{"WEATHER_WARM_INTERVAL", "15m", &cfg.WarmInterval},
		{"SHUTDOWN_TIMEOUT", "5s", &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		v, err := getenvDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	concurrency, err := getenvPositiveInt("WEATHER_CONCURRENCY", 8)
	if err != nil {
		return nil, err
	}
	cfg.FetchConcurrency = concurrency

	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: must be json or console", cfg.LogFormat)
	}
	if cfg.KafkaUserTopic == "" {
		return nil, fmt.Errorf("KAFKA_USER_TOPIC must not be empty")
	}

	return cfg, nil
}

// KafkaEnabled reports whether user events should be published.
func (c *AppConfig) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func getenvPositiveInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return n, nil
}
