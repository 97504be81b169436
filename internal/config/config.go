package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the matching venue.
type Config struct {
	Port            int
	LogLevel        string
	WebhookTimeout  time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// KafkaBrokers is empty when the event stream is disabled.
	KafkaBrokers []string
	KafkaTopic   string

	TradeTapeLimit int
	BookDepth      int
}

// Defaults applied when the matching variable is unset.
const (
	DefaultPort           = 8080
	DefaultLogLevel       = "info"
	DefaultKafkaTopic     = "venue.events"
	DefaultTradeTapeLimit = 1000
	DefaultBookDepth      = 10
)

// durationVar binds a duration variable to its Config field.
type durationVar struct {
	key  string
	def  time.Duration
	dest *time.Duration
}

// intVar binds a positive integer variable to its Config field.
type intVar struct {
	key  string
	def  int
	dest *int
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. The first invalid variable is reported by name.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:     getStr("LOG_LEVEL", DefaultLogLevel),
		KafkaBrokers: getList("KAFKA_BROKERS"),
		KafkaTopic:   getStr("KAFKA_TOPIC", DefaultKafkaTopic),
	}

	port, err := getInt("PORT", DefaultPort)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	cfg.Port = port

	if !isValidLogLevel(cfg.LogLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", cfg.LogLevel)
	}

	durations := []durationVar{
		{"WEBHOOK_TIMEOUT", 5 * time.Second, &cfg.WebhookTimeout},
		{"READ_TIMEOUT", 5 * time.Second, &cfg.ReadTimeout},
		{"WRITE_TIMEOUT", 10 * time.Second, &cfg.WriteTimeout},
		{"IDLE_TIMEOUT", 60 * time.Second, &cfg.IdleTimeout},
		{"SHUTDOWN_TIMEOUT", 10 * time.Second, &cfg.ShutdownTimeout},
	}
	for _, v := range durations {
		d, err := getDuration(v.key, v.def)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", v.key, err)
		}
		*v.dest = d
	}

	ints := []intVar{
		{"TRADE_TAPE_LIMIT", DefaultTradeTapeLimit, &cfg.TradeTapeLimit},
		{"BOOK_DEPTH", DefaultBookDepth, &cfg.BookDepth},
	}
	for _, v := range ints {
		n, err := getPositiveInt(v.key, v.def)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", v.key, err)
		}
		*v.dest = n
	}

	return cfg, nil
}

// SlogLevel maps LogLevel to its slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getPositiveInt(key string, defaultVal int) (int, error) {
	n, err := getInt(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

// getList splits a comma-separated variable, dropping empty entries.
func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
