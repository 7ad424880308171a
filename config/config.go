package config

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSymbols is the tracked set of Binance USDT pairs.
var DefaultSymbols = []string{
	"btcusdt", "ethusdt", "bnbusdt", "solusdt", "adausdt", "xrpusdt", "dogeusdt",
	"dotusdt", "maticusdt", "ltcusdt", "bchusdt", "uniusdt", "linkusdt", "trxusdt",
	"avaxusdt", "xlmusdt", "nearusdt", "filusdt", "atomusdt", "etcusdt", "vetusdt",
	"apeusdt", "egldusdt", "sandusdt", "manausdt", "icpusdt", "ftmusdt", "hbarusdt",
	"algousdt", "thetausdt", "xtzusdt", "aaveusdt", "chzusdt", "enjusdt", "runeusdt",
	"crvusdt", "oneusdt", "zecusdt", "dashusdt", "yfiusdt", "compusdt", "omgusdt",
	"sushiusdt", "ankrusdt", "lrcusdt", "wavesusdt", "zilusdt", "balusdt", "qtumusdt",
	"storjusdt",
}

const (
	DefaultRESTURL = "https://api.binance.com/api/v3/klines"
	DefaultWSURL   = "wss://stream.binance.com:9443/stream"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Market data
	Symbols        []string
	KlineInterval  string
	BufferCap      int
	SeedLimit      int
	BinanceRESTURL string
	BinanceWSURL   string
	// StreamReconnect enables redial with backoff after a dropped stream.
	StreamReconnect bool

	// Presentation
	PollInterval time.Duration
	HTTPAddr     string

	// Infrastructure
	RedisAddr        string // empty disables the Redis writer
	RedisPassword    string
	SQLitePath       string // empty disables the archive
	MetricsAddr      string
	ArchiveRetention time.Duration
	PruneCron        string

	// Alerts
	AlertWebhookURL  string
	TelegramBotToken string
	TelegramChatID   string

	LogLevel slog.Level
}

// symbolsFile is the optional YAML override for the tracked symbol list.
type symbolsFile struct {
	Interval string   `yaml:"interval"`
	Symbols  []string `yaml:"symbols"`
}

// Load reads .env (if present), then environment variables with defaults, then
// the optional SYMBOLS_FILE. The file wins over SYMBOLS when both are set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Symbols:         ParseSymbols(getEnv("SYMBOLS", "")),
		KlineInterval:   getEnv("KLINE_INTERVAL", "1m"),
		BufferCap:       getEnvInt("BUFFER_CAP", 500),
		SeedLimit:       getEnvInt("SEED_LIMIT", 100),
		BinanceRESTURL:  getEnv("BINANCE_REST_URL", DefaultRESTURL),
		BinanceWSURL:    getEnv("BINANCE_WS_URL", DefaultWSURL),
		StreamReconnect: getEnvBool("STREAM_RECONNECT", false),

		PollInterval: time.Duration(getEnvInt("POLL_INTERVAL_MS", 2000)) * time.Millisecond,
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		SQLitePath:       getEnvAllowEmpty("SQLITE_PATH", "data/candles.db"),
		MetricsAddr:      getEnv("METRICS_ADDR", ":9090"),
		ArchiveRetention: time.Duration(getEnvInt("ARCHIVE_RETENTION_HOURS", 168)) * time.Hour,
		PruneCron:        getEnv("PRUNE_CRON", "0 */15 * * * *"),

		AlertWebhookURL:  getEnv("ALERT_WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		LogLevel: ParseLevel(getEnv("LOG_LEVEL", "info")),
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = append([]string(nil), DefaultSymbols...)
	}

	if path := os.Getenv("SYMBOLS_FILE"); path != "" {
		if err := cfg.applySymbolsFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Validate()
}

func (c *Config) applySymbolsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read symbols file: %w", err)
	}
	var f symbolsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse symbols file: %w", err)
	}
	if syms := ParseSymbols(strings.Join(f.Symbols, ",")); len(syms) > 0 {
		c.Symbols = syms
	}
	if f.Interval != "" {
		c.KlineInterval = f.Interval
	}
	return nil
}

// Validate checks that the loaded values are usable.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if c.KlineInterval == "" {
		return fmt.Errorf("kline interval is required")
	}
	if c.BufferCap <= 0 {
		return fmt.Errorf("buffer cap must be positive, got %d", c.BufferCap)
	}
	if c.SeedLimit <= 0 {
		return fmt.Errorf("seed limit must be positive, got %d", c.SeedLimit)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	return nil
}

// ParseSymbols splits a comma-separated list, lower-cases each entry and drops
// blanks and duplicates while keeping the first-seen order.
func ParseSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			log.Printf("[config] skipping duplicate symbol: %q", p)
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// getEnvAllowEmpty distinguishes unset (fallback) from set-to-empty (disabled).
func getEnvAllowEmpty(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return b
}
