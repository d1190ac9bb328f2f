package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process configuration for the trader
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Kafka (cycle record stream)
	Kafka KafkaConfig

	// Strategy / state / record
	Trader TraderConfig

	// Engine (broker boundary)
	Engine EngineConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	Prefix   string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// KafkaConfig holds the cycle record producer configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

// TraderConfig holds strategy, state and record locations
type TraderConfig struct {
	StrategyFile  string
	StateBackend  string // file, postgres, redis, memory
	StatePath     string
	RecordPath    string // JSONL cycle record file, empty = disabled
	CycleSchedule string // cron (with seconds); empty = strategy file cadence
	InitialCash   float64
}

// EngineConfig holds broker boundary configuration
type EngineConfig struct {
	Kind            string // paper, alpaca
	Timeout         time.Duration
	UniverseTimeout time.Duration
	RateLimit       int // 초당 주문 제출 한도, 0 = 무제한

	// PaperPrices seeds the paper engine ("AAPL=190.5")
	PaperPrices []string

	Alpaca AlpacaConfig
}

// AlpacaConfig holds Alpaca REST API configuration
type AlpacaConfig struct {
	APIKey      string
	SecretKey   string
	TradingURL  string
	DataURL     string
	Paper       bool // 모의투자 여부
	FillTimeout time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	paper := getEnvAsBool("ALPACA_PAPER", true)
	tradingURL := "https://api.alpaca.markets"
	if paper {
		tradingURL = "https://paper-api.alpaca.markets"
	}

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Prefix:   getEnv("REDIS_PREFIX", "fwtrader"),
		},

		// Kafka
		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "fwtrader.cycles"),
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
		},

		Trader: TraderConfig{
			StrategyFile:  getEnv("STRATEGY_FILE", "config/strategy.yaml"),
			StateBackend:  getEnv("STATE_BACKEND", "file"),
			StatePath:     getEnv("STATE_PATH", "data/context.json"),
			RecordPath:    getEnv("RECORD_PATH", "data/cycles.jsonl"),
			CycleSchedule: getEnv("CYCLE_SCHEDULE", ""),
			InitialCash:   getEnvAsFloat("INITIAL_CASH", 100_000),
		},

		Engine: EngineConfig{
			Kind:            getEnv("ENGINE", "paper"),
			Timeout:         getEnvAsDuration("ENGINE_TIMEOUT", "10s"),
			UniverseTimeout: getEnvAsDuration("UNIVERSE_TIMEOUT", "30s"),
			RateLimit:       getEnvAsInt("ENGINE_RATE_LIMIT", 5),
			PaperPrices:     getEnvAsList("PAPER_PRICES"),
			Alpaca: AlpacaConfig{
				APIKey:      getEnv("ALPACA_API_KEY", ""),
				SecretKey:   getEnv("ALPACA_SECRET_KEY", ""),
				TradingURL:  getEnv("ALPACA_TRADING_URL", tradingURL),
				DataURL:     getEnv("ALPACA_DATA_URL", "https://data.alpaca.markets"),
				Paper:       paper,
				FillTimeout: getEnvAsDuration("ALPACA_FILL_TIMEOUT", "8s"),
			},
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Trader.StateBackend {
	case "file", "memory":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for STATE_BACKEND=postgres")
		}
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("REDIS_ENABLED must be true for STATE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("STATE_BACKEND must be one of: file, memory, postgres, redis")
	}

	switch c.Engine.Kind {
	case "paper":
	case "alpaca":
		if c.Engine.Alpaca.APIKey == "" || c.Engine.Alpaca.SecretKey == "" {
			return fmt.Errorf("ALPACA_API_KEY and ALPACA_SECRET_KEY are required for ENGINE=alpaca")
		}
	default:
		return fmt.Errorf("ENGINE must be one of: paper, alpaca")
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}

	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("ENGINE_TIMEOUT must be positive")
	}

	return nil
}

// loadEnvFile loads the first .env found; ENV_FILE overrides the search
// 이미 설정된 환경변수는 덮어쓰지 않음 (godotenv.Load 동작)
func loadEnvFile() {
	if path := os.Getenv("ENV_FILE"); path != "" {
		_ = godotenv.Load(path)
		return
	}

	paths := []string{".env"}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		paths = append(paths, filepath.Join(dir, ".env"), filepath.Join(dir, "..", ".env"))
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAs parses key with parse, falling back to def when unset or malformed
func getEnvAs[T any](key string, def T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func getEnvAsInt(key string, def int) int {
	return getEnvAs(key, def, strconv.Atoi)
}

func getEnvAsFloat(key string, def float64) float64 {
	return getEnvAs(key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func getEnvAsBool(key string, def bool) bool {
	return getEnvAs(key, def, strconv.ParseBool)
}

// getEnvAsDuration takes the default as a string so defaults read like env values ("30s")
func getEnvAsDuration(key string, def string) time.Duration {
	fallback, _ := time.ParseDuration(def)
	return getEnvAs(key, fallback, time.ParseDuration)
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
