package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// SSOT: every environment variable is read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External market-data provider
	Provider ProviderConfig

	// Reconciliation
	Reconcile ReconcileConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// ProviderConfig holds market-data provider configuration.
type ProviderConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration // per-call timeout, single-digit seconds
	CallsPerMinute int           // shared external-call budget
	MaxRetries     int
}

// ReconcileConfig holds drift-detection parameters.
type ReconcileConfig struct {
	Tolerance        float64 // absolute prev-close tolerance
	MoveThresholdPct float64 // pre-market move that forces verification
	BatchSize        int
	Concurrency      int
	BatchDelay       time.Duration
	IssueCap         int
	MaxCandidates    int // default candidate cap when a run passes no limit
}

// Load reads configuration from environment variables.
// SSOT: this is the only function that calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Provider: ProviderConfig{
			BaseURL:        getEnv("PROVIDER_BASE_URL", "https://api.polygon.io"),
			APIKey:         getEnv("PROVIDER_API_KEY", ""),
			RequestTimeout: getEnvAsDuration("PROVIDER_TIMEOUT", "8s"),
			CallsPerMinute: getEnvAsInt("PROVIDER_CALLS_PER_MINUTE", 280),
			MaxRetries:     getEnvAsInt("PROVIDER_MAX_RETRIES", 3),
		},

		Reconcile: ReconcileConfig{
			Tolerance:        getEnvAsFloat("RECONCILE_TOLERANCE", 0.01),
			MoveThresholdPct: getEnvAsFloat("RECONCILE_MOVE_THRESHOLD_PCT", 1.0),
			BatchSize:        getEnvAsInt("RECONCILE_BATCH_SIZE", 20),
			Concurrency:      getEnvAsInt("RECONCILE_CONCURRENCY", 5),
			BatchDelay:       getEnvAsDuration("RECONCILE_BATCH_DELAY", "2s"),
			IssueCap:         getEnvAsInt("RECONCILE_ISSUE_CAP", 50),
			MaxCandidates:    getEnvAsInt("RECONCILE_MAX_CANDIDATES", 500),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Reconcile.Tolerance <= 0 {
		return fmt.Errorf("RECONCILE_TOLERANCE must be positive")
	}

	if c.Provider.CallsPerMinute <= 0 {
		return fmt.Errorf("PROVIDER_CALLS_PER_MINUTE must be positive")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
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

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
