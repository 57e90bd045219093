// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const EnvProduction = "production"

type Config struct {
	Port        string `validate:"required,numeric"`
	Environment string `validate:"required"`
	APIKey      string

	Search    SearchConfig
	Products  ProductsConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type SearchConfig struct {
	Host          string        `validate:"required"`
	Port          string        `validate:"required,numeric"`
	Path          string        `validate:"required,startswith=/"`
	Timeout       time.Duration `validate:"gt=0"`
	RetryAttempts int           `validate:"min=1"`
	RetryDelay    time.Duration `validate:"min=0"`
}

type ProductsConfig struct {
	URL     string        `validate:"required,url"`
	Timeout time.Duration `validate:"gt=0"`
}

type RedisConfig struct {
	URL string `validate:"required"`
	DB  int    `validate:"min=0"`
	TTL time.Duration
}

type KafkaConfig struct {
	Broker string
	Topic  string `validate:"required_with=Broker"`
}

type RateLimitConfig struct {
	PerSecond float64 `validate:"gt=0"`
	Burst     int     `validate:"min=1"`
}

type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
}

var validate = validator.New()

// IsProduction reports whether the service runs in production mode, which
// disables sample search results on total upstream failure.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}

// Load reads the given .env files (".env" when none are given) and then the
// process environment. Missing files are ignored; variables already set in the
// environment take precedence over file values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8085"),
		Environment: getEnv("APP_ENV", getEnv("NODE_ENV", "development")),
		APIKey:      os.Getenv("API_KEY"),
		Search: SearchConfig{
			Host:          getEnv("SEARCH_API_HOST", "192.168.66.194"),
			Port:          getEnv("SEARCH_API_PORT", "5040"),
			Path:          getEnv("SEARCH_API_PATH", "/apish"),
			Timeout:       getMillis("SEARCH_API_TIMEOUT_MS", 10000),
			RetryAttempts: getInt("SEARCH_RETRY_ATTEMPTS", 2),
			RetryDelay:    getMillis("SEARCH_RETRY_DELAY_MS", 1000),
		},
		Products: ProductsConfig{
			URL:     getEnv("PRODUCTS_API_URL", "https://api.example.com/products"),
			Timeout: getMillis("PRODUCTS_API_TIMEOUT_MS", 15000),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
			DB:  getInt("REDIS_DB", 0),
			TTL: time.Duration(getInt("CACHE_TTL", 600)) * time.Second,
		},
		Kafka: KafkaConfig{
			Broker: os.Getenv("KAFKA_BROKER"),
			Topic:  getEnv("KAFKA_SEARCH_TOPIC", "storefront.search.resolved"),
		},
		RateLimit: RateLimitConfig{
			PerSecond: getFloat("RATE_LIMIT_PER_SECOND", 10),
			Burst:     getInt("RATE_LIMIT_BURST", 20),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// AuthHeaders returns the headers sent on authenticated upstream calls.
func (c *Config) AuthHeaders() map[string]string {
	headers := map[string]string{"Content-Type": "application/json"}
	if c.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.APIKey
	}
	return headers
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getMillis(key string, def int) time.Duration {
	return time.Duration(getInt(key, def)) * time.Millisecond
}
