// Package config builds runtime configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr          string
	JWTSigningKey string

	DatabaseURL string
	RedisURL    string

	KafkaBrokers    []string
	KafkaAuditTopic string

	// ConfigCacheTTL bounds how long provider configs are served from cache.
	ConfigCacheTTL time.Duration
	// ReplayRetention is how long processed webhook deliveries are remembered.
	ReplayRetention time.Duration

	// WebhookRatePerSecond / WebhookBurst throttle webhook deliveries per
	// provider endpoint.
	WebhookRatePerSecond float64
	WebhookBurst         int
}

// RedisConfig tunes the optional Redis connection.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables, with development
// defaults for everything but secrets.
func FromEnv() Config {
	cfg := Config{
		Addr:                 envOr("IDVGATE_ADDR", ":8080"),
		JWTSigningKey:        os.Getenv("IDVGATE_JWT_SIGNING_KEY"),
		DatabaseURL:          os.Getenv("IDVGATE_DATABASE_URL"),
		RedisURL:             os.Getenv("IDVGATE_REDIS_URL"),
		KafkaAuditTopic:      envOr("IDVGATE_KAFKA_AUDIT_TOPIC", "idv.audit"),
		ConfigCacheTTL:       envDuration("IDVGATE_CONFIG_CACHE_TTL", 30*time.Second),
		ReplayRetention:      envDuration("IDVGATE_REPLAY_RETENTION", 24*time.Hour),
		WebhookRatePerSecond: envFloat("IDVGATE_WEBHOOK_RATE", 20),
		WebhookBurst:         envInt("IDVGATE_WEBHOOK_BURST", 40),
	}
	if brokers := os.Getenv("IDVGATE_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

// Redis returns the Redis connection settings.
func (c Config) Redis() RedisConfig {
	return RedisConfig{
		URL:          c.RedisURL,
		PoolSize:     envInt("IDVGATE_REDIS_POOL_SIZE", 10),
		MinIdleConns: envInt("IDVGATE_REDIS_MIN_IDLE", 2),
		DialTimeout:  envDuration("IDVGATE_REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  envDuration("IDVGATE_REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: envDuration("IDVGATE_REDIS_WRITE_TIMEOUT", 3*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
