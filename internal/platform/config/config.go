// Package config assembles runtime configuration from the environment so
// main stays lean. Empty postgres/redis/kafka settings select the in-memory
// and logging implementations (dev mode).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "dadcircles/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr     string
	Env      string
	LogLevel string

	// AdminToken guards the admin surface; empty disables the guard, which
	// only makes sense in dev.
	AdminToken string

	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Matching MatchingConfig
}

// PostgresConfig holds connection settings for the primary store.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds connection settings for the run-lease store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds producer settings for introduction dispatch.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// MatchingConfig holds the operational knobs of the matching pipeline.
// Per-stage gap ceilings are code-level configuration on the matching
// package; only deploy-time knobs live here.
type MatchingConfig struct {
	MinGroupSize    int
	MaxGroupSize    int
	Concurrency     int
	DispatchTimeout time.Duration
	LeaseTTL        time.Duration
	Interval        time.Duration // 0 disables the scheduler
}

// FromEnv builds a Server config from DADCIRCLES_* environment variables.
func FromEnv() Server {
	return Server{
		Addr:       envString("DADCIRCLES_ADDR", ":8080"),
		Env:        envString("DADCIRCLES_ENV", "dev"),
		LogLevel:   envString("DADCIRCLES_LOG_LEVEL", "info"),
		AdminToken: os.Getenv("DADCIRCLES_ADMIN_TOKEN"),
		Postgres: PostgresConfig{
			URL:             os.Getenv("DADCIRCLES_POSTGRES_URL"),
			MaxOpenConns:    envInt("DADCIRCLES_POSTGRES_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    envInt("DADCIRCLES_POSTGRES_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: envDuration("DADCIRCLES_POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("DADCIRCLES_REDIS_URL"),
			PoolSize:     envInt("DADCIRCLES_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("DADCIRCLES_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("DADCIRCLES_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("DADCIRCLES_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("DADCIRCLES_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("DADCIRCLES_KAFKA_BROKERS"),
			Topic:   envString("DADCIRCLES_KAFKA_TOPIC", "dadcircles.introductions"),
		},
		Matching: MatchingConfig{
			MinGroupSize:    envInt("DADCIRCLES_MIN_GROUP_SIZE", 4),
			MaxGroupSize:    envInt("DADCIRCLES_MAX_GROUP_SIZE", 6),
			Concurrency:     envInt("DADCIRCLES_MATCH_CONCURRENCY", 4),
			DispatchTimeout: envDuration("DADCIRCLES_DISPATCH_TIMEOUT", 5*time.Second),
			LeaseTTL:        envDuration("DADCIRCLES_LEASE_TTL", 5*time.Minute),
			Interval:        envDuration("DADCIRCLES_MATCH_INTERVAL", 0),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// envList parses a comma-separated value, trimming and deduplicating entries.
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	return platformstrings.DedupeAndTrim(strings.Split(v, ","))
}
