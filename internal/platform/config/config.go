package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration. Values come from the
// environment so main stays lean.
type Server struct {
	Addr string

	// Storage backend selection. Redis wins over memory when RedisURL is set;
	// Postgres wins for envelopes when PostgresDSN is set.
	RedisURL    string
	PostgresDSN string

	Redis RedisConfig

	// Kafka audit sink. Empty Brokers disables the publisher and audit events
	// stay on the in-process store only.
	KafkaBrokers []string
	AuditTopic   string

	// Retention governs envelope expiry and the sweep cadence.
	Retention     time.Duration
	SweepInterval time.Duration
}

// RedisConfig carries go-redis tuning knobs.
type RedisConfig struct {
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRetention is how long an untouched envelope survives.
const DefaultRetention = 7 * 24 * time.Hour

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("INTAKE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	retention := DefaultRetention
	if raw := os.Getenv("INTAKE_RETENTION"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			retention = d
		}
	}

	sweep := time.Hour
	if raw := os.Getenv("INTAKE_SWEEP_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			sweep = d
		}
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	topic := os.Getenv("AUDIT_TOPIC")
	if topic == "" {
		topic = "intake.audit"
	}

	return Server{
		Addr:          addr,
		RedisURL:      os.Getenv("REDIS_URL"),
		PostgresDSN:   os.Getenv("DATABASE_URL"),
		Redis:         redisFromEnv(),
		KafkaBrokers:  brokers,
		AuditTopic:    topic,
		Retention:     retention,
		SweepInterval: sweep,
	}
}

func redisFromEnv() RedisConfig {
	cfg := RedisConfig{
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	if raw := os.Getenv("REDIS_POOL_SIZE"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.PoolSize = n
		}
	}
	return cfg
}
