package config

import (
	"os"
	"time"
)

// Config captures process-level configuration so main stays lean. Empty
// DatabaseURL selects the in-memory stores; empty RedisURL selects the
// in-process presence lock; empty KafkaBrokers disables the event stream.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  string
	KafkaTopic    string
	JWTSigningKey string
	QRBucket      string
	AWSRegion     string

	// PersistTimeout bounds every persistence call so a stalled store can
	// never hold a presence lock indefinitely.
	PersistTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Redis pool tuning shared by the lock client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:            getenv("GATEWARDEN_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:      getenv("KAFKA_TOPIC", "gatewarden.gate-events"),
		JWTSigningKey:   os.Getenv("JWT_SIGNING_KEY"),
		QRBucket:        os.Getenv("QR_BUCKET"),
		AWSRegion:       getenv("AWS_REGION", "us-east-1"),
		PersistTimeout:  getduration("PERSIST_TIMEOUT", 5*time.Second),
		ShutdownTimeout: getduration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if cfg.JWTSigningKey == "" {
		// Development fallback; must be overridden in production.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	return cfg
}

// Redis derives the lock client settings from the top-level config.
func (c Config) Redis() RedisConfig {
	return RedisConfig{
		URL:          c.RedisURL,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
