// Package config loads engine settings from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr      string
	MySQLDSN      string
	RedisAddr     string
	RedisPoolSize int

	WorkerCount int
	QueueSize   int

	// HoldTTL bounds how long an uncommitted reservation survives before
	// the sweep auto-releases it.
	HoldTTL       time.Duration
	SweepInterval time.Duration

	// PriceTolerance is the maximum absolute difference between a
	// client-quoted price and the recomputed one. Zero means exact match.
	PriceTolerance decimal.Decimal
}

func Load() Config {
	return Config{
		HTTPAddr:       getEnv("ENGINE_HTTP_ADDR", ":8080"),
		MySQLDSN:       getEnv("ENGINE_MYSQL_DSN", "root:root@tcp(localhost:3306)/travel?parseTime=true"),
		RedisAddr:      getEnv("ENGINE_REDIS_ADDR", "localhost:6379"),
		RedisPoolSize:  getEnvInt("ENGINE_REDIS_POOL_SIZE", 100),
		WorkerCount:    getEnvInt("ENGINE_WORKER_COUNT", 10),
		QueueSize:      getEnvInt("ENGINE_QUEUE_SIZE", 10000),
		HoldTTL:        getEnvDuration("ENGINE_HOLD_TTL", 10*time.Minute),
		SweepInterval:  getEnvDuration("ENGINE_SWEEP_INTERVAL", 30*time.Second),
		PriceTolerance: getEnvDecimal("ENGINE_PRICE_TOLERANCE", decimal.Zero),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvDecimal(key string, def decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return def
}
