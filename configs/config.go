package config

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var loadEnv sync.Once

func Config(key string) string {
	loadEnv.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: .env file not found, reading from system environment variables")
		}
	})

	return os.Getenv(key)
}

type Settings struct {
	DatabaseURL        string
	Port               string
	JWTSecret          string
	RedisAddr          string
	StatsCacheTTL      time.Duration
	FeeGenerationCron  string
	OverdueSweepCron   string
	FeeDefaultDueDay   int
	PaymentMaxAttempts int
	JobConcurrency     int
	SnowflakeNode      int64
	RecordTransactions bool
}

// Load reads the settings, falling back to defaults for anything unset or
// unparsable.
func Load() Settings {
	return Settings{
		DatabaseURL:        Config("DATABASE_URL"),
		Port:               stringOr("PORT", "8080"),
		JWTSecret:          Config("JWT_SECRET"),
		RedisAddr:          Config("REDIS_ADDR"),
		StatsCacheTTL:      durationOr("STATS_CACHE_TTL", 60*time.Second),
		FeeGenerationCron:  stringOr("FEE_GENERATION_CRON", "0 2 * * *"),
		OverdueSweepCron:   stringOr("OVERDUE_SWEEP_CRON", "30 2 * * *"),
		FeeDefaultDueDay:   intOr("FEE_DEFAULT_DUE_DAY", 10),
		PaymentMaxAttempts: intOr("PAYMENT_MAX_ATTEMPTS", 3),
		JobConcurrency:     intOr("JOB_CONCURRENCY", 4),
		SnowflakeNode:      int64(intOr("SNOWFLAKE_NODE", 1)),
		RecordTransactions: boolOr("RECORD_TRANSACTIONS", true),
	}
}

func stringOr(key, fallback string) string {
	if v := Config(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	v := Config(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not a number, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func boolOr(key string, fallback bool) bool {
	v := Config(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not a boolean, using %t", key, v, fallback)
		return fallback
	}
	return b
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := Config(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not a duration, using %s", key, v, fallback)
		return fallback
	}
	return d
}
