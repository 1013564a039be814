package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Transport selects which chat transport the workers send through.
const (
	TransportTelegram = "telegram"
	TransportWebhook  = "webhook"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; DATABASE_URL is always required, and
// the selected transport decides whether BOT_TOKEN or WEBHOOK_URL is too.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Transport
	Transport      string
	BotToken       string
	WebhookURL     string
	AttemptTimeout time.Duration

	// Dispatch pipeline
	Workers       int
	RateLimit     int // sends per second across the pool
	QueueCapacity int
	MaxAttempts   int

	// Retry backoff: delay k is min(base * 2^(k-1), max) plus jitter.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Background poller intervals
	RetryPollInterval     time.Duration
	SchedulerPollInterval time.Duration
	SweepInterval         time.Duration

	// Recovery thresholds
	LivenessTimeout   time.Duration // in_flight older than this is presumed orphaned
	StalePendingAfter time.Duration // pending older than this gets re-woken

	// Job store write retries before a worker fail-stops
	StoreRetryAttempts int
	StoreRetryDelay    time.Duration

	// Delivery-receipt cache (optional; disabled when RedisAddr is empty)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ReceiptTTL    time.Duration

	// Operators seeded into the whitelist alongside the operators table
	OperatorSeedIDs []string
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		Transport:      getEnv("TRANSPORT", TransportTelegram),
		BotToken:       os.Getenv("BOT_TOKEN"),
		WebhookURL:     os.Getenv("WEBHOOK_URL"),
		AttemptTimeout: getDuration("ATTEMPT_TIMEOUT", 10*time.Second),

		Workers:       getInt("WORKERS", 4),
		RateLimit:     getInt("RATE_LIMIT", 25),
		QueueCapacity: getInt("QUEUE_CAPACITY", 1024),
		MaxAttempts:   getInt("MAX_ATTEMPTS", 5),

		RetryBaseDelay: getDuration("RETRY_BASE_DELAY", time.Second),
		RetryMaxDelay:  getDuration("RETRY_MAX_DELAY", 30*time.Second),

		RetryPollInterval:     getDuration("RETRY_POLL_INTERVAL", 5*time.Second),
		SchedulerPollInterval: getDuration("SCHEDULER_POLL_INTERVAL", 5*time.Second),
		SweepInterval:         getDuration("SWEEP_INTERVAL", 30*time.Second),

		LivenessTimeout:   getDuration("LIVENESS_TIMEOUT", time.Minute),
		StalePendingAfter: getDuration("STALE_PENDING_AFTER", time.Minute),

		StoreRetryAttempts: getInt("STORE_RETRY_ATTEMPTS", 3),
		StoreRetryDelay:    getDuration("STORE_RETRY_DELAY", time.Second),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),
		ReceiptTTL:    getDuration("RECEIPT_TTL", 24*time.Hour),

		OperatorSeedIDs: getList("OPERATOR_SEED_IDS"),
	}

	switch cfg.Transport {
	case TransportTelegram:
		if cfg.BotToken == "" {
			return nil, fmt.Errorf("BOT_TOKEN is required for the telegram transport")
		}
	case TransportWebhook:
		if cfg.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required for the webhook transport")
		}
	default:
		return nil, fmt.Errorf("unknown TRANSPORT %q (want %s or %s)", cfg.Transport, TransportTelegram, TransportWebhook)
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// getList splits a comma-separated value, trimming whitespace and
// dropping empties, so "1, 2," parses to ["1" "2"].
func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
