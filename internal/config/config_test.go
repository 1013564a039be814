package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so a developer's shell
// cannot leak into the assertions. t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"DATABASE_URL", "HTTP_PORT", "READ_TIMEOUT", "WRITE_TIMEOUT", "SHUTDOWN_TIMEOUT",
		"DB_MAX_CONNS", "DB_MIN_CONNS",
		"TRANSPORT", "BOT_TOKEN", "WEBHOOK_URL", "ATTEMPT_TIMEOUT",
		"WORKERS", "RATE_LIMIT", "QUEUE_CAPACITY", "MAX_ATTEMPTS",
		"RETRY_BASE_DELAY", "RETRY_MAX_DELAY",
		"RETRY_POLL_INTERVAL", "SCHEDULER_POLL_INTERVAL", "SWEEP_INTERVAL",
		"LIVENESS_TIMEOUT", "STALE_PENDING_AFTER",
		"STORE_RETRY_ATTEMPTS", "STORE_RETRY_DELAY",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "RECEIPT_TTL",
		"OPERATOR_SEED_IDS",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/dispatch?sslmode=disable")
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.HTTPPort != "8080" {
		t.Fatalf("unexpected HTTPPort default: %q", cfg.HTTPPort)
	}
	if cfg.Transport != TransportTelegram {
		t.Fatalf("unexpected Transport default: %q", cfg.Transport)
	}
	if cfg.Workers != 4 {
		t.Fatalf("unexpected Workers default: %d", cfg.Workers)
	}
	if cfg.MaxAttempts != 5 {
		t.Fatalf("unexpected MaxAttempts default: %d", cfg.MaxAttempts)
	}
	if cfg.QueueCapacity != 1024 {
		t.Fatalf("unexpected QueueCapacity default: %d", cfg.QueueCapacity)
	}
	if cfg.RetryBaseDelay != time.Second || cfg.RetryMaxDelay != 30*time.Second {
		t.Fatalf("unexpected backoff defaults: base=%v max=%v", cfg.RetryBaseDelay, cfg.RetryMaxDelay)
	}
	if cfg.LivenessTimeout != time.Minute {
		t.Fatalf("unexpected LivenessTimeout default: %v", cfg.LivenessTimeout)
	}
	if cfg.RedisAddr != "" {
		t.Fatalf("expected receipt cache disabled by default, got addr %q", cfg.RedisAddr)
	}
	if len(cfg.OperatorSeedIDs) != 0 {
		t.Fatalf("expected no seeded operators, got %v", cfg.OperatorSeedIDs)
	}
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected error mentioning DATABASE_URL, got: %v", err)
	}
}

func TestLoad_TelegramRequiresToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/dispatch?sslmode=disable")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "BOT_TOKEN") {
		t.Fatalf("expected error mentioning BOT_TOKEN, got: %v", err)
	}
}

func TestLoad_WebhookTransport(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/dispatch?sslmode=disable")
	t.Setenv("TRANSPORT", "webhook")

	// No URL yet: must fail.
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "WEBHOOK_URL") {
		t.Fatalf("expected error mentioning WEBHOOK_URL, got: %v", err)
	}

	t.Setenv("WEBHOOK_URL", "https://example.com/send")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Transport != TransportWebhook {
		t.Fatalf("unexpected Transport: %q", cfg.Transport)
	}
	// BOT_TOKEN is not required for the webhook transport.
	if cfg.BotToken != "" {
		t.Fatalf("expected empty BotToken, got %q", cfg.BotToken)
	}
}

func TestLoad_UnknownTransport(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/dispatch?sslmode=disable")
	t.Setenv("TRANSPORT", "smoke-signals")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "smoke-signals") {
		t.Fatalf("expected error naming the bad transport, got: %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/dispatch?sslmode=disable")
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("WORKERS", "8")
	t.Setenv("RETRY_BASE_DELAY", "2s")
	t.Setenv("RETRY_MAX_DELAY", "1m")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("OPERATOR_SEED_IDS", "100, 200,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Workers != 8 {
		t.Fatalf("unexpected Workers: %d", cfg.Workers)
	}
	if cfg.RetryBaseDelay != 2*time.Second || cfg.RetryMaxDelay != time.Minute {
		t.Fatalf("unexpected backoff: base=%v max=%v", cfg.RetryBaseDelay, cfg.RetryMaxDelay)
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 3 {
		t.Fatalf("unexpected redis config: addr=%q db=%d", cfg.RedisAddr, cfg.RedisDB)
	}
	if len(cfg.OperatorSeedIDs) != 2 || cfg.OperatorSeedIDs[0] != "100" || cfg.OperatorSeedIDs[1] != "200" {
		t.Fatalf("unexpected OperatorSeedIDs: %v", cfg.OperatorSeedIDs)
	}
}

func TestLoad_UnparsableValuesFallBackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/dispatch?sslmode=disable")
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("WORKERS", "a-lot")
	t.Setenv("SWEEP_INTERVAL", "soonish")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Workers != 4 {
		t.Fatalf("expected Workers default 4, got %d", cfg.Workers)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Fatalf("expected SweepInterval default 30s, got %v", cfg.SweepInterval)
	}
}
