package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.MaxFileAge != 24*time.Hour {
		t.Errorf("MaxFileAge = %v, want 24h", cfg.MaxFileAge)
	}
	if cfg.MergeTolerance != 1e-3 {
		t.Errorf("MergeTolerance = %v, want 1e-3", cfg.MergeTolerance)
	}
	if cfg.RabbitMQExchange != "massbalance_topic" {
		t.Errorf("RabbitMQExchange = %q", cfg.RabbitMQExchange)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("WORKER_COUNT", "7")
	t.Setenv("MERGE_TOLERANCE", "0.05")
	t.Setenv("RETRY_DELAY", "2s")
	t.Setenv("DISABLE_QUESTDB", "false")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("SECTION_WORKERS", "not-a-number")

	cfg := LoadConfig()

	if cfg.WorkerCount != 7 {
		t.Errorf("WorkerCount = %d, want 7", cfg.WorkerCount)
	}
	if cfg.MergeTolerance != 0.05 {
		t.Errorf("MergeTolerance = %v, want 0.05", cfg.MergeTolerance)
	}
	if cfg.RetryDelay != 2*time.Second {
		t.Errorf("RetryDelay = %v, want 2s", cfg.RetryDelay)
	}
	if cfg.DisableQuestDB {
		t.Errorf("DisableQuestDB should be false")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.SectionWorkers != 8 {
		t.Errorf("invalid SECTION_WORKERS should fall back to 8, got %d", cfg.SectionWorkers)
	}
}
