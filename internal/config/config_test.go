package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoadNilViperReturnsDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load(nil): %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadOverridesFromViper(t *testing.T) {
	v := viper.New()
	v.Set("cache_dir", "/tmp/rasterq-cache")
	v.Set("io_workers", 8)
	v.Set("max_queue_size", 10)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheDir != "/tmp/rasterq-cache" {
		t.Fatalf("expected overridden cache dir, got %q", cfg.CacheDir)
	}
	if cfg.IOWorkers != 8 {
		t.Fatalf("expected overridden io_workers, got %d", cfg.IOWorkers)
	}
	if cfg.MaxQueueSize != 10 {
		t.Fatalf("expected overridden max_queue_size, got %d", cfg.MaxQueueSize)
	}
	if cfg.MergeWorkers != Defaults().MergeWorkers {
		t.Fatalf("expected untouched key to keep its default, got %d", cfg.MergeWorkers)
	}
}

func TestLoggerFallsBackToInfoOnBadLevel(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "not-a-level"
	log := cfg.Logger()
	if log.GetLevel().String() != "info" {
		t.Fatalf("expected info fallback, got %s", log.GetLevel())
	}
}
