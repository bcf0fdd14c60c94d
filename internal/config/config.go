// Package config loads the scheduler's tunables — pool sizes, cache
// location, per-query backpressure, logging — from a viper-backed layered
// source (flags, env, config file), the pattern
// MeKo-Christian-WaterColorMap/internal/cmd uses for its own CLI, adapted
// into a standalone package so cmd/rasterserve can keep main() thin.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config is every tunable a Dataset needs at startup (spec.md §5's
// resource model: pool sizes and the per-raster max_queue_size default).
type Config struct {
	CacheDir     string `mapstructure:"cache_dir"`
	CacheFormat  string `mapstructure:"cache_format"`
	HotCacheSize int    `mapstructure:"hot_cache_size"`

	// StateDBPath, when non-empty, persists cache-tile state to a sqlite
	// database at this path so a restart can resume from `ready` tiles
	// without rebuilding (internal/cache.Store.OpenPersistence). Empty
	// (the default) keeps tile state in memory only, for one process
	// lifetime.
	StateDBPath string `mapstructure:"state_db_path"`

	IOWorkers       int `mapstructure:"io_workers"`
	ResampleWorkers int `mapstructure:"resample_workers"`
	ComputeWorkers  int `mapstructure:"compute_workers"`
	MergeWorkers    int `mapstructure:"merge_workers"`

	// ComputeProcessPool routes the computation pool's jobs to subprocess
	// workers instead of goroutines (spec.md §9 "user compute hooks may
	// need their own address space"), at the cost of gob-marshalling every
	// job across stdin/stdout (internal/poolroom.ProcessPool).
	ComputeProcessPool bool `mapstructure:"compute_process_pool"`

	MaxQueueSize int    `mapstructure:"max_queue_size"`
	LogLevel     string `mapstructure:"log_level"`
}

// Defaults returns the Config a fresh viper instance is seeded with before
// flags, env vars or a config file are layered on top.
func Defaults() Config {
	return Config{
		CacheDir:        "./cache",
		CacheFormat:     "raw",
		HotCacheSize:    256,
		IOWorkers:       4,
		ResampleWorkers: 4,
		ComputeWorkers:  4,
		MergeWorkers:    2,
		MaxQueueSize:    5,
		LogLevel:        "info",
	}
}

// Load builds a Config from v, falling back to Defaults for any key v
// doesn't have a value for. Pass a *viper.Viper already populated by
// cobra flag binding and/or ReadInConfig; a nil v yields the defaults
// verbatim.
func Load(v *viper.Viper) (Config, error) {
	cfg := Defaults()
	if v == nil {
		return cfg, nil
	}

	setDefaults(v, cfg)
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshalling: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("cache_dir", cfg.CacheDir)
	v.SetDefault("cache_format", cfg.CacheFormat)
	v.SetDefault("hot_cache_size", cfg.HotCacheSize)
	v.SetDefault("state_db_path", cfg.StateDBPath)
	v.SetDefault("io_workers", cfg.IOWorkers)
	v.SetDefault("resample_workers", cfg.ResampleWorkers)
	v.SetDefault("compute_workers", cfg.ComputeWorkers)
	v.SetDefault("merge_workers", cfg.MergeWorkers)
	v.SetDefault("compute_process_pool", cfg.ComputeProcessPool)
	v.SetDefault("max_queue_size", cfg.MaxQueueSize)
	v.SetDefault("log_level", cfg.LogLevel)
}

// Logger builds the root zerolog.Logger for cfg.LogLevel, writing
// human-readable lines to stderr. An unrecognized level falls back to
// info rather than failing startup over a typo'd flag.
func (c Config) Logger() zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
