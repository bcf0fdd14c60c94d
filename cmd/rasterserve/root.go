package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rasterq/rasterq/internal/config"
)

var (
	v      = viper.New()
	cfg    config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rasterserve",
	Short: "Serve and query tiled raster data through the actor scheduler",
}

// Execute runs the CLI, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default ./rasterserve.yaml)")
	rootCmd.PersistentFlags().String("cache-dir", "", "cache tile directory")
	rootCmd.PersistentFlags().String("cache-format", "", "cache format name reported by the backend (tiles are always written raw; webp tiles can be read)")
	rootCmd.PersistentFlags().Int("hot-cache-size", 0, "decoded cache tile arrays kept in the in-memory LRU")
	rootCmd.PersistentFlags().String("state-db-path", "", "sqlite path persisting cache tile state across restarts (empty disables persistence)")
	rootCmd.PersistentFlags().Int("io-workers", 0, "IO pool worker count")
	rootCmd.PersistentFlags().Int("resample-workers", 0, "resample pool worker count")
	rootCmd.PersistentFlags().Int("compute-workers", 0, "compute pool worker count")
	rootCmd.PersistentFlags().Int("merge-workers", 0, "merge pool worker count")
	rootCmd.PersistentFlags().Bool("compute-process-pool", false, "run compute hooks in subprocess workers")
	rootCmd.PersistentFlags().Int("max-queue-size", 0, "default per-query in-flight production tile limit")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	mustBind("cache_dir", "cache-dir")
	mustBind("cache_format", "cache-format")
	mustBind("hot_cache_size", "hot-cache-size")
	mustBind("state_db_path", "state-db-path")
	mustBind("io_workers", "io-workers")
	mustBind("resample_workers", "resample-workers")
	mustBind("compute_workers", "compute-workers")
	mustBind("merge_workers", "merge-workers")
	mustBind("compute_process_pool", "compute-process-pool")
	mustBind("max_queue_size", "max-queue-size")
	mustBind("log_level", "log-level")
}

func mustBind(key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("rasterserve: binding flag %q: %v", flag, err))
	}
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("rasterserve")
	}
	v.SetEnvPrefix("RASTERQ")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	loaded, err := config.Load(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rasterserve: loading config:", err)
		os.Exit(1)
	}
	cfg = loaded
	logger = cfg.Logger()
}
