// Package config loads the engine's own configuration: where its
// environment lives on disk, how large the memory map and plan cache
// are, and how long a write waits for the lock before giving up. The
// file format is TOML; environment variables layered on top of it take
// precedence, matching the override-wins-over-file convention the
// teacher's own config.yaml + BEADS_* env var handling uses.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/graphdb/core/internal/graphdberr"
)

// Config is the engine's full startup configuration.
type Config struct {
	// DataDir is the directory the key-value environment is opened in.
	DataDir string `toml:"data_dir"`
	// MapSizeMB is the advisory map size handed to kv.Options.MapSize.
	MapSizeMB int64 `toml:"map_size_mb"`
	// LockTimeoutMS bounds how long opening the environment waits to
	// acquire the directory lock before failing with
	// graphdberr.KindLockTimeout.
	LockTimeoutMS int64 `toml:"lock_timeout_ms"`
	// PlanCacheMaxEntries is the plan cache's LRU entry-count bound.
	PlanCacheMaxEntries int `toml:"plan_cache_max_entries"`
	// PlanCacheMaxMemoryMB is the plan cache's total-size bound.
	PlanCacheMaxMemoryMB int64 `toml:"plan_cache_max_memory_mb"`
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `toml:"log_level"`
	// MetricsEnabled is loaded and printed by String; no package reads
	// it, and no metrics exporter is installed either way.
	MetricsEnabled bool `toml:"metrics_enabled"`
}

// envPrefix is the common prefix for every override environment
// variable, e.g. GRAPHDB_DATA_DIR overrides DataDir.
const envPrefix = "GRAPHDB"

// Default returns the configuration a brand-new environment starts
// with absent any config file.
func Default() Config {
	return Config{
		DataDir:              "./graphdb-data",
		MapSizeMB:            1024,
		LockTimeoutMS:        5000,
		PlanCacheMaxEntries:  256,
		PlanCacheMaxMemoryMB: 64,
		LogLevel:             "info",
		MetricsEnabled:       false,
	}
}

// Load reads path as TOML over Default()'s values, then applies any
// GRAPHDB_* environment variable overrides. A missing file is not an
// error — Load simply returns the defaults with env overrides applied,
// the same "absent file falls back to zero-ish value" behavior the
// teacher's LoadLocalConfig gives callers that probe for an optional
// config.yaml.
func Load(path string) (Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, graphdberr.Wrap(graphdberr.KindIo, "decode config file", err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, graphdberr.Wrap(graphdberr.KindIo, "stat config file", err)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides layers GRAPHDB_* environment variables on top of
// cfg using a scratch viper instance bound to each field's env var,
// mirroring the teacher's per-call viper.New() pattern (internal/
// labelmutex.ParseMutexGroups, cmd/bd/config.go) rather than reaching
// for the global viper singleton.
func applyEnvOverrides(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	bind := func(key string) {
		_ = v.BindEnv(key)
	}
	bind("data_dir")
	bind("map_size_mb")
	bind("lock_timeout_ms")
	bind("plan_cache_max_entries")
	bind("plan_cache_max_memory_mb")
	bind("log_level")
	bind("metrics_enabled")

	if s := v.GetString("data_dir"); s != "" {
		cfg.DataDir = s
	}
	if s := v.GetString("map_size_mb"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			cfg.MapSizeMB = n
		}
	}
	if s := v.GetString("lock_timeout_ms"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			cfg.LockTimeoutMS = n
		}
	}
	if s := v.GetString("plan_cache_max_entries"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			cfg.PlanCacheMaxEntries = n
		}
	}
	if s := v.GetString("plan_cache_max_memory_mb"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			cfg.PlanCacheMaxMemoryMB = n
		}
	}
	if s := v.GetString("log_level"); s != "" {
		cfg.LogLevel = s
	}
	if s := v.GetString("metrics_enabled"); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			cfg.MetricsEnabled = b
		}
	}
}

// LockTimeout returns LockTimeoutMS as a time.Duration.
func (c Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMS) * time.Millisecond
}

// MapSizeBytes returns MapSizeMB scaled to bytes.
func (c Config) MapSizeBytes() int64 {
	return c.MapSizeMB * 1024 * 1024
}

// PlanCacheMaxMemoryBytes returns PlanCacheMaxMemoryMB scaled to bytes.
func (c Config) PlanCacheMaxMemoryBytes() int64 {
	return c.PlanCacheMaxMemoryMB * 1024 * 1024
}

// Validate reports a descriptive error for any setting that can't be
// used to open an environment, so a malformed config file fails fast
// at startup rather than surfacing as a confusing kv.Open error.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return graphdberr.New(graphdberr.KindInvalidInput, "data_dir must not be empty")
	}
	if c.MapSizeMB <= 0 {
		return graphdberr.New(graphdberr.KindInvalidInput, "map_size_mb must be positive, got %d", c.MapSizeMB)
	}
	if c.PlanCacheMaxEntries <= 0 {
		return graphdberr.New(graphdberr.KindInvalidInput, "plan_cache_max_entries must be positive, got %d", c.PlanCacheMaxEntries)
	}
	if c.PlanCacheMaxMemoryMB <= 0 {
		return graphdberr.New(graphdberr.KindInvalidInput, "plan_cache_max_memory_mb must be positive, got %d", c.PlanCacheMaxMemoryMB)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return graphdberr.New(graphdberr.KindInvalidInput, "log_level must be one of debug/info/warn/error, got %q", c.LogLevel)
	}
	return nil
}

// String renders cfg for diagnostics as space-separated key=value pairs.
func (c Config) String() string {
	return fmt.Sprintf("data_dir=%s map_size_mb=%d lock_timeout_ms=%d plan_cache_max_entries=%d plan_cache_max_memory_mb=%d log_level=%s metrics_enabled=%t",
		c.DataDir, c.MapSizeMB, c.LockTimeoutMS, c.PlanCacheMaxEntries, c.PlanCacheMaxMemoryMB, c.LogLevel, c.MetricsEnabled)
}
