// Package config provides configuration management for strev using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultChannelSize          = 64
	defaultMaxFileSize          = 4 * 1024 * 1024 * 1024  // 4GiB
	defaultAbsoluteMaxFileSize  = 16 * 1024 * 1024 * 1024 // 16GiB
	defaultAbsoluteMaxDuration  = 6 * time.Hour
	defaultMinFragmentSizeTags  = 2
	defaultPlaylistRefreshMin   = 1 * time.Second
	defaultPlaylistRefreshMax   = 15 * time.Second
	defaultFetcherConcurrency   = 4
	defaultFetchRetries         = 3
	defaultFetchBackoffBase     = 500 * time.Millisecond
	defaultShutdownGracePeriod  = 10 * time.Second
	defaultMemoryCacheMaxBytes  = 64 * 1024 * 1024 // 64MiB
	defaultFileCacheTTL         = 24 * time.Hour
	defaultFileCacheSweepPeriod = 1 * time.Hour
)

// Config holds all configuration for the application.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Writer   WriterConfig   `mapstructure:"writer"`
	HLS      HLSConfig      `mapstructure:"hls"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // trace, debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// PipelineConfig holds FLV repair/segmentation pipeline configuration.
// Field names follow the "Configuration surface" named by spec.md §6.
type PipelineConfig struct {
	// MaxFileSize is the output split threshold. Supports human-readable
	// values like "4GB", "512MiB", or raw byte counts.
	MaxFileSize ByteSize `mapstructure:"max_file_size"`
	// MaxDuration is the output split threshold by wall-clock duration; zero
	// disables duration-based splitting.
	MaxDuration Duration `mapstructure:"max_duration"`
	// ChannelSize is the buffer depth between pipeline stages.
	ChannelSize int `mapstructure:"channel_size"`
	// TimingRepairStrategy selects how out-of-order/discontinuous timestamps
	// are repaired: "strict", "relative", or "smooth".
	TimingRepairStrategy string `mapstructure:"timing_repair_strategy"`
	// ContinuityMode selects cross-segment timestamp continuity behavior:
	// "continuous" or "reset".
	ContinuityMode string `mapstructure:"continuity_mode"`
	// RequireKeyframeAtSplit forces split points onto GOP boundaries.
	RequireKeyframeAtSplit bool `mapstructure:"require_keyframe_at_split"`
	// MinFragmentSize is the tag-count threshold the defragment stage
	// buffers up to (or a keyframe, whichever comes first) before trusting a
	// new stream start enough to flush it downstream.
	MinFragmentSize int `mapstructure:"min_fragment_size"`
	// AllowSynthHeader permits synthesizing a minimal FLV header when the
	// source stream starts mid-tag-stream (no header tag observed).
	AllowSynthHeader bool `mapstructure:"allow_synth_header"`
	// AbsoluteMaxFileSize is the backstop behind MaxFileSize: if
	// require_keyframe_at_split holds a GOP open long enough that the
	// current file's size passes this higher ceiling before a keyframe
	// ever arrives to cut at, the limit stage aborts the run rather than
	// let the file grow without bound. Must be >= MaxFileSize to have any
	// effect; zero disables the byte half of the check.
	AbsoluteMaxFileSize ByteSize `mapstructure:"absolute_max_file_size"`
	// AbsoluteMaxDuration is AbsoluteMaxFileSize's duration counterpart.
	AbsoluteMaxDuration Duration `mapstructure:"absolute_max_duration"`
}

// WriterConfig holds FLV/HLS output writer configuration.
type WriterConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	// NameTemplate is expanded per-file using %Y %m %d %H %M %S %i %t %u %%
	// placeholders (see internal/flvwriter).
	NameTemplate string `mapstructure:"name_template"`
}

// HLSConfig holds HLS downloading/coordination configuration.
type HLSConfig struct {
	// PlaylistRefreshMin/Max bound the adaptive polling interval.
	PlaylistRefreshMin Duration `mapstructure:"playlist_refresh_min"`
	PlaylistRefreshMax Duration `mapstructure:"playlist_refresh_max"`
	// FetcherConcurrency is the size of the bounded segment-fetch worker pool.
	FetcherConcurrency int `mapstructure:"fetcher_concurrency"`
	// FetchRetries is the maximum retry attempts per segment fetch.
	FetchRetries int `mapstructure:"fetch_retries"`
	// FetchBackoffBase is the base delay for exponential retry backoff.
	FetchBackoffBase Duration `mapstructure:"fetch_backoff_base"`
	// ShutdownGracePeriod bounds how long the coordinator waits for
	// in-flight fetches to drain on cancellation.
	ShutdownGracePeriod Duration `mapstructure:"shutdown_grace_period"`
	// MaxBandwidth caps master-playlist variant selection; zero is
	// unconstrained (the first-listed variant wins).
	MaxBandwidth int `mapstructure:"max_bandwidth"`
}

// CacheConfig holds the content-addressed cache configuration (spec 4.L).
type CacheConfig struct {
	// MemoryMaxBytes is the cost-based eviction budget for the in-memory
	// provider (decrypted segment / key cache).
	MemoryMaxBytes ByteSize `mapstructure:"memory_max_bytes"`
	// FileDir is the base directory for the file-backed provider; empty
	// disables it.
	FileDir string `mapstructure:"file_dir"`
	// FileTTL is the expiry for file-cached entries.
	FileTTL Duration `mapstructure:"file_ttl"`
	// FileSweepPeriod is the interval between expired-entry sweeps.
	FileSweepPeriod Duration `mapstructure:"file_sweep_period"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with STREV_ and use underscores for nesting.
// Example: STREV_PIPELINE_MAX_FILE_SIZE=4GiB.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/strev")
		v.AddConfigPath("$HOME/.strev")
	}

	v.SetEnvPrefix("STREV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Pipeline defaults
	v.SetDefault("pipeline.max_file_size", int64(defaultMaxFileSize))
	v.SetDefault("pipeline.max_duration", time.Duration(0))
	v.SetDefault("pipeline.channel_size", defaultChannelSize)
	v.SetDefault("pipeline.timing_repair_strategy", "relative")
	v.SetDefault("pipeline.continuity_mode", "continuous")
	v.SetDefault("pipeline.require_keyframe_at_split", true)
	v.SetDefault("pipeline.min_fragment_size", defaultMinFragmentSizeTags)
	v.SetDefault("pipeline.allow_synth_header", false)
	v.SetDefault("pipeline.absolute_max_file_size", int64(defaultAbsoluteMaxFileSize))
	v.SetDefault("pipeline.absolute_max_duration", defaultAbsoluteMaxDuration)

	// Writer defaults
	v.SetDefault("writer.output_dir", "./output")
	v.SetDefault("writer.name_template", "%Y%m%d_%H%M%S_%i")

	// HLS defaults
	v.SetDefault("hls.playlist_refresh_min", defaultPlaylistRefreshMin)
	v.SetDefault("hls.playlist_refresh_max", defaultPlaylistRefreshMax)
	v.SetDefault("hls.fetcher_concurrency", defaultFetcherConcurrency)
	v.SetDefault("hls.fetch_retries", defaultFetchRetries)
	v.SetDefault("hls.fetch_backoff_base", defaultFetchBackoffBase)
	v.SetDefault("hls.shutdown_grace_period", defaultShutdownGracePeriod)
	v.SetDefault("hls.max_bandwidth", 0)

	// Cache defaults
	v.SetDefault("cache.memory_max_bytes", int64(defaultMemoryCacheMaxBytes))
	v.SetDefault("cache.file_dir", "")
	v.SetDefault("cache.file_ttl", defaultFileCacheTTL)
	v.SetDefault("cache.file_sweep_period", defaultFileCacheSweepPeriod)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Pipeline.MaxFileSize < 0 {
		return fmt.Errorf("pipeline.max_file_size must not be negative")
	}
	if c.Pipeline.ChannelSize < 1 {
		return fmt.Errorf("pipeline.channel_size must be at least 1")
	}
	if c.Pipeline.MinFragmentSize < 0 {
		return fmt.Errorf("pipeline.min_fragment_size must not be negative")
	}
	if c.Pipeline.AbsoluteMaxFileSize < 0 {
		return fmt.Errorf("pipeline.absolute_max_file_size must not be negative")
	}
	if c.Pipeline.AbsoluteMaxFileSize > 0 && c.Pipeline.MaxFileSize > 0 && c.Pipeline.AbsoluteMaxFileSize < c.Pipeline.MaxFileSize {
		return fmt.Errorf("pipeline.absolute_max_file_size must be >= pipeline.max_file_size")
	}
	validStrategies := map[string]bool{"strict": true, "relative": true, "smooth": true}
	if !validStrategies[c.Pipeline.TimingRepairStrategy] {
		return fmt.Errorf("pipeline.timing_repair_strategy must be one of: strict, relative, smooth")
	}
	validContinuity := map[string]bool{"continuous": true, "reset": true}
	if !validContinuity[c.Pipeline.ContinuityMode] {
		return fmt.Errorf("pipeline.continuity_mode must be one of: continuous, reset")
	}

	if c.Writer.OutputDir == "" {
		return fmt.Errorf("writer.output_dir is required")
	}
	if c.Writer.NameTemplate == "" {
		return fmt.Errorf("writer.name_template is required")
	}

	if c.HLS.PlaylistRefreshMin <= 0 {
		return fmt.Errorf("hls.playlist_refresh_min must be positive")
	}
	if c.HLS.PlaylistRefreshMax < c.HLS.PlaylistRefreshMin {
		return fmt.Errorf("hls.playlist_refresh_max must be >= hls.playlist_refresh_min")
	}
	if c.HLS.FetcherConcurrency < 1 {
		return fmt.Errorf("hls.fetcher_concurrency must be at least 1")
	}
	if c.HLS.FetchRetries < 0 {
		return fmt.Errorf("hls.fetch_retries must not be negative")
	}

	if c.Cache.MemoryMaxBytes < 0 {
		return fmt.Errorf("cache.memory_max_bytes must not be negative")
	}

	return nil
}

// OutputPath returns the full path to a named output file within OutputDir.
func (c *WriterConfig) OutputPath(name string) string {
	return fmt.Sprintf("%s/%s", c.OutputDir, name)
}
