// Package config loads arbiter's YAML configuration and applies
// environment variable overrides, following the same load/default/override
// /validate sequence the rest of the example pack uses for its own config.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"arbiter/internal/pipeline"
)

// Config holds all application configuration.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Feed     FeedConfig     `yaml:"feed"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PipelineConfig mirrors the producer/writer/searcher tuning knobs.
type PipelineConfig struct {
	HopCap          int           `yaml:"hop_cap"`
	MaxUpdates      int           `yaml:"max_updates"`
	ChannelCapacity int           `yaml:"channel_capacity"`
	SearchInterval  time.Duration `yaml:"search_interval"`
	CoalesceWindow  time.Duration `yaml:"coalesce_window"`
	MaxCoalesce     int           `yaml:"max_coalesce"`
	RateJitter      float64       `yaml:"rate_jitter"`
	MinRateBound    float64       `yaml:"min_rate_bound"`
	MaxRateBound    float64       `yaml:"max_rate_bound"`
	DatasetPath     string        `yaml:"dataset_path"`
}

// UnmarshalYAML lets search_interval/coalesce_window be written as duration
// strings ("250ms") instead of raw nanosecond integers.
func (p *PipelineConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw struct {
		HopCap          int     `yaml:"hop_cap"`
		MaxUpdates      int     `yaml:"max_updates"`
		ChannelCapacity int     `yaml:"channel_capacity"`
		SearchInterval  string  `yaml:"search_interval"`
		CoalesceWindow  string  `yaml:"coalesce_window"`
		MaxCoalesce     int     `yaml:"max_coalesce"`
		RateJitter      float64 `yaml:"rate_jitter"`
		MinRateBound    float64 `yaml:"min_rate_bound"`
		MaxRateBound    float64 `yaml:"max_rate_bound"`
		DatasetPath     string  `yaml:"dataset_path"`
	}
	raw.HopCap = p.HopCap
	raw.MaxUpdates = p.MaxUpdates
	raw.ChannelCapacity = p.ChannelCapacity
	raw.SearchInterval = p.SearchInterval.String()
	raw.CoalesceWindow = p.CoalesceWindow.String()
	raw.MaxCoalesce = p.MaxCoalesce
	raw.RateJitter = p.RateJitter
	raw.MinRateBound = p.MinRateBound
	raw.MaxRateBound = p.MaxRateBound
	raw.DatasetPath = p.DatasetPath

	if err := unmarshal(&raw); err != nil {
		return err
	}

	searchInterval, err := time.ParseDuration(raw.SearchInterval)
	if err != nil {
		return fmt.Errorf("pipeline.search_interval: %w", err)
	}
	coalesceWindow, err := time.ParseDuration(raw.CoalesceWindow)
	if err != nil {
		return fmt.Errorf("pipeline.coalesce_window: %w", err)
	}

	p.HopCap = raw.HopCap
	p.MaxUpdates = raw.MaxUpdates
	p.ChannelCapacity = raw.ChannelCapacity
	p.SearchInterval = searchInterval
	p.CoalesceWindow = coalesceWindow
	p.MaxCoalesce = raw.MaxCoalesce
	p.RateJitter = raw.RateJitter
	p.MinRateBound = raw.MinRateBound
	p.MaxRateBound = raw.MaxRateBound
	p.DatasetPath = raw.DatasetPath
	return nil
}

// FeedConfig controls the optional live websocket ingestion path.
type FeedConfig struct {
	Enabled bool              `yaml:"enabled"`
	WSURL   string            `yaml:"ws_url"`
	Pools   []FeedPoolMapping `yaml:"pools"`
}

// FeedPoolMapping binds a pool address to the graph edge it backs.
type FeedPoolMapping struct {
	Address              string `yaml:"address"`
	EdgeIndex            int    `yaml:"edge_index"`
	ReserveOutIsReserve1 bool   `yaml:"reserve_out_is_reserve1"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.setDefaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if len(data) > 0 {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for all configuration options.
func (c *Config) setDefaults() {
	c.Pipeline = PipelineConfig{
		HopCap:          6,
		MaxUpdates:      256,
		ChannelCapacity: 64,
		SearchInterval:  250 * time.Millisecond,
		CoalesceWindow:  5 * time.Millisecond,
		MaxCoalesce:     16,
		RateJitter:      0.02,
		MinRateBound:    1e-9,
		MaxRateBound:    1e9,
		DatasetPath:     "datasets/dataset.json",
	}
	c.Feed = FeedConfig{
		Enabled: false,
	}
	c.Metrics = MetricsConfig{
		Enabled: true,
		Port:    9090,
		Path:    "/metrics",
	}
	c.Logging = LoggingConfig{
		Level:  "info",
		Format: "json",
	}
}

// applyEnvOverrides applies environment variable overrides to configuration.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PIPELINE_HOP_CAP"); v != "" {
		var hopCap int
		if _, err := fmt.Sscanf(v, "%d", &hopCap); err == nil && hopCap >= 0 {
			c.Pipeline.HopCap = hopCap
		}
	}
	if v := os.Getenv("PIPELINE_MAX_UPDATES"); v != "" {
		var maxUpdates int
		if _, err := fmt.Sscanf(v, "%d", &maxUpdates); err == nil && maxUpdates >= 0 {
			c.Pipeline.MaxUpdates = maxUpdates
		}
	}
	if v := os.Getenv("PIPELINE_DATASET_PATH"); v != "" {
		c.Pipeline.DatasetPath = v
	}

	if v := os.Getenv("FEED_ENABLED"); v != "" {
		c.Feed.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("FEED_WS_URL"); v != "" {
		c.Feed.WSURL = v
	}

	if v := os.Getenv("METRICS_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			c.Metrics.Port = port
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// validate checks that all required configuration values are present and
// valid.
func (c *Config) validate() error {
	if c.Pipeline.HopCap < 0 {
		return fmt.Errorf("pipeline.hop_cap must not be negative")
	}
	if c.Pipeline.MaxUpdates < 0 {
		return fmt.Errorf("pipeline.max_updates must not be negative")
	}
	if c.Pipeline.ChannelCapacity <= 0 {
		return fmt.Errorf("pipeline.channel_capacity must be positive")
	}
	if c.Pipeline.MaxCoalesce <= 0 {
		return fmt.Errorf("pipeline.max_coalesce must be positive")
	}
	if c.Pipeline.SearchInterval <= 0 {
		return fmt.Errorf("pipeline.search_interval must be positive")
	}
	if c.Pipeline.MinRateBound <= 0 || c.Pipeline.MaxRateBound <= c.Pipeline.MinRateBound {
		return fmt.Errorf("pipeline.min_rate_bound/max_rate_bound must form a positive range")
	}
	if c.Pipeline.DatasetPath == "" {
		return fmt.Errorf("pipeline.dataset_path is required")
	}
	if c.Feed.Enabled && c.Feed.WSURL == "" {
		return fmt.Errorf("feed.ws_url is required when feed.enabled is true")
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be a valid port number")
	}
	return nil
}

// ToPipelineConfig converts the loaded YAML configuration into the shape
// pipeline.Run expects.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		HopCap:          c.Pipeline.HopCap,
		MaxUpdates:      c.Pipeline.MaxUpdates,
		ChannelCapacity: c.Pipeline.ChannelCapacity,
		SearchInterval:  c.Pipeline.SearchInterval,
		CoalesceWindow:  c.Pipeline.CoalesceWindow,
		MaxCoalesce:     c.Pipeline.MaxCoalesce,
		RateJitter:      c.Pipeline.RateJitter,
		MinRateBound:    c.Pipeline.MinRateBound,
		MaxRateBound:    c.Pipeline.MaxRateBound,
	}
}
