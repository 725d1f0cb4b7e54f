// Package config loads chessponder's settings from defaults, an optional
// YAML file and CHESSPONDER_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hailam/chessponder/internal/engine"
	"github.com/hailam/chessponder/internal/obslog"
)

// Validation errors.
var (
	ErrHashSize = errors.New("config: hash size must be positive")
	ErrMaxDepth = errors.New("config: max depth must be positive")
	ErrLogLevel = errors.New("config: unknown log level")
	ErrClock    = errors.New("config: invalid clock")
)

type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Clock   ClockConfig   `yaml:"clock"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Storage StorageConfig `yaml:"storage"`
}

type EngineConfig struct {
	HashMB   int  `yaml:"hash_mb"`
	MaxDepth int  `yaml:"max_depth"`
	Ponder   bool `yaml:"ponder"`
}

// ClockConfig is the starting time control. MoveTimeSeconds, when set,
// gives every move a fixed time and overrides the rest.
type ClockConfig struct {
	BaseSeconds      int `yaml:"base_seconds"`
	IncrementSeconds int `yaml:"increment_seconds"`
	MovesToGo        int `yaml:"moves_to_go"`
	MoveTimeSeconds  int `yaml:"move_time_seconds"`
}

// EngineClock converts c for the engine's time manager. Both sides start
// with the same time.
func (c ClockConfig) EngineClock() engine.Clock {
	base := time.Duration(c.BaseSeconds) * time.Second
	inc := time.Duration(c.IncrementSeconds) * time.Second
	return engine.Clock{
		Remaining: [2]time.Duration{base, base},
		Increment: [2]time.Duration{inc, inc},
		MovesToGo: c.MovesToGo,
		MoveTime:  time.Duration(c.MoveTimeSeconds) * time.Second,
	}
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig locates the outcome database. An empty Dir uses the
// platform data directory.
type StorageConfig struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			HashMB:   64,
			MaxDepth: 64,
			Ponder:   true,
		},
		Clock: ClockConfig{
			BaseSeconds:      300,
			IncrementSeconds: 0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: obslog.FormatLegacy,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path, when path
// is not empty, and then with the environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("CHESSPONDER_HASH_MB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.HashMB = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHESSPONDER_MAX_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.MaxDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHESSPONDER_PONDER")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Engine.Ponder = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHESSPONDER_LOG_LEVEL")); v != "" {
		c.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESSPONDER_LOG_FORMAT")); v != "" {
		c.Log.Format = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESSPONDER_METRICS_ADDR")); v != "" {
		c.Metrics.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESSPONDER_DATA_DIR")); v != "" {
		c.Storage.Dir = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Engine.HashMB <= 0 {
		return fmt.Errorf("%w: %d", ErrHashSize, c.Engine.HashMB)
	}
	if c.Engine.MaxDepth <= 0 {
		return fmt.Errorf("%w: %d", ErrMaxDepth, c.Engine.MaxDepth)
	}
	if !obslog.ValidLevel(c.Log.Level) {
		return fmt.Errorf("%w: %q", ErrLogLevel, c.Log.Level)
	}
	clk := c.Clock
	if clk.BaseSeconds < 0 || clk.IncrementSeconds < 0 || clk.MovesToGo < 0 || clk.MoveTimeSeconds < 0 {
		return fmt.Errorf("%w: negative value", ErrClock)
	}
	if clk.BaseSeconds == 0 && clk.MoveTimeSeconds == 0 {
		return fmt.Errorf("%w: no base time or move time", ErrClock)
	}
	return nil
}

// Logger returns the obslog settings for c.
func (c *Config) Logger() obslog.Config {
	return obslog.Config{Level: c.Log.Level, Format: c.Log.Format, File: c.Log.File}
}
