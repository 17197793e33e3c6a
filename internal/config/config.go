package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Sampling modes for the collector loop
const (
	ModeRollout = "rollout"
	ModeUniform = "uniform"
)

// Config holds all collector configuration
type Config struct {
	// Buffer
	Capacity      int `mapstructure:"capacity"`
	NumEnvs       int `mapstructure:"num_envs"`
	HistoryLength int `mapstructure:"history_length"`

	// Collection
	Steps      int `mapstructure:"steps"`
	Iterations int `mapstructure:"iterations"`

	// Sampling
	Mode             string `mapstructure:"mode"`
	RolloutLength    int    `mapstructure:"rollout_length"`
	BatchSize        int    `mapstructure:"batch_size"`
	ExperienceReplay int    `mapstructure:"experience_replay"`
	Seed             int64  `mapstructure:"seed"` // 0 seeds from the clock

	// Logging
	LogLevel string `mapstructure:"log_level"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		Capacity:         1024,
		NumEnvs:          4,
		HistoryLength:    1,
		Steps:            128,
		Iterations:       10,
		Mode:             ModeRollout,
		RolloutLength:    64,
		BatchSize:        32,
		ExperienceReplay: 4,
		LogLevel:         "info",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive")
	}
	if c.NumEnvs <= 0 {
		return fmt.Errorf("num_envs must be positive")
	}
	if c.HistoryLength <= 0 {
		return fmt.Errorf("history_length must be positive")
	}
	if c.Steps <= 0 {
		return fmt.Errorf("steps must be positive")
	}
	if c.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	switch c.Mode {
	case ModeRollout:
		if c.RolloutLength <= 0 {
			return fmt.Errorf("rollout_length must be positive")
		}
		if c.RolloutLength+c.HistoryLength > c.Capacity {
			return fmt.Errorf("rollout_length %d with history_length %d does not fit capacity %d",
				c.RolloutLength, c.HistoryLength, c.Capacity)
		}
		if c.ExperienceReplay <= 0 {
			return fmt.Errorf("experience_replay must be positive")
		}
	case ModeUniform:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeRollout, ModeUniform, c.Mode)
	}
	return nil
}

// flag name -> config key
var flagKeys = map[string]string{
	"capacity":          "capacity",
	"num-envs":          "num_envs",
	"history-length":    "history_length",
	"steps":             "steps",
	"iterations":        "iterations",
	"mode":              "mode",
	"rollout-length":    "rollout_length",
	"batch-size":        "batch_size",
	"experience-replay": "experience_replay",
	"seed":              "seed",
	"log-level":         "log_level",
}

// RegisterFlags adds one flag per config field, defaulting to cfg
func RegisterFlags(flags *pflag.FlagSet, cfg *Config) {
	// Buffer settings
	flags.Int("capacity", cfg.Capacity, "Timesteps retained per environment")
	flags.Int("num-envs", cfg.NumEnvs, "Number of parallel environments")
	flags.Int("history-length", cfg.HistoryLength, "Frames stacked per observation")

	// Collection settings
	flags.Int("steps", cfg.Steps, "Environment steps per iteration")
	flags.Int("iterations", cfg.Iterations, "Collect/sample rounds to run")

	// Sampling settings
	flags.String("mode", cfg.Mode, "Sampling mode (rollout, uniform)")
	flags.Int("rollout-length", cfg.RolloutLength, "Timesteps per sampled rollout")
	flags.Int("batch-size", cfg.BatchSize, "Rows per minibatch or uniform batch")
	flags.Int("experience-replay", cfg.ExperienceReplay, "Passes over each sampled rollout")
	flags.Int64("seed", cfg.Seed, "Sampling seed (0 for time based)")

	// Logging
	flags.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
}

// Load resolves the configuration from defaults, an optional config file,
// a .env file, COLLECTOR_* environment variables and flags, in increasing
// order of precedence.
func Load(v *viper.Viper, flags *pflag.FlagSet, configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	def := Default()
	v.SetDefault("capacity", def.Capacity)
	v.SetDefault("num_envs", def.NumEnvs)
	v.SetDefault("history_length", def.HistoryLength)
	v.SetDefault("steps", def.Steps)
	v.SetDefault("iterations", def.Iterations)
	v.SetDefault("mode", def.Mode)
	v.SetDefault("rollout_length", def.RolloutLength)
	v.SetDefault("batch_size", def.BatchSize)
	v.SetDefault("experience_replay", def.ExperienceReplay)
	v.SetDefault("seed", def.Seed)
	v.SetDefault("log_level", def.LogLevel)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	// Bind environment variables, e.g. COLLECTOR_NUM_ENVS
	v.SetEnvPrefix("COLLECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
