// Package config loads wordgate's configuration by layering, in order of
// precedence: built-in defaults, an optional YAML file, WORDGATE_*
// environment variables, and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "WORDGATE_"

// Config holds all configuration for the application.
type Config struct {
	DBPath       string        `koanf:"db_path" validate:"required"`
	ListenAddr   string        `koanf:"listen_addr" validate:"required"`
	ReposDir     string        `koanf:"repos_dir" validate:"required"`
	SyncInterval time.Duration `koanf:"sync_interval" validate:"min=0"`
	LogLevel     string        `koanf:"log_level" validate:"oneof=debug info warn error"`
	Scheduler    Scheduler     `koanf:"scheduler"`
}

// Scheduler holds the memory-model scheduler knobs.
type Scheduler struct {
	DesiredRetention float64 `koanf:"desired_retention" validate:"gt=0,lte=1"`
	MaximumInterval  int     `koanf:"maximum_interval" validate:"gt=0"`
	DisableFuzzing   bool    `koanf:"disable_fuzzing"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:       "wordgate.db",
		ListenAddr:   ":8488",
		ReposDir:     "repos",
		SyncInterval: time.Hour,
		LogLevel:     "info",
		Scheduler: Scheduler{
			DesiredRetention: 0.9,
			MaximumInterval:  36500,
		},
	}
}

// Load builds the configuration. configFile may be empty; a missing file
// is tolerated so the default path works on a fresh install. flags may be
// nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("error reading flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// SlogLevel maps the configured level name onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
