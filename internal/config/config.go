// Package config loads engine and CLI settings from defaults, an optional
// config file, and MEMKEEP_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/clog"
	"github.com/spf13/viper"
)

// Config holds all runtime settings.
type Config struct {
	DBPath    string `mapstructure:"db_path"`
	LogLevel  string `mapstructure:"log_level"`
	CacheSize int    `mapstructure:"cache_size"`

	Embedding struct {
		Provider string `mapstructure:"provider"`
		Model    string `mapstructure:"model"`
		URL      string `mapstructure:"url"`
		APIKey   string `mapstructure:"api_key"`
		Dims     int    `mapstructure:"dims"`
	} `mapstructure:"embedding"`
}

// Load builds the config. Precedence, highest first: environment variables
// (MEMKEEP_DB_PATH, MEMKEEP_EMBEDDING_PROVIDER, ...), the config file at
// path (default ~/.memkeep/config.yaml), then defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	home, _ := os.UserHomeDir()
	v.SetDefault("db_path", filepath.Join(home, ".memkeep", "memory.db"))
	v.SetDefault("log_level", "info")
	v.SetDefault("cache_size", 1024)
	v.SetDefault("embedding.provider", "")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.url", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.dims", 0)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(home, ".memkeep"))
	}

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// A missing default config file is fine; defaults and env apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("MEMKEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// NewLogger builds the console logger for the configured level.
func NewLogger(level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := clog.New(
		clog.WithWriter(w),
		clog.WithLevel(parseLevel(level)),
		clog.WithTimeFmt("15:04:05"),
		clog.WithSource(false),
		clog.WithAttrHook(clog.GoerrHook),
	)
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
