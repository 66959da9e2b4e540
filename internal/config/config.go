// Package config loads process-wide settings: the store location, the
// import-source registry, and logging. Loaded once at startup and read-only
// thereafter; everything downstream receives values by injection.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"ecometrics/internal/model"
)

// Config holds every configurable value for a metrics run.
type Config struct {
	// Persistence
	DBPath string `mapstructure:"db_path"` // path to the SQLite file

	// ConfigDir is the root import-source paths resolve against.
	ConfigDir string `mapstructure:"config_dir"`

	// Imports maps a table name to its flat-file fallback.
	Imports map[string]model.ImportSource `mapstructure:"imports"`

	LogLevel string `mapstructure:"log_level"` // debug|info|warn|error
}

// Load reads configuration from (in decreasing priority):
//  1. environment variables (e.g. DB_PATH, LOG_LEVEL)
//  2. a yaml file (<configDir>/config.yaml) if it exists.
//
// It returns a fully populated *Config or an error.
func Load(configDir string) (*Config, error) {
	v := viper.New()

	v.SetDefault("db_path", "./data/ecometrics.db")
	v.SetDefault("config_dir", configDir)
	v.SetDefault("log_level", "info")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigName("config")
	v.AddConfigPath(configDir)
	_ = v.ReadInConfig() // the file is optional

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}

	for name, src := range cfg.Imports {
		switch strings.ToLower(src.Type) {
		case model.ImportTypeCSV, model.ImportTypeVector:
		default:
			return nil, fmt.Errorf("import source %q: unsupported type %q", name, src.Type)
		}
		if src.Path == "" {
			return nil, fmt.Errorf("import source %q: path must not be empty", name)
		}
	}

	return &cfg, nil
}
