package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Log      LogConfig
	Database DatabaseConfig
	Session  SessionConfig
	Workers  WorkersConfig
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
	File   string `mapstructure:"file"`   // optional rotated log file
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type SessionConfig struct {
	// MaxVisits bounds how often a session may be routed to one question.
	MaxVisits int `mapstructure:"max_visits"`
}

type WorkersConfig struct {
	Count int `mapstructure:"count"`
	Queue int `mapstructure:"queue"`
}

// LoadConfig reads config.yaml from path when present and overlays
// JUSTASKING_* environment variables. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("JUSTASKING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("session.max_visits", 25)
	v.SetDefault("workers.count", 4)
	v.SetDefault("workers.queue", 64)

	v.BindEnv("database.dsn", "JUSTASKING_DATABASE_DSN", "DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Workers.Count < 1 {
		cfg.Workers.Count = 1
	}
	if cfg.Workers.Queue < cfg.Workers.Count {
		cfg.Workers.Queue = cfg.Workers.Count
	}

	return &cfg, nil
}
