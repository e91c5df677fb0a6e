// Package config loads runtime settings from the environment and an
// optional config file, with validation at startup.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config keeps runtime settings for the reminder daemon.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Database DatabaseConfig `mapstructure:"database"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Digest   DigestConfig   `mapstructure:"digest"`
	Log      LogConfig      `mapstructure:"log"`
}

// TelegramConfig configures the delivery channel.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`
	// SendTimeout bounds a single notification send, retries included,
	// so a stuck send cannot stall the dispatch loop.
	SendTimeout time.Duration `mapstructure:"send_timeout" validate:"required,gt=0"`
}

// DatabaseConfig configures the SQLite storage.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// DispatchConfig configures the reminder dispatch loop.
type DispatchConfig struct {
	// Interval between dispatch ticks. A policy choice, not a correctness
	// requirement: due semantics tolerate arbitrary dispatch delay.
	Interval   time.Duration `mapstructure:"interval" validate:"required,gt=0"`
	BatchLimit int           `mapstructure:"batch_limit" validate:"required,gt=0"`
	// MaxAttempts caps delivery retries per reminder; 0 retries forever.
	MaxAttempts int `mapstructure:"max_attempts" validate:"gte=0"`
	// HorizonDays bounds how far ahead occurrences are materialized when a
	// recurrence rule has no until date.
	HorizonDays int `mapstructure:"horizon_days" validate:"required,gt=0"`
}

// DigestConfig configures the optional daily agenda message.
type DigestConfig struct {
	// Time is the local "HH:MM" send time; empty disables the digest.
	Time string `mapstructure:"time"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=trace debug info warn error fatal"`
}

// Load reads configuration from reminderd.yaml (if present) and REMINDERD_*
// environment variables, environment taking precedence, then validates it.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.send_timeout", "5s")
	v.SetDefault("database.path", "planner.db")
	v.SetDefault("dispatch.interval", "30s")
	v.SetDefault("dispatch.batch_limit", 50)
	v.SetDefault("dispatch.max_attempts", 0)
	v.SetDefault("dispatch.horizon_days", 365)
	v.SetDefault("digest.time", "")
	v.SetDefault("log.level", "info")

	v.SetConfigName("reminderd")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("REMINDERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
