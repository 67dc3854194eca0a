package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds server configuration values. SuperAdminID is the single
// identity allowed to run the super-admin events; it is injected at
// startup and not editable at runtime.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path" validate:"required"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	SuperAdminID      int64         `mapstructure:"super_admin_id" yaml:"super_admin_id" validate:"required"`
	GlobalRoom        string        `mapstructure:"global_room" yaml:"global_room" validate:"required"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret" validate:"required,min=16"`
	BotToken          string        `mapstructure:"bot_token" yaml:"bot_token"`
}

// Default returns configuration with reasonable starter defaults.
// SuperAdminID and JWTSecret have no safe default and must be provided.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "tgchat.db",
		LogLevel:          "info",
		GlobalRoom:        "general",
	}
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}
