// Package config loads and validates application configuration from
// defaults, an optional config.yaml, and CHAT_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Addr          string `mapstructure:"addr"            validate:"required"`
	DatabaseURL   string `mapstructure:"database_url"    validate:"required"`
	RedisAddr     string `mapstructure:"redis_addr"      validate:"required"`
	JWTSecret     string `mapstructure:"jwt_secret"      validate:"required,min=16"`
	PublicBaseURL string `mapstructure:"public_base_url" validate:"required,url"`
	BlobDir       string `mapstructure:"blob_dir"        validate:"required"`
	LogLevel      string `mapstructure:"log_level"       validate:"oneof=debug info warn error"`
	LogFormat     string `mapstructure:"log_format"      validate:"oneof=text json"`
}

// Load reads configuration in three layers: defaults, config.yaml (optional),
// then CHAT_* environment variables. The merged result is validated before
// being returned.
func Load() (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("CHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine, defaults plus env cover everything.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("addr", ":8080")
	viper.SetDefault("redis_addr", "localhost:6379")
	viper.SetDefault("public_base_url", "http://localhost:8080")
	viper.SetDefault("blob_dir", "data/blobs")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
}
