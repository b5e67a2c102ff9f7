package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	Issuer      string `mapstructure:"ISSUER"`
	Storage     string `mapstructure:"STORAGE"` // "mongo" or "memory"
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"` // empty disables the Redis token cache
	RedisPrefix string `mapstructure:"REDIS_PREFIX"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	AuthCodeTTLSec     int `mapstructure:"AUTH_CODE_TTL_SEC"`
	AccessTokenTTLSec  int `mapstructure:"ACCESS_TOKEN_TTL_SEC"`
	RefreshTokenTTLSec int `mapstructure:"REFRESH_TOKEN_TTL_SEC"`

	DirectoryServerURL string `mapstructure:"DIRECTORY_SERVER_URL"` // empty disables the directory backend

	SeedDemoData bool `mapstructure:"SEED_DEMO_DATA"`
}

// AuthCodeTTL returns the configured authorization code lifetime.
func (c *ServerConfig) AuthCodeTTL() time.Duration {
	return time.Duration(c.AuthCodeTTLSec) * time.Second
}

// AccessTokenTTL returns the configured access token lifetime.
func (c *ServerConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLSec) * time.Second
}

// RefreshTokenTTL returns the configured refresh token lifetime.
func (c *ServerConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLSec) * time.Second
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/gatehouse/")
	v.AddConfigPath("$HOME/.gatehouse")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("ISSUER", "http://localhost:8080")
	v.SetDefault("STORAGE", "mongo")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/gatehouse_dev")
	v.SetDefault("MONGO_DB_NAME", "gatehouse_dev")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PREFIX", "gatehouse")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "gatehouse-server")
	v.SetDefault("AUTH_CODE_TTL_SEC", 600)
	v.SetDefault("ACCESS_TOKEN_TTL_SEC", 300)
	v.SetDefault("REFRESH_TOKEN_TTL_SEC", 900)
	v.SetDefault("DIRECTORY_SERVER_URL", "")
	v.SetDefault("SEED_DEMO_DATA", false)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
