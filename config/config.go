// Package config provides environment-based configuration for gn-proxy.
//
// Configuration is loaded from environment variables using Viper, with
// sensible defaults for development.
//
// # Environment Variables
//
//   - STORE: Resource store backend (gorm, redis, memory). Default: gorm
//   - DB_TYPE: Database type for the gorm store (sqlite, postgres, mysql). Default: sqlite
//   - DSN: Connection string for the gorm store. Default: gnproxy.db
//   - REDIS_ADDR: Redis address for the redis store. Default: localhost:6379
//   - BACKEND_TYPE: Database type for dataset queries. Default: mysql
//   - BACKEND_DSN: Connection string for dataset queries. Empty disables the backend.
//   - LOG_LEVEL: Logging level (debug, info, warn, error). Default: info
//   - PORT: HTTP server port. Default: 8080
//   - ADMIN_SECRET: HS256 secret signing admin tokens. Required for the admin API.
//   - ACTION_TIMEOUT: Handler deadline. Default: 30s
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Store         string        `mapstructure:"STORE"` // gorm, redis, memory
	DBType        string        `mapstructure:"DB_TYPE"`
	DSN           string        `mapstructure:"DSN"`
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	BackendType   string        `mapstructure:"BACKEND_TYPE"`
	BackendDSN    string        `mapstructure:"BACKEND_DSN"`
	LogLevel      string        `mapstructure:"LOG_LEVEL"`
	Port          int           `mapstructure:"PORT"`
	AdminSecret   string        `mapstructure:"ADMIN_SECRET"`
	ActionTimeout time.Duration `mapstructure:"ACTION_TIMEOUT"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("STORE", "gorm")
	viper.SetDefault("DB_TYPE", "sqlite")
	viper.SetDefault("DSN", "gnproxy.db")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("BACKEND_TYPE", "mysql")
	viper.SetDefault("BACKEND_DSN", "")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PORT", 8080)
	viper.SetDefault("ADMIN_SECRET", "")
	viper.SetDefault("ACTION_TIMEOUT", "30s")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
