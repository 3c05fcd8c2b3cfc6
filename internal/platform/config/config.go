// Package config loads service settings from configs/config.yaml with
// AGRI_-prefixed environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata" // interest.timezone must resolve in minimal containers

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Interest InterestConfig
}

type ServerConfig struct {
	Port            string
	Mode            string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	DSN          string
	MaxIdleConns int
	MaxOpenConns int
	AutoMigrate  bool
}

type InterestConfig struct {
	DefaultRate decimal.Decimal
	Location    *time.Location
}

// Load reads the file at path. A missing file is tolerated when every value
// comes from defaults or the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("AGRI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("interest.default_rate", "6.5")
	v.SetDefault("interest.timezone", "Asia/Ho_Chi_Minh")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	rate, err := decimal.NewFromString(v.GetString("interest.default_rate"))
	if err != nil {
		return nil, fmt.Errorf("interest.default_rate: %w", err)
	}
	if !rate.IsPositive() {
		return nil, fmt.Errorf("interest.default_rate must be positive, got %s", rate)
	}
	loc, err := time.LoadLocation(v.GetString("interest.timezone"))
	if err != nil {
		return nil, fmt.Errorf("interest.timezone: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("server.port"),
			Mode:            v.GetString("server.mode"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			DSN:          v.GetString("database.dsn"),
			MaxIdleConns: v.GetInt("database.max_idle_conns"),
			MaxOpenConns: v.GetInt("database.max_open_conns"),
			AutoMigrate:  v.GetBool("database.auto_migrate"),
		},
		Interest: InterestConfig{
			DefaultRate: rate,
			Location:    loc,
		},
	}
	if cfg.Database.DSN == "" {
		return nil, errors.New("database.dsn is required")
	}
	return cfg, nil
}
