package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sternrassler/tutti-client/pkg/client"
	"github.com/Sternrassler/tutti-client/pkg/history"
	"github.com/Sternrassler/tutti-client/pkg/logging"
	"github.com/Sternrassler/tutti-client/pkg/pagination"
)

// Config captures the proxy configuration loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Tutti   TuttiConfig   `mapstructure:"tutti"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// TuttiConfig configures the marketplace client.
type TuttiConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	MaxPages           int    `mapstructure:"max_pages"`
	PageTimeoutSeconds int    `mapstructure:"page_timeout_seconds"`
	HTTPTimeoutSeconds int    `mapstructure:"http_timeout_seconds"`
}

// RedisConfig configures the optional search history.
type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Addr         string `mapstructure:"addr"`
	DB           int    `mapstructure:"db"`
	HistoryLimit int    `mapstructure:"history_limit"`
}

// LoggingConfig selects the zerolog level and format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// LoadConfig builds a Config from an optional file plus TUTTI_* environment variables.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TUTTI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("tutti.base_url", client.DefaultBaseURL)
	v.SetDefault("tutti.max_pages", 0)
	v.SetDefault("tutti.page_timeout_seconds", int(pagination.DefaultTimeout/time.Second))
	v.SetDefault("tutti.http_timeout_seconds", 30)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.history_limit", history.DefaultConfig().Limit)
	v.SetDefault("logging.level", string(logging.LevelInfo))
	v.SetDefault("logging.pretty", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535")
	}
	u, err := url.Parse(c.Tutti.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("tutti.base_url must be an absolute http(s) url")
	}
	if c.Tutti.MaxPages < 0 {
		return fmt.Errorf("tutti.max_pages must be >= 0")
	}
	if c.Tutti.PageTimeoutSeconds <= 0 {
		return fmt.Errorf("tutti.page_timeout_seconds must be > 0")
	}
	if c.Tutti.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("tutti.http_timeout_seconds must be > 0")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Redis.HistoryLimit <= 0 {
		return fmt.Errorf("redis.history_limit must be > 0")
	}
	return nil
}

// Pagination returns the default batch limits for search requests.
func (c Config) Pagination() pagination.Config {
	return pagination.Config{
		MaxPages: c.Tutti.MaxPages,
		Timeout:  time.Duration(c.Tutti.PageTimeoutSeconds) * time.Second,
	}
}

// ClientConfig maps the tutti section onto client.Config.
func (c Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig()
	cfg.BaseURL = c.Tutti.BaseURL
	cfg.HTTPTimeout = time.Duration(c.Tutti.HTTPTimeoutSeconds) * time.Second
	return cfg
}
