package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration (file + env overrides)
type Config struct {
	Server struct {
		Addr      string `mapstructure:"addr"`
		AdminAddr string `mapstructure:"admin_addr"`
		LogLevel  string `mapstructure:"log_level"`
	} `mapstructure:"server"`

	Postgres struct {
		Host         string `mapstructure:"host"`
		Port         int    `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		DBName       string `mapstructure:"db_name"`
		SSLMode      string `mapstructure:"ssl_mode"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"postgres"`

	Geo struct {
		DBPath          string `mapstructure:"db_path"`
		FallbackCountry string `mapstructure:"fallback_country"`
	} `mapstructure:"geo"`

	Listener struct {
		Channel          string `mapstructure:"channel"`
		ReconnectSeconds int    `mapstructure:"reconnect_seconds"`
		RefreshSeconds   int    `mapstructure:"refresh_seconds"`
	} `mapstructure:"listener"`

	Traffic struct {
		QueueSize   int `mapstructure:"queue_size"`
		RecentLimit int `mapstructure:"recent_limit"`
	} `mapstructure:"traffic"`
}

func Load() Config {
	v := viper.New()
	v.SetConfigName("application")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	_ = v.ReadInConfig() // optional; env can fully configure

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}
	validate(&cfg)
	return cfg
}

func validate(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":4001"
	}
	if c.Server.AdminAddr == "" {
		c.Server.AdminAddr = ":4002"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Postgres.MaxOpenConns == 0 {
		c.Postgres.MaxOpenConns = 10
	}
	if c.Postgres.MaxIdleConns == 0 {
		c.Postgres.MaxIdleConns = 10
	}
	if c.Geo.FallbackCountry == "" {
		c.Geo.FallbackCountry = "VN"
	}
	if c.Listener.Channel == "" {
		c.Listener.Channel = "cfg_data_change"
	}
	if c.Listener.ReconnectSeconds <= 0 {
		c.Listener.ReconnectSeconds = 5
	}
	if c.Listener.RefreshSeconds <= 0 {
		c.Listener.RefreshSeconds = 60
	}
	if c.Traffic.QueueSize <= 0 {
		c.Traffic.QueueSize = 1024
	}
	if c.Traffic.RecentLimit <= 0 || c.Traffic.RecentLimit > 2000 {
		c.Traffic.RecentLimit = 2000
	}
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.DBName,
		c.Postgres.SSLMode,
	)
}

func (c Config) Backoff() time.Duration {
	return time.Duration(c.Listener.ReconnectSeconds) * time.Second
}

func (c Config) RefreshEvery() time.Duration {
	return time.Duration(c.Listener.RefreshSeconds) * time.Second
}
