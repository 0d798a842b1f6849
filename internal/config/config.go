package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Addr        string        `mapstructure:"addr"`
	LogDir      string        `mapstructure:"log_dir"`
	Debug       bool          `mapstructure:"debug"`
	DatabaseURL string        `mapstructure:"database_url"` // empty = in-memory store
	Redis       RedisConfig   `mapstructure:"redis"`
	Bridge      BridgeConfig  `mapstructure:"bridge"`
	Monitor     MonitorConfig `mapstructure:"monitor"`
	Notify      NotifyConfig  `mapstructure:"notify"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"` // empty = no result cache
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type BridgeConfig struct {
	URL   string `mapstructure:"url"` // empty = syntax-only DB checks
	Token string `mapstructure:"token"`
}

type MonitorConfig struct {
	Retention   int `mapstructure:"retention"`
	Concurrency int `mapstructure:"concurrency"`
}

type NotifyConfig struct {
	SlackWebhook string `mapstructure:"slack_webhook"`
}

// Load reads config.yaml (optional) with PULSEMON_* environment overrides.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("configs")

	v.SetEnvPrefix("pulsemon")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("debug", false)
	v.SetDefault("database_url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("bridge.url", "")
	v.SetDefault("bridge.token", "")
	v.SetDefault("monitor.retention", 1000)
	v.SetDefault("monitor.concurrency", 8)
	v.SetDefault("notify.slack_webhook", "")
}

func validate(cfg *Config) error {
	if cfg.Addr == "" {
		return errors.New("addr is required")
	}
	if cfg.Monitor.Retention < 1 {
		return fmt.Errorf("monitor.retention must be >= 1, got %d", cfg.Monitor.Retention)
	}
	if cfg.Monitor.Concurrency < 1 {
		return fmt.Errorf("monitor.concurrency must be >= 1, got %d", cfg.Monitor.Concurrency)
	}
	if cfg.Bridge.URL != "" && cfg.Bridge.Token == "" {
		return errors.New("bridge.token is required when bridge.url is set")
	}
	return nil
}
