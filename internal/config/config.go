package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Queue    QueueConfig
	Archive  ArchiveConfig
	Notify   NotifyConfig
	SMTP     SMTPConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type QueueConfig struct {
	EvictionTimeoutSeconds int            `mapstructure:"eviction_timeout_seconds"`
	PriorityWeights        map[string]int `mapstructure:"priority_weights"`
}

func (c QueueConfig) EvictionTimeout() time.Duration {
	return time.Duration(c.EvictionTimeoutSeconds) * time.Second
}

type ArchiveConfig struct {
	SigningKey               string `mapstructure:"signing_key"`
	DualStoreRoot            string `mapstructure:"dual_store_root"`
	ListMaxPage              int    `mapstructure:"list_max_page"`
	ReconcileIntervalMinutes int    `mapstructure:"reconcile_interval_minutes"`
}

func (c ArchiveConfig) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalMinutes) * time.Minute
}

type NotifyConfig struct {
	LeadWindowMinutes int `mapstructure:"lead_window_minutes"`
}

func (c NotifyConfig) LeadWindow() time.Duration {
	return time.Duration(c.LeadWindowMinutes) * time.Minute
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	// Environment names from the deployment surface.
	viper.BindEnv("archive.signing_key", "SIGNING_KEY")
	viper.BindEnv("archive.dual_store_root", "DUAL_STORE_ROOT")
	viper.BindEnv("archive.list_max_page", "LIST_MAX_PAGE")
	viper.BindEnv("queue.eviction_timeout_seconds", "QUEUE_EVICTION_TIMEOUT")
	viper.BindEnv("notify.lead_window_minutes", "NOTIFY_LEAD_WINDOW_MINUTES")

	viper.SetDefault("queue.eviction_timeout_seconds", 1800)
	viper.SetDefault("archive.dual_store_root", "dual_store")
	viper.SetDefault("archive.list_max_page", 200)
	viper.SetDefault("archive.reconcile_interval_minutes", 10)
	viper.SetDefault("notify.lead_window_minutes", 60)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}
