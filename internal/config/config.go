package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bher20/utilityrates/internal/alerting"
	"github.com/bher20/utilityrates/internal/openei"
)

// EnvPrefix prefixes every environment override, e.g.
// UTILITYRATES_OPENEI_API_KEY or UTILITYRATES_DATABASE_DRIVER.
const EnvPrefix = "UTILITYRATES"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	OpenEI   OpenEIConfig   `mapstructure:"openei"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Log      LogConfig      `mapstructure:"log"`
	// Alert configures the webhook notified when refresh runs fail.
	Alert alerting.Config `mapstructure:"alert"`
}

type ServerConfig struct {
	Port        int  `mapstructure:"port"`
	RequireAuth bool `mapstructure:"require_auth"`
}

type OpenEIConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	APIKey             string        `mapstructure:"api_key"`
	Version            string        `mapstructure:"version"`
	StartDate          string        `mapstructure:"start_date"`
	Format             string        `mapstructure:"format"`
	Timeout            time.Duration `mapstructure:"timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	// Fake answers every lookup from the canned fake service.
	Fake bool `mapstructure:"fake"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type CacheConfig struct {
	// Backend is one of "none", "file" or "redis".
	Backend string        `mapstructure:"backend"`
	Dir     string        `mapstructure:"dir"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WorkerConfig struct {
	// Interval is integer seconds or a standard cron expression.
	Interval string `mapstructure:"interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"server.port":                 8000,
	"server.require_auth":         false,
	"openei.base_url":             openei.DefaultBaseURL,
	"openei.api_key":              "",
	"openei.version":              openei.DefaultVersion,
	"openei.start_date":           openei.DefaultStartDate,
	"openei.format":               openei.DefaultFormat,
	"openei.timeout":              openei.DefaultTimeout,
	"openei.insecure_skip_verify": false,
	"openei.fake":                 false,
	"database.driver":             "memory",
	"database.dsn":                "",
	"database.auto_migrate":       false,
	"cache.backend":               "none",
	"cache.dir":                   "",
	"cache.ttl":                   time.Hour,
	"cache.redis.addr":            "localhost:6379",
	"cache.redis.password":        "",
	"cache.redis.db":              0,
	"worker.interval":             "3600",
	"log.level":                   "info",
	"log.format":                  "json",
	"alert.webhook_url":           "",
	"alert.webhook_type":          "",
	"alert.min_failures":          1,
	"alert.timeout":               10 * time.Second,
}

// Load reads configuration from path (or ./config.yaml when path is empty)
// and from UTILITYRATES_* environment variables. A missing config file is
// not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that cannot work.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "", "none", "redis":
	case "file":
		if c.Cache.Dir == "" {
			return errors.New("config: cache.dir is required for the file cache backend")
		}
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Alert.WebhookType {
	case "", "slack", "discord", "generic":
	default:
		return fmt.Errorf("config: unknown alert.webhook_type %q", c.Alert.WebhookType)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	return nil
}

// OpenEISettings converts the openei section to client defaults.
func (c *Config) OpenEISettings() openei.Settings {
	return openei.Settings{
		BaseURL:   c.OpenEI.BaseURL,
		APIKey:    c.OpenEI.APIKey,
		Version:   c.OpenEI.Version,
		StartDate: c.OpenEI.StartDate,
		Format:    c.OpenEI.Format,
	}
}
