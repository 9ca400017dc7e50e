package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultSourceURL = "https://daily-petrol-diesel-lpg-cng-fuel-prices-in-india.p.rapidapi.com/v1/fuel-prices/history/india/kerala/palakkad"
	DefaultAPIHost   = "daily-petrol-diesel-lpg-cng-fuel-prices-in-india.p.rapidapi.com"
)

// Config is the runtime configuration shared by every fuelkl command.
type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Alert    AlertConfig    `mapstructure:"alert"`
}

// FetchConfig configures the upstream price API call.
type FetchConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	APIHost       string        `mapstructure:"api_host"`
	SourceURL     string        `mapstructure:"source_url"`
	Output        string        `mapstructure:"output"`
	Timeout       time.Duration `mapstructure:"timeout"`
	SkipTLSVerify bool          `mapstructure:"skip_tls_verify"`
}

// ServerConfig configures `fuelkl serve`.
type ServerConfig struct {
	Port      string `mapstructure:"port"`
	WebRoot   string `mapstructure:"web_root"`
	OriginURL string `mapstructure:"origin_url"`
	// RefreshToken is accepted as an admin bearer token without a stored row.
	RefreshToken string `mapstructure:"refresh_token"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// WorkerConfig configures the scheduled fetch worker.
type WorkerConfig struct {
	// Schedule is either an integer number of seconds or a standard cron expression.
	Schedule string `mapstructure:"schedule"`
}

// AlertConfig configures failure notifications from the worker.
type AlertConfig struct {
	WebhookURL     string `mapstructure:"webhook_url"`
	WebhookType    string `mapstructure:"webhook_type"`
	SendgridAPIKey string `mapstructure:"sendgrid_api_key"`
	EmailTo        string `mapstructure:"email_to"`
	EmailFrom      string `mapstructure:"email_from"`
}

var envBindings = map[string]string{
	"log_level":              "FUELKL_LOG_LEVEL",
	"fetch.api_key":          "RAPIDAPI_KEY",
	"fetch.api_host":         "RAPIDAPI_HOST",
	"fetch.source_url":       "SOURCE_URL",
	"fetch.output":           "FUELKL_OUTPUT",
	"fetch.timeout":          "FUELKL_HTTP_TIMEOUT",
	"fetch.skip_tls_verify":  "FUELKL_SKIP_TLS_VERIFY",
	"server.port":            "PORT",
	"server.web_root":        "FUELKL_WEB_ROOT",
	"server.origin_url":      "FUELKL_ORIGIN_URL",
	"server.refresh_token":   "FUELKL_REFRESH_TOKEN",
	"database.driver":        "FUELKL_DB_DRIVER",
	"database.dsn":           "FUELKL_DB_DSN",
	"database.auto_migrate":  "FUELKL_AUTO_MIGRATE",
	"worker.schedule":        "FUELKL_SCHEDULE",
	"alert.webhook_url":      "ALERT_WEBHOOK_URL",
	"alert.webhook_type":     "ALERT_WEBHOOK_TYPE",
	"alert.sendgrid_api_key": "SENDGRID_API_KEY",
	"alert.email_to":         "ALERT_EMAIL_TO",
	"alert.email_from":       "ALERT_EMAIL_FROM",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("fetch.api_host", DefaultAPIHost)
	v.SetDefault("fetch.source_url", DefaultSourceURL)
	v.SetDefault("fetch.output", "prices.json")
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.skip_tls_verify", false)
	v.SetDefault("server.port", "8000")
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("worker.schedule", "0 */6 * * *")
	v.SetDefault("alert.email_from", "fuelkl@localhost")
}

// New returns a viper instance with defaults and environment bindings applied.
// Callers may bind command line flags onto it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		// BindEnv only fails when no key is given.
		_ = v.BindEnv(key, env)
	}
	return v
}

// Load reads the optional config file and decodes the merged configuration.
// An empty path searches for fuelkl.{yaml,json,toml} in the working directory.
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = New()
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fuelkl")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Fetch.SourceURL == "" {
		cfg.Fetch.SourceURL = DefaultSourceURL
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables and defaults only.
func FromEnv() (Config, error) {
	return Load(New(), "")
}
