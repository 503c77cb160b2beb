package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/smartsupply/agent/pkg/validator"
)

// Config represents the runtime configuration for the Smart Supply agent.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Remote     RemoteConfig     `mapstructure:"remote"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Search     SearchConfig     `mapstructure:"search"`
	Phone      PhoneConfig      `mapstructure:"phone"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the local HTTP server.
type ServerConfig struct {
	Host           string          `mapstructure:"host"`
	Port           int             `mapstructure:"port" validate:"gte=1,lte=65535"`
	LogLevel       string          `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFormat      string          `mapstructure:"log_format" validate:"omitempty,oneof=json console"`
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
	ShutdownGrace  time.Duration   `mapstructure:"shutdown_grace"`
}

// RateLimitConfig bounds requests per client and route.
type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second" validate:"gte=0"`
	Burst     int     `mapstructure:"burst" validate:"gte=0"`
}

// DatabaseConfig describes where the customer cache lives.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver" validate:"oneof=sqlite postgres postgresql mysql"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// RemoteConfig points the agent at the Smart Supply API.
type RemoteConfig struct {
	BaseURL    string        `mapstructure:"base_url" validate:"required,url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// SyncConfig controls the periodic customer sync.
type SyncConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	EnabledRoles  []string      `mapstructure:"enabled_roles"`
	ClearOnLogout bool          `mapstructure:"clear_on_logout"`
}

// SearchConfig tunes search-as-you-type.
type SearchConfig struct {
	SettleDelay   time.Duration `mapstructure:"settle_delay"`
	FallbackDelay time.Duration `mapstructure:"fallback_delay"`
	RemoteRate    float64       `mapstructure:"remote_rate" validate:"gte=0"`
	RemoteBurst   int           `mapstructure:"remote_burst" validate:"gte=0"`
}

// PhoneConfig sets how national phone numbers are read.
type PhoneConfig struct {
	DefaultRegion string `mapstructure:"default_region" validate:"phone_region"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	SyncMaxAge   time.Duration `mapstructure:"sync_max_age"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("SMARTSUPPLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	config.Phone.DefaultRegion = strings.ToUpper(strings.TrimSpace(config.Phone.DefaultRegion))
	config.Database.Driver = strings.ToLower(strings.TrimSpace(config.Database.Driver))

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the configuration against its validation rules.
func (c *Config) Validate() error {
	if err := validator.ValidateStruct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Address returns the listen address of the HTTP server.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8765)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.rate_limit.per_second", 20)
	v.SetDefault("server.rate_limit.burst", 40)
	v.SetDefault("server.shutdown_grace", "10s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/smartsupply-cache.sqlite")
	v.SetDefault("database.dsn", "")
	for _, server := range []string{"postgres", "mysql"} {
		v.SetDefault("database."+server+".host", "")
		v.SetDefault("database."+server+".database", "")
		v.SetDefault("database."+server+".username", "")
		v.SetDefault("database."+server+".password", "")
	}
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.mysql.port", 3306)

	v.SetDefault("remote.base_url", "http://localhost:5000/api")
	v.SetDefault("remote.timeout", "30s")
	v.SetDefault("remote.max_retries", 2)
	v.SetDefault("remote.retry_delay", "500ms")

	v.SetDefault("sync.interval", "6h")
	v.SetDefault("sync.enabled_roles", []string{"ADMIN"})
	v.SetDefault("sync.clear_on_logout", false)

	v.SetDefault("search.settle_delay", "10ms")
	v.SetDefault("search.fallback_delay", "5s")
	v.SetDefault("search.remote_rate", 2)
	v.SetDefault("search.remote_burst", 4)

	v.SetDefault("phone.default_region", "PK")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
	v.SetDefault("monitoring.health_check.probe_timeout", "3s")
	v.SetDefault("monitoring.health_check.sync_max_age", "12h")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
