package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Channels  ChannelConfig   `mapstructure:"channels"`
	Results   ResultsConfig   `mapstructure:"results"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders the lib/pq keyword connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// ChannelConfig names the archive and alert topics.
type ChannelConfig struct {
	// Transport is redis, memory or none.
	Transport      string        `mapstructure:"transport"`
	ArchiveTopic   string        `mapstructure:"archive_topic"`
	AlertTopic     string        `mapstructure:"alert_topic"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	Source         string        `mapstructure:"source"`
}

type ResultsConfig struct {
	// Backend is memory, stub or postgres.
	Backend string `mapstructure:"backend"`
	// RecentDefault is the limit used when a caller omits one.
	RecentDefault int `mapstructure:"recent_default"`
}

type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"`
	TokenTTLMinutes      int    `mapstructure:"token_ttl_minutes"`
	OperatorUsername     string `mapstructure:"operator_username"`
	OperatorPasswordHash string `mapstructure:"operator_password_hash"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type SMTPConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "labalert")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("channels.transport", "redis")
	v.SetDefault("channels.archive_topic", "MedicalResultsQueue")
	v.SetDefault("channels.alert_topic", "MedicalAlertsQueue")
	v.SetDefault("channels.publish_timeout", 2*time.Second)
	v.SetDefault("channels.source", "labalert")

	v.SetDefault("results.backend", "memory")
	v.SetDefault("results.recent_default", 10)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl_minutes", 60)
	v.SetDefault("auth.operator_username", "operator")
	v.SetDefault("auth.operator_password_hash", "")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 50.0)
	v.SetDefault("rate_limit.burst", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)

	v.SetDefault("smtp.enabled", false)
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.to", []string{})

	v.SetDefault("metrics.namespace", "labalert")
}

// LoadConfig reads config.yaml from the working directory or ./config when
// present and applies LABALERT_* environment overrides on top of the
// defaults.
func LoadConfig() (*Config, error) {
	return load(viper.GetViper(), "")
}

// LoadFile reads one explicit file.
func LoadFile(path string) (*Config, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("LABALERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the processes cannot start with.
func (c *Config) Validate() error {
	switch c.Results.Backend {
	case "memory", "stub", "postgres":
	default:
		return fmt.Errorf("invalid results.backend %q", c.Results.Backend)
	}
	switch c.Channels.Transport {
	case "redis", "memory", "none":
	default:
		return fmt.Errorf("invalid channels.transport %q", c.Channels.Transport)
	}
	if c.Channels.ArchiveTopic == "" || c.Channels.AlertTopic == "" {
		return errors.New("channels.archive_topic and channels.alert_topic are required")
	}
	if c.Channels.ArchiveTopic == c.Channels.AlertTopic {
		return errors.New("archive and alert topics must differ")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return errors.New("rate_limit.requests_per_second and rate_limit.burst must be positive")
	}
	return nil
}

// Watch calls onChange with the re-read configuration whenever the loaded
// config file changes. Invalid edits are reported to onError and ignored.
func Watch(onChange func(*Config), onError func(error)) {
	v := viper.GetViper()
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("ignoring config change in %s: %w", e.Name, err))
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}
