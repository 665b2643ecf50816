package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Stripe      StripeConfig
	Reservation ReservationConfig
	Payment     PaymentConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string `validate:"oneof=development staging production"`
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string `validate:"required"`
	Port            int    `validate:"min=1,max=65535"`
	User            string `validate:"required"`
	Password        string
	DBName          string `validate:"required"`
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int `validate:"min=0,max=65535"`
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
	Output string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodySize  int64
}

// StripeConfig holds payment gateway credentials
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// ReservationConfig holds stock hold settings
type ReservationConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	SweepEnabled  bool
}

// PaymentConfig bounds the automatic gateway retries
type PaymentConfig struct {
	MaxRetries      int `validate:"min=0,max=10"`
	InitialInterval time.Duration
	MaxInterval     time.Duration
	EventDedupTTL   time.Duration
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with MOTORLINE_ prefix (e.g. MOTORLINE_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; defaults plus env vars apply.
	}

	v.SetEnvPrefix("MOTORLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
			MaxBodySize:  v.GetInt64("http.max_body_size"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("stripe.secret_key"),
			WebhookSecret: v.GetString("stripe.webhook_secret"),
		},
		Reservation: ReservationConfig{
			TTL:           v.GetDuration("reservation.ttl"),
			SweepInterval: v.GetDuration("reservation.sweep_interval"),
			SweepEnabled:  v.GetBool("reservation.sweep_enabled"),
		},
		Payment: PaymentConfig{
			MaxRetries:      v.GetInt("payment.max_retries"),
			InitialInterval: v.GetDuration("payment.initial_interval"),
			MaxInterval:     v.GetDuration("payment.max_interval"),
			EventDedupTTL:   v.GetDuration("payment.event_dedup_ttl"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "motorline-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "motorline"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.Reservation.TTL == 0 {
		cfg.Reservation.TTL = 15 * time.Minute
	}
	if cfg.Reservation.SweepInterval == 0 {
		cfg.Reservation.SweepInterval = time.Minute
	}
	if cfg.Payment.MaxRetries == 0 {
		cfg.Payment.MaxRetries = 3
	}
	if cfg.Payment.InitialInterval == 0 {
		cfg.Payment.InitialInterval = 500 * time.Millisecond
	}
	if cfg.Payment.MaxInterval == 0 {
		cfg.Payment.MaxInterval = 10 * time.Second
	}
	if cfg.Payment.EventDedupTTL == 0 {
		cfg.Payment.EventDedupTTL = 24 * time.Hour
	}
}

// validate checks structural constraints plus the rules that cut across
// fields. Stripe credentials are mandatory outside development.
func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Reservation.TTL < time.Minute {
		return fmt.Errorf("reservation ttl must be at least one minute")
	}
	if c.Reservation.SweepInterval < time.Second {
		return fmt.Errorf("reservation sweep interval must be at least one second")
	}
	if c.App.Env == "production" {
		if c.Stripe.SecretKey == "" || c.Stripe.WebhookSecret == "" {
			return fmt.Errorf("stripe credentials are required in production")
		}
		if c.Log.Format != "json" {
			return fmt.Errorf("production logging must use json format")
		}
	}
	return nil
}

// IsProduction returns true when running in the production environment
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN builds the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
