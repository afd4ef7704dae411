package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrConfig marks a missing or invalid setting. Fatal at startup.
var ErrConfig = errors.New("invalid configuration")

type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Mongo    MongoConfig
	Orders   OrdersConfig
	Streak   StreakConfig
	Push     PushConfig
	TimeZone string `env:"APP_TIMEZONE" envDefault:"Asia/Dubai"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	location *time.Location
}

type AppConfig struct {
	Port string `env:"APP_PORT" envDefault:"8080"`
}

type PostgresConfig struct {
	Host            string        `env:"DB_HOST,notEmpty"`
	Port            string        `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER,notEmpty"`
	Password        string        `env:"DB_PASSWORD,notEmpty"`
	DBName          string        `env:"DB_NAME,notEmpty"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
	MigrationsPath  string        `env:"DB_MIGRATIONS_PATH" envDefault:"migrations"`
}

type MongoConfig struct {
	URI              string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	Database         string `env:"MONGO_DATABASE" envDefault:"marketplace"`
	CollectionPrefix string `env:"MONGO_COLLECTIONS_PREFIX" envDefault:"bueno"`
}

type OrdersConfig struct {
	NotifyDelay     time.Duration `env:"NOTIFY_ORDER_AFTER" envDefault:"30m"`
	ReminderEvery   time.Duration `env:"ORDER_RANK_NOTIFICATIONS_INTERVAL" envDefault:"1m"`
	DefaultPageSize int           `env:"DEFAULT_PAGE_SIZE" envDefault:"10"`
	MaxPageSize     int           `env:"MAX_PAGE_SIZE" envDefault:"100"`
}

type StreakConfig struct {
	Policy          string        `env:"STREAK_POLICY" envDefault:"0:15,1:15,2:15,3:20"`
	Interval        time.Duration `env:"STREAK_INTERVAL" envDefault:"1m"`
	DefaultDiscount string        `env:"DEFAULT_DISCOUNT" envDefault:"15"`
}

type PushConfig struct {
	FCMKey  string        `env:"FCM_KEY"`
	FCMURL  string        `env:"FCM_URL" envDefault:"https://fcm.googleapis.com/fcm/send"`
	Timeout time.Duration `env:"FCM_TIMEOUT" envDefault:"10s"`
}

// NewConfig reads an optional .env file and then the process environment.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: failed to load .env: %v", ErrConfig, err)
	}

	return Parse()
}

// Parse builds a Config from the environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("%w: APP_TIMEZONE %q: %v", ErrConfig, c.TimeZone, err)
	}
	c.location = loc

	if c.Orders.NotifyDelay < 0 {
		return fmt.Errorf("%w: NOTIFY_ORDER_AFTER must not be negative", ErrConfig)
	}
	if c.Orders.ReminderEvery < 0 {
		return fmt.Errorf("%w: ORDER_RANK_NOTIFICATIONS_INTERVAL must not be negative", ErrConfig)
	}
	if c.Streak.Interval <= 0 {
		return fmt.Errorf("%w: STREAK_INTERVAL must be positive", ErrConfig)
	}
	if c.Orders.DefaultPageSize <= 0 || c.Orders.MaxPageSize < c.Orders.DefaultPageSize {
		return fmt.Errorf("%w: page sizes must satisfy 0 < DEFAULT_PAGE_SIZE <= MAX_PAGE_SIZE", ErrConfig)
	}
	if c.Push.FCMKey != "" && c.Push.FCMURL == "" {
		return fmt.Errorf("%w: FCM_URL is required when FCM_KEY is set", ErrConfig)
	}

	return nil
}

// Location is the business time zone used for day buckets.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}
