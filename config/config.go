package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Database  DatabaseConfig  `envPrefix:"DB_"`
	JWT       JWTConfig       `envPrefix:"JWT_"`
	Dispatch  DispatchConfig  `envPrefix:"DISPATCH_"`
	Firebase  FirebaseConfig  `envPrefix:"FIREBASE_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
}

type ServerConfig struct {
	Port         string        `env:"PORT" envDefault:"8099"`
	Env          string        `env:"ENV" envDefault:"development"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
}

type DatabaseConfig struct {
	DSN             string        `env:"DSN" envDefault:"dispatch:dispatch@tcp(localhost:3306)/dispatch?charset=utf8mb4&parseTime=True&loc=UTC"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"100"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"1h"`
}

type JWTConfig struct {
	AccessSecret string        `env:"ACCESS_SECRET" envDefault:"change-me-in-production"`
	AccessExpiry time.Duration `env:"ACCESS_EXPIRY" envDefault:"15m"`
	Issuer       string        `env:"ISSUER" envDefault:"dispatch"`
}

// DispatchConfig tunes the notification dispatch engine.
type DispatchConfig struct {
	// FanoutWorkers caps simultaneous in-flight pushes during a broadcast.
	FanoutWorkers int           `env:"FANOUT_WORKERS" envDefault:"32"`
	PushTimeout   time.Duration `env:"PUSH_TIMEOUT" envDefault:"3s"`
	MarkTimeout   time.Duration `env:"MARK_TIMEOUT" envDefault:"5s"`
	// BatchSize is the number of rows per INSERT statement inside one batch transaction.
	BatchSize int `env:"BATCH_SIZE" envDefault:"500"`
	TitleMax  int `env:"TITLE_MAX" envDefault:"255"`
	BodyMax   int `env:"BODY_MAX" envDefault:"2000"`
}

type FirebaseConfig struct {
	// ServiceAccountPath enables FCM mobile push when set.
	ServiceAccountPath string `env:"SERVICE_ACCOUNT_PATH"`
}

type RateLimitConfig struct {
	PerSecond float64 `env:"PER_SECOND" envDefault:"2"`
	Burst     int     `env:"BURST" envDefault:"100"`
}

// Load reads configuration from the environment, falling back to defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
