package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreMongo = "mongo"
	StoreLocal = "local"

	SessionsInStore = "store"
	SessionsInRedis = "redis"
)

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":80"`
	LogMode    string `env:"LOG_MODE" envDefault:"dev"`

	StoreBackend      string `env:"STORE_BACKEND" envDefault:"mongo"`
	MongoConnString   string `env:"MONGODB_CONNSTRING"`
	MongoDatabase     string `env:"MONGODB_DATABASE" envDefault:"conference-manager"`
	MongoTransactions bool   `env:"MONGODB_TRANSACTIONS" envDefault:"true"`
	LocalDBPath       string `env:"LOCAL_DB_PATH" envDefault:"./database/local.json"`

	// SigningKey signs session tokens.
	SigningKey        string        `env:"SIGN,required,notEmpty"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionTouchAfter time.Duration `env:"SESSION_TOUCH_AFTER" envDefault:"1m"`
	SessionBackend    string        `env:"SESSION_BACKEND" envDefault:"store"`
	RedisAddr         string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword     string        `env:"REDIS_PASSWORD"`
	RedisDB           int           `env:"REDIS_DB" envDefault:"0"`

	// PublicReads exposes listing and dashboard routes without a session.
	PublicReads bool `env:"PUBLIC_READS" envDefault:"false"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreBackend {
	case StoreMongo:
		if c.MongoConnString == "" {
			return fmt.Errorf("MONGODB_CONNSTRING is required for the %v store", StoreMongo)
		}
	case StoreLocal:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.SessionBackend {
	case SessionsInStore, SessionsInRedis:
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	return nil
}
