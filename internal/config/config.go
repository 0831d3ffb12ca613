package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env      string `env:"APP_ENV"   envDefault:"local"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DB      DB
	JWT     JWT
	Kafka   Kafka
	Elastic Elastic
	Payment Payment
	Admin   Admin

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type DB struct {
	Driver string `env:"DB_DRIVER" envDefault:"postgres"`
	DSN    string `env:"DB_DSN"`
}

type JWT struct {
	Secret     string        `env:"JWT_SECRET,required,notEmpty"`
	AccessTTL  time.Duration `env:"ACCESS_TTL"  envDefault:"15m"`
	RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
}

type Kafka struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
}

type Elastic struct {
	Addresses []string `env:"ELASTIC_ADDRESSES" envSeparator:","`
	Username  string   `env:"ELASTIC_USERNAME"`
	Password  string   `env:"ELASTIC_PASSWORD"`
	Index     string   `env:"ELASTIC_INDEX" envDefault:"games"`
}

type Payment struct {
	DeclinePrefix string `env:"PAYMENT_DECLINE_PREFIX" envDefault:"4000"`
}

// Admin is seeded on boot when both fields are set.
type Admin struct {
	Email    string `env:"ADMIN_EMAIL"`
	Password string `env:"ADMIN_PASSWORD"`
}

// Load reads an optional .env file and then the process environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.Kafka.Brokers = compact(cfg.Kafka.Brokers)
	cfg.Elastic.Addresses = compact(cfg.Elastic.Addresses)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case "postgres":
		if c.DB.DSN == "" {
			return errors.New("config: DB_DSN is required for postgres")
		}
	case "sqlite":
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.DB.Driver)
	}

	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("config: unknown APP_ENV %q", c.Env)
	}
	return nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
