package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const EnvPrefix = "AUCTION"

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	LockLocal = "local"
	LockRedis = "redis"
)

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
}

// DSN renders a postgres connection string
func (c DBConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type LockConfig struct {
	Driver      string
	WaitTimeout time.Duration
	Expiry      time.Duration
	RetryDelay  time.Duration
}

type Config struct {
	ServerAddr string
	LogLevel   string

	StoreDriver string
	SQLitePath  string
	DB          DBConfig

	Lock  LockConfig
	Redis RedisConfig

	RetryMaxAttempts     int
	RetryInitialInterval time.Duration
	RaiseIncrement       decimal.Decimal
	SweepInterval        time.Duration
	SeedDemoData         bool
}

// Load reads configuration from flags, AUCTION_* environment variables and an
// optional .env file in the working directory, in that order of precedence.
func Load(args []string) (Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("auction-engine", pflag.ContinueOnError)

	// server config
	fs.String("server-addr", "0.0.0.0:8080", "HTTP listen address")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")

	// store config
	fs.String("store-driver", StoreMemory, "ledger store: memory, sqlite or postgres")
	fs.String("sqlite-path", "auction.db", "sqlite database file")
	fs.String("db-user", "", "")
	fs.String("db-password", "", "")
	fs.String("db-host", "localhost", "")
	fs.Int("db-port", 5432, "")
	fs.String("db-database", "auctions", "")

	// lock config
	fs.String("lock-driver", LockLocal, "per-item lock: local or redis")
	fs.Duration("lock-wait-timeout", 2*time.Second, "longest wait for an item lock")
	fs.Duration("lock-expiry", 8*time.Second, "redis lock expiry")
	fs.Duration("lock-retry-delay", 50*time.Millisecond, "pause between redis lock attempts")

	// redis config
	fs.String("redis-addr", "localhost:6379", "")
	fs.String("redis-password", "", "")
	fs.Int("redis-db", 0, "")
	fs.String("redis-key-prefix", "", "namespace for lock keys")

	// bidding config
	fs.Int("retry-max-attempts", 3, "attempts on transient conflicts")
	fs.Duration("retry-initial-interval", 20*time.Millisecond, "first backoff between attempts")
	fs.String("raise-increment", "10", "amount added by the raise action")
	fs.Duration("sweep-interval", 30*time.Second, "how often expired auctions are closed")
	fs.Bool("seed-demo-data", false, "create demo users and items on startup")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	// bind pflag to viper
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	increment, err := decimal.NewFromString(v.GetString("raise-increment"))
	if err != nil {
		return Config{}, fmt.Errorf("config: raise-increment: %w", err)
	}

	cfg := Config{
		ServerAddr:  v.GetString("server-addr"),
		LogLevel:    v.GetString("log-level"),
		StoreDriver: strings.ToLower(v.GetString("store-driver")),
		SQLitePath:  v.GetString("sqlite-path"),
		DB: DBConfig{
			User:     v.GetString("db-user"),
			Password: v.GetString("db-password"),
			Host:     v.GetString("db-host"),
			Port:     v.GetInt("db-port"),
			Database: v.GetString("db-database"),
		},
		Lock: LockConfig{
			Driver:      strings.ToLower(v.GetString("lock-driver")),
			WaitTimeout: v.GetDuration("lock-wait-timeout"),
			Expiry:      v.GetDuration("lock-expiry"),
			RetryDelay:  v.GetDuration("lock-retry-delay"),
		},
		Redis: RedisConfig{
			Addr:      v.GetString("redis-addr"),
			Password:  v.GetString("redis-password"),
			DB:        v.GetInt("redis-db"),
			KeyPrefix: v.GetString("redis-key-prefix"),
		},
		RetryMaxAttempts:     v.GetInt("retry-max-attempts"),
		RetryInitialInterval: v.GetDuration("retry-initial-interval"),
		RaiseIncrement:       increment,
		SweepInterval:        v.GetDuration("sweep-interval"),
		SeedDemoData:         v.GetBool("seed-demo-data"),
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid setting at once
func (c Config) Validate() error {
	var errs error

	if c.ServerAddr == "" {
		errs = multierr.Append(errs, errors.New("server-addr is required"))
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = multierr.Append(errs, errors.New("sqlite-path is required for the sqlite store"))
		}
	case StorePostgres:
		if c.DB.Host == "" || c.DB.Database == "" {
			errs = multierr.Append(errs, errors.New("db-host and db-database are required for the postgres store"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unknown store-driver %q", c.StoreDriver))
	}
	switch c.Lock.Driver {
	case LockLocal:
	case LockRedis:
		if c.Redis.Addr == "" {
			errs = multierr.Append(errs, errors.New("redis-addr is required for the redis lock"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unknown lock-driver %q", c.Lock.Driver))
	}

	for name, d := range map[string]time.Duration{
		"lock-wait-timeout":      c.Lock.WaitTimeout,
		"lock-expiry":            c.Lock.Expiry,
		"lock-retry-delay":       c.Lock.RetryDelay,
		"retry-initial-interval": c.RetryInitialInterval,
		"sweep-interval":         c.SweepInterval,
	} {
		if d <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.RetryMaxAttempts < 1 {
		errs = multierr.Append(errs, fmt.Errorf("retry-max-attempts must be at least 1, got %d", c.RetryMaxAttempts))
	}
	if !c.RaiseIncrement.IsPositive() {
		errs = multierr.Append(errs, fmt.Errorf("raise-increment must be positive, got %s", c.RaiseIncrement))
	}

	if errs != nil {
		return fmt.Errorf("config: %w", errs)
	}
	return nil
}
