package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "ACCOUNT"

	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"

	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	App            AppConfig
	Store          StoreConfig
	DB             DBConfig
	Redis          RedisConfig
	Rabbit         RabbitConfig
	JWT            JWTConfig
	Session        SessionConfig
	Password       PasswordConfig
	PasswordChange PasswordChangeConfig
	Lock           LockConfig
}

type AppConfig struct {
	Env             string        `envconfig:"ACCOUNT_ENV" default:"dev"`
	OpsAddr         string        `envconfig:"ACCOUNT_OPS_ADDR" default:":8081"`
	ShutdownTimeout time.Duration `envconfig:"ACCOUNT_SHUTDOWN_TIMEOUT" default:"10s"`
	SeedDevAccounts bool          `envconfig:"ACCOUNT_SEED_DEV_ACCOUNTS" default:"true"`
}

func (a AppConfig) IsDev() bool { return strings.EqualFold(a.Env, EnvDev) }

type StoreConfig struct {
	Backend string `envconfig:"ACCOUNT_STORE_BACKEND" default:"memory"`
	// Timeout bounds every store, hasher and session call made by the service.
	Timeout time.Duration `envconfig:"ACCOUNT_STORE_TIMEOUT" default:"3s"`
}

type DBConfig struct {
	Addr            string        `envconfig:"ACCOUNT_DB_ADDR"`
	MaxOpenConns    int           `envconfig:"ACCOUNT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ACCOUNT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxIdleTime time.Duration `envconfig:"ACCOUNT_DB_CONN_MAX_IDLE_TIME" default:"5m"`
	ConnMaxLifetime time.Duration `envconfig:"ACCOUNT_DB_CONN_MAX_LIFETIME" default:"1h"`
	Debug           bool          `envconfig:"ACCOUNT_DB_DEBUG" default:"false"`
	AutoMigrate     bool          `envconfig:"ACCOUNT_DB_AUTO_MIGRATE" default:"true"`
}

// RedisConfig: an empty Addr selects the in-process session store, limiter and locker.
type RedisConfig struct {
	Addr     string `envconfig:"ACCOUNT_REDIS_ADDR"`
	Password string `envconfig:"ACCOUNT_REDIS_PASSWORD"`
	DB       int    `envconfig:"ACCOUNT_REDIS_DB" default:"0"`
}

// RabbitConfig: an empty URL selects the logging no-op publisher.
type RabbitConfig struct {
	URL      string `envconfig:"ACCOUNT_RABBIT_URL"`
	Exchange string `envconfig:"ACCOUNT_RABBIT_EXCHANGE" default:"account.events"`
}

type JWTConfig struct {
	Secret         string        `envconfig:"ACCOUNT_JWT_SECRET"`
	Issuer         string        `envconfig:"ACCOUNT_JWT_ISSUER" default:"account-service"`
	AccessTokenTTL time.Duration `envconfig:"ACCOUNT_ACCESS_TOKEN_TTL" default:"15m"`
}

type SessionConfig struct {
	TTL time.Duration `envconfig:"ACCOUNT_SESSION_TTL" default:"168h"`
}

type PasswordConfig struct {
	Hasher           string `envconfig:"ACCOUNT_PASSWORD_HASHER" default:"argon2id"`
	MinLength        int    `envconfig:"ACCOUNT_PASSWORD_MIN_LENGTH" default:"6"`
	BcryptCost       int    `envconfig:"ACCOUNT_BCRYPT_COST" default:"12"`
	ArgonMemoryKB    int    `envconfig:"ACCOUNT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int    `envconfig:"ACCOUNT_ARGON_TIME" default:"3"`
	ArgonParallelism int    `envconfig:"ACCOUNT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int    `envconfig:"ACCOUNT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int    `envconfig:"ACCOUNT_ARGON_KEY_LEN" default:"32"`
}

type PasswordChangeConfig struct {
	MaxFailures int           `envconfig:"ACCOUNT_PASSWORD_CHANGE_MAX_FAILURES" default:"5"`
	Window      time.Duration `envconfig:"ACCOUNT_PASSWORD_CHANGE_WINDOW" default:"15m"`
}

type LockConfig struct {
	// TTL is the Redis lease lifetime. It must exceed ACCOUNT_STORE_TIMEOUT so a
	// single bounded call cannot outlive the lease. A critical section spanning
	// several calls may still overrun it; the versioned writes reject the late writer.
	TTL time.Duration `envconfig:"ACCOUNT_LOCK_TTL" default:"10s"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.App.Env) {
	case EnvDev, EnvStaging, EnvProd:
	default:
		errs = append(errs, fmt.Errorf("ACCOUNT_ENV must be dev, staging or prod, got %q", c.App.Env))
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.DB.Addr == "" {
			errs = append(errs, errors.New("missing required env var: ACCOUNT_DB_ADDR"))
		} else if !strings.HasPrefix(c.DB.Addr, "postgres://") && !strings.HasPrefix(c.DB.Addr, "postgresql://") {
			errs = append(errs, errors.New("ACCOUNT_DB_ADDR must be a postgres:// URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("ACCOUNT_STORE_BACKEND must be memory or postgres, got %q", c.Store.Backend))
	}
	if c.Store.Timeout <= 0 {
		errs = append(errs, errors.New("ACCOUNT_STORE_TIMEOUT must be positive"))
	}

	if c.JWT.Secret == "" && !c.App.IsDev() {
		errs = append(errs, errors.New("missing required env var: ACCOUNT_JWT_SECRET"))
	}
	if c.JWT.AccessTokenTTL <= 0 || c.Session.TTL <= 0 {
		errs = append(errs, errors.New("token and session TTLs must be positive"))
	}

	switch c.Password.Hasher {
	case "argon2id", "bcrypt":
	default:
		errs = append(errs, fmt.Errorf("ACCOUNT_PASSWORD_HASHER must be argon2id or bcrypt, got %q", c.Password.Hasher))
	}
	if c.Password.MinLength < 1 {
		errs = append(errs, errors.New("ACCOUNT_PASSWORD_MIN_LENGTH must be at least 1"))
	}

	if c.PasswordChange.MaxFailures < 0 || c.PasswordChange.Window <= 0 {
		errs = append(errs, errors.New("password change limit must have non-negative failures and a positive window"))
	}
	if c.Lock.TTL <= c.Store.Timeout {
		errs = append(errs, errors.New("ACCOUNT_LOCK_TTL must exceed ACCOUNT_STORE_TIMEOUT"))
	}

	return errors.Join(errs...)
}
