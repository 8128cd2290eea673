package bootstrap

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/account"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/config"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/db/migrations"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/db/postgres"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/memory"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/redis"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/security"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/pkg/clock"
	http_handlers "github.com/baechuer/real-time-ressys/services/account-service/internal/transport/http/handlers"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/transport/http/router"
)

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewDB   func(cfg config.DBConfig, log zerolog.Logger) (*sql.DB, error)
	Migrate func(ctx context.Context, db *sql.DB) error

	NewRedis func(addr, password string, db int) *redis.Client

	NewPublisher func(url, exchange string, log zerolog.Logger) (Publisher, error)

	Clock  account.Clock
	Logger zerolog.Logger
}

// Publisher is the event sink plus its lifecycle.
type Publisher interface {
	account.EventPublisher
	Close() error
}

// ProfileAdmin is a profile store plus the administrative activation switch.
type ProfileAdmin interface {
	account.ProfileStore
	SetActive(ctx context.Context, accountID string, active bool) error
}

// App is the assembled process.
type App struct {
	Config   *config.Config
	Service  *account.Service
	Tokens   *security.JWTIssuer
	Profiles ProfileAdmin
	Ops      *http.Server
	Registry *prometheus.Registry
}

func DefaultDeps(log zerolog.Logger) Deps {
	return Deps{
		LoadConfig: config.Load,
		NewDB:      config.NewDB,
		Migrate:    migrations.Up,
		NewRedis:   redis.New,
		NewPublisher: func(url, exchange string, log zerolog.Logger) (Publisher, error) {
			return rabbitmq.NewPublisher(url, exchange, log)
		},
		Clock:  clock.System{},
		Logger: log,
	}
}

/*
========================
 Core bootstrap logic
========================
*/

func New(deps Deps) (*App, func(), error) {
	log := deps.Logger
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}

	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	var cleanupFns []func()
	fail := func(err error) (*App, func(), error) {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	var checks []http_handlers.Check

	// 1) stores
	var (
		creds    account.CredentialStore
		profiles ProfileAdmin
	)
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := deps.NewDB(cfg.DB, log)
		if err != nil {
			return fail(err)
		}
		cleanupFns = append(cleanupFns, func() { _ = db.Close() })

		if cfg.DB.AutoMigrate && deps.Migrate != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := deps.Migrate(ctx, db)
			cancel()
			if err != nil {
				return fail(err)
			}
		}

		creds = postgres.NewCredentialRepo(db)
		profiles = postgres.NewProfileRepo(db)
		checks = append(checks, http_handlers.Check{Name: "postgres", Ping: db.PingContext})
		log.Info().Msg("using postgres stores")
	default:
		creds = memory.NewCredentialStore(deps.Clock)
		profiles = memory.NewProfileStore()
		log.Warn().Msg("using in-memory stores; data is lost on restart")
	}

	// 2) redis (best-effort)
	var redisCli *redis.Client
	if cfg.Redis.Addr != "" && deps.NewRedis != nil {
		c := deps.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := c.Ping(ctx)
		cancel()

		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable; using in-process sessions, limiter and locks")
			_ = c.Close()
		} else {
			log.Info().Msg("redis connected")
			redisCli = c
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
			checks = append(checks, http_handlers.Check{Name: "redis", Ping: c.Ping})
		}
	}

	// 3) sessions, limiter, locker
	var (
		sessions account.SessionStore
		limiter  account.AttemptLimiter
		locker   account.AccountLocker
	)
	if redisCli != nil {
		sessions = redis.NewSessionStore(redisCli)
		limiter = redis.NewAttemptLimiter(redisCli, cfg.PasswordChange.MaxFailures, cfg.PasswordChange.Window)
		locker = redis.NewLocker(redisCli, cfg.Lock.TTL)
	} else {
		sessions = memory.NewSessionStore(deps.Clock)
		limiter = memory.NewAttemptLimiter(cfg.PasswordChange.MaxFailures, cfg.PasswordChange.Window, deps.Clock)
		locker = memory.NewLocker()
	}

	// 4) publisher
	var pub account.EventPublisher
	switch {
	case cfg.Rabbit.URL == "":
		log.Warn().Msg("no rabbitmq url; events are logged, not delivered")
		pub = memory.NewNoopPublisher(log)
	default:
		p, err := deps.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange, log)
		if err != nil {
			if !cfg.App.IsDev() {
				return fail(err)
			}
			log.Warn().Err(err).Msg("rabbitmq unavailable; using noop publisher")
			pub = memory.NewNoopPublisher(log)
			break
		}
		pub = p
		cleanupFns = append(cleanupFns, func() { _ = p.Close() })
		if h, ok := p.(interface{ Healthy() bool }); ok {
			checks = append(checks, http_handlers.Check{Name: "rabbitmq", Ping: func(context.Context) error {
				if !h.Healthy() {
					return errors.New("rabbitmq connection closed")
				}
				return nil
			}})
		}
	}

	// 5) security
	hasher, err := security.NewHasher(cfg.Password.Hasher, cfg.Password.BcryptCost, security.ArgonParams{
		MemoryKB:    cfg.Password.ArgonMemoryKB,
		Time:        cfg.Password.ArgonTime,
		Parallelism: cfg.Password.ArgonParallelism,
		SaltLen:     cfg.Password.ArgonSaltLen,
		KeyLen:      cfg.Password.ArgonKeyLen,
	})
	if err != nil {
		return fail(err)
	}

	secret := cfg.JWT.Secret
	if secret == "" {
		// Validate only lets this through in dev.
		secret = ephemeralSecret()
		log.Warn().Msg("ACCOUNT_JWT_SECRET not set; using an ephemeral signing key")
	}
	log.Info().Str("issuer", cfg.JWT.Issuer).Msg("initializing jwt issuer")
	tokens := security.NewJWTIssuer(secret, cfg.JWT.Issuer)

	// 6) service
	svc, err := account.NewService(account.Deps{
		Credentials: creds,
		Profiles:    profiles,
		Hasher:      hasher,
		Sessions:    sessions,
		Limiter:     limiter,
		Locker:      locker,
		Tokens:      tokens,
		Publisher:   pub,
		Clock:       deps.Clock,
	}, account.Config{
		MinPasswordLength: cfg.Password.MinLength,
		StoreTimeout:      cfg.Store.Timeout,
		SessionTTL:        cfg.Session.TTL,
		AccessTokenTTL:    cfg.JWT.AccessTokenTTL,
	})
	if err != nil {
		return fail(err)
	}
	svc = svc.
		WithLogger(log).
		WithMetrics(rec).
		WithAudit(audit.New(log).Record)

	// seed (dev only)
	if cfg.App.IsDev() && cfg.App.SeedDevAccounts {
		SeedDevAccounts(context.Background(), svc, profiles, log)
	}

	// 7) ops server
	mux, err := router.New(router.Deps{
		Health:  http_handlers.NewHealthHandler(rec, checks...),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:  log,
	})
	if err != nil {
		return fail(err)
	}

	srv := &http.Server{
		Addr:              cfg.App.OpsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	app := &App{
		Config:   cfg,
		Service:  svc,
		Tokens:   tokens,
		Profiles: profiles,
		Ops:      srv,
		Registry: reg,
	}
	return app, func() { runCleanup(cleanupFns) }, nil
}

/*
========================
 helpers
========================
*/

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

func ephemeralSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
