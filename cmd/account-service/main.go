package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/bootstrap"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/logger"
)

const defaultShutdownTimeout = 10 * time.Second

// opsServer is what Run needs from the ops HTTP server.
type opsServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
	Close() error
	Addr() string
}

type realServer struct{ *http.Server }

func (r realServer) Addr() string { return r.Server.Addr }

type process struct {
	srv             opsServer
	cleanup         func()
	shutdownTimeout time.Duration
}

type builder func() (process, error)

// Run blocks until a signal arrives or the server fails, and returns the exit code.
func Run(build builder, sigCh <-chan os.Signal, lg zerolog.Logger) int {
	p, err := build()
	if err != nil {
		lg.Error().Err(err).Msg("bootstrap failed")
		return 1
	}
	if p.cleanup != nil {
		defer p.cleanup()
	}
	if p.shutdownTimeout <= 0 {
		p.shutdownTimeout = defaultShutdownTimeout
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", p.srv.Addr()).Msg("ops server listening")
		if err := p.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		lg.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		lg.Error().Err(err).Msg("ops server failed")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.shutdownTimeout)
	defer cancel()

	if err := p.srv.Shutdown(ctx); err != nil {
		lg.Error().Err(err).Msg("graceful shutdown failed")
		_ = p.srv.Close()
		return 1
	}

	lg.Info().Msg("shutdown complete")
	return 0
}

func buildFromBootstrap() (process, error) {
	app, cleanup, err := bootstrap.New(bootstrap.DefaultDeps(zlog.Logger))
	if err != nil {
		return process{}, err
	}
	return process{
		srv:             realServer{app.Ops},
		cleanup:         cleanup,
		shutdownTimeout: app.Config.App.ShutdownTimeout,
	}, nil
}

func main() {
	logger.Init()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	os.Exit(Run(buildFromBootstrap, sigCh, zlog.Logger))
}
