package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/snpike/duet-astro/internal/api"
	"github.com/snpike/duet-astro/internal/config"
	"github.com/snpike/duet-astro/internal/health"
	"github.com/snpike/duet-astro/internal/synth"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve synthesis, intersection and visibility over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd, map[string]string{
				"addr":        config.KeyHTTPAddr,
				"trust-proxy": config.KeyTrustProxy,
				"workers":     config.KeySynthWorkers,
			}); err != nil {
				return err
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cmd.Flags().String("trust-proxy", "", "take client addresses from X-Forwarded-For / X-Real-IP")
	cmd.Flags().String("workers", "", "integration goroutines per synthesis")
	return cmd
}

func (a *app) serve(parent context.Context) error {
	s, err := synth.New(a.cfg.Synth, a.logger)
	if err != nil {
		return err
	}

	readiness := &health.Readiness{}
	srv := api.NewServer(api.Config{
		Addr:           a.cfg.HTTPAddr,
		Auth:           a.cfg.Auth,
		TrustProxy:     a.cfg.TrustProxy,
		MaxBodyBytes:   a.cfg.MaxBodyBytes,
		ExposureLength: a.cfg.ExposureLength,
		Orbit:          a.cfg.Orbit,
	}, a.logger, s, readiness)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting server",
			"addr", a.cfg.HTTPAddr,
			"auth_enabled", a.cfg.Auth.Enabled,
			"workers", s.Config().Workers,
			"max_exposures", s.Config().MaxExposures,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	readiness.SetReady(true)

	select {
	case err := <-errCh:
		if err != nil {
			a.logger.Error("server listen error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server...")
	readiness.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", "error", err)
		return err
	}

	a.logger.Info("server stopped")
	return nil
}
