package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecgard/pasteagent/internal/api"
	"github.com/alecgard/pasteagent/internal/auth"
	"github.com/alecgard/pasteagent/internal/metering"
	"github.com/alecgard/pasteagent/internal/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local Pastebin gateway",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(os.Stdout)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agent, sessions, err := newAgent(cfg)
	if err != nil {
		return err
	}

	verifier, err := auth.NewVerifier(cfg.Server.TokenHash)
	if err != nil {
		return fmt.Errorf("server.token_hash: %w", err)
	}
	if verifier == nil {
		slog.Warn("server.token_hash is not set; the gateway accepts unauthenticated requests")
	}

	m := metrics.New()
	agent.SetMetrics(m)

	deps := api.RouterDeps{
		Agent:          agent,
		Metrics:        m,
		Verifier:       verifier,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}
	if sessions != nil {
		deps.Sessions = sessions
	}

	var collector *metering.Collector
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return err
		}
		slog.Info("connected to database")

		m.RegisterDBPoolCollector(func() metrics.PoolStats {
			s := pool.Stat()
			return metrics.PoolStats{
				Total:    s.TotalConns(),
				Idle:     s.IdleConns(),
				Acquired: s.AcquiredConns(),
				Max:      s.MaxConns(),
			}
		})

		store := metering.NewStore(pool)
		collector = metering.NewCollector(store, cfg.Metering.BatchSize, cfg.Metering.FlushInterval)
		collector.SetMetrics(m)
		go collector.Start(ctx)
		agent.SetRecorder(collector)

		deps.Calls = store
		deps.DB = pool
	} else {
		slog.Info("database.url not set; call log disabled")
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting",
			"addr", cfg.Addr(),
			"rate_limit_mode", agent.Limiter().Mode().String(),
			"authenticated", agent.Authenticated(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
		slog.Info("shutting down")
	case err := <-errCh:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err = srv.Shutdown(shutdownCtx)
	if collector != nil {
		collector.Stop()
	}
	return err
}
