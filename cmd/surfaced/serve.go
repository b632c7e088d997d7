package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/surfacehq/surface/cache"
	"github.com/surfacehq/surface/config"
	"github.com/surfacehq/surface/license"
	"github.com/surfacehq/surface/registry"
	"github.com/surfacehq/surface/server"
	"github.com/surfacehq/surface/store"
	"github.com/surfacehq/surface/telemetry"
	"github.com/surfacehq/surface/triage"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		listen     string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, listen, debug)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to surface.yaml (or a directory containing it)")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides the config file")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}

func runServe(ctx context.Context, configPath, listen string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}
	if listen != "" {
		cfg.Server.Listen = listen
	}

	tel, err := telemetry.Setup("surfaced", logger)
	if err != nil {
		return err
	}

	stores, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}

	var qc *cache.Cache
	if cfg.Cache.URL != "" {
		qc, err = cache.New(cache.Options{
			URL:        cfg.Cache.URL,
			DefaultTTL: cfg.Cache.GetDefaultTTL(),
		})
		if err != nil {
			// The cache is an optimization; the API serves without it.
			logger.Warn("cache unavailable, continuing without it", "error", err)
			qc = nil
		}
	}

	gate, err := license.NewGate(cfg.License.GateRules())
	if err != nil {
		return err
	}

	secret, err := cfg.Auth.JWTSecret()
	if err != nil {
		return err
	}

	var advisor triage.Advisor
	if cfg.Triage.Enabled {
		apiKey, err := cfg.Triage.APIKey()
		if err != nil {
			return err
		}
		gem, err := triage.NewGeminiAdvisor(ctx, apiKey, cfg.Triage.Model, logger)
		if err != nil {
			return err
		}
		defer gem.Close()
		advisor = gem
	}

	reg, err := registry.NewClientFromEnv(logger)
	if err != nil {
		return err
	}

	opts := server.Options{
		Config:    cfg,
		Stores:    stores,
		Cache:     qc,
		Gate:      gate,
		Advisor:   advisor,
		JWTSecret: secret,
		Logger:    logger,
	}
	if reg != nil {
		opts.Registry = reg
	}
	srv, err := server.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Gate rules hot-reload when the config file changes; everything else
	// requires a restart.
	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, logger, func(next *config.Config) {
				gate, err := license.NewGate(next.License.GateRules())
				if err != nil {
					logger.Warn("keeping previous gate rules", "error", err)
					return
				}
				srv.SetGate(gate)
				logger.Info("gate rules reloaded")
			})
			if err != nil {
				logger.Warn("config watch stopped", "error", err)
			}
		}()
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Listen)
		errc <- srv.Listen()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	if qc != nil {
		qc.Close()
	}
	if reg != nil {
		if err := reg.Close(); err != nil {
			logger.Warn("registry close failed", "error", err)
		}
	}
	return tel.Shutdown(shutdownCtx)
}
