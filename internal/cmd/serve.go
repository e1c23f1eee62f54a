package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pagelens/pagelens/internal/config"
	errwrap "github.com/pagelens/pagelens/internal/errors"
	"github.com/pagelens/pagelens/internal/metrics"
	"github.com/pagelens/pagelens/internal/observability"
	"github.com/pagelens/pagelens/internal/server"
	"github.com/pagelens/pagelens/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP API with graceful shutdown support.

Endpoints:
  GET /v1/performance?url=...   analyze a URL
  GET /v1/quota                 limiter state
  GET /health, /health/live, /health/ready
  GET /metrics                  Prometheus metrics (metrics.enabled)

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read the config file (restart to apply limiter changes)`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	observability.InitServerLogger(config.AppName, cfg.Logging)
	logger := observability.ServerLogger

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
	}

	ctx := cmd.Context()
	p, err := buildPipeline(ctx, cfg, pipelineOptions{logger: logger, metrics: collector})
	if err != nil {
		return errwrap.WrapInternal(ctx, err, "pipeline initialization failed")
	}

	logger.Info("Initializing server",
		zap.String("service", config.AppName),
		zap.String("version", versionInfo.Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("api_key", cfg.PageSpeed.HasAPIKey()),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Bool("metrics", collector != nil))
	if !cfg.PageSpeed.HasAPIKey() {
		logger.Warn("No PageSpeed API key configured, every analysis will use fallback estimates")
	}

	hm := handlers.NewHealthManager(versionInfo.Version)
	registerHealthCheckers(hm, p)

	srv := server.New(server.Options{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		Version: handlers.VersionInfo{
			Name:      config.AppName,
			Version:   versionInfo.Version,
			Commit:    versionInfo.Commit,
			BuildDate: versionInfo.BuildDate,
		},
		Analyzer:   p.manager,
		Limiter:    p.limiter,
		Health:     hm,
		Metrics:    collector,
		AdminToken: cfg.Server.AdminToken,
	})

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 10 * time.Second
	}

	// Shutdown handlers run LIFO: HTTP server, then connections, then logs.
	signals.OnShutdown(func(ctx context.Context) error {
		if err := logger.Sync(); err != nil {
			// Sync errors are often benign (stderr already closed)
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		p.Close()
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errwrap.WrapInternal(ctx, err, "server shutdown failed")
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnReload(func(ctx context.Context) error {
		logger.Info("Received SIGHUP: re-reading config file")
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				logger.Info("No config file found - using defaults and environment variables")
				return nil
			}
			logger.Error("Failed to reload config file",
				zap.String("file", viper.ConfigFileUsed()),
				zap.Error(err))
			return errwrap.WrapInternal(ctx, err, "config reload failed")
		}
		if _, err := loadConfig(); err != nil {
			logger.Warn("Reloaded config is invalid and was not applied", zap.Error(err))
			return nil
		}
		logger.Info("Configuration re-read; limiter and cache settings apply on restart",
			zap.String("file", viper.ConfigFileUsed()))
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go func() {
		if err := signals.Listen(ctx); err != nil {
			logger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	if err := <-errChan; err != nil {
		p.Close()
		return errwrap.WrapInternal(ctx, err, "server error")
	}
	return nil
}

// registerHealthCheckers adds one check per backing connection the pipeline
// holds. The upstream API is not probed; its failures are absorbed by the
// fallback path.
func registerHealthCheckers(hm *handlers.HealthManager, p *pipeline) {
	if p == nil {
		return
	}
	if p.store != nil {
		db := p.store
		hm.RegisterChecker("store", handlers.HealthCheckerFunc(func(ctx context.Context) error {
			return db.DB.PingContext(ctx)
		}))
	}
	if p.redis != nil {
		kv := p.redis
		hm.RegisterChecker("redis", handlers.HealthCheckerFunc(kv.Ping))
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
