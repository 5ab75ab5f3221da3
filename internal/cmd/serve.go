package cmd

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fragstat/fragstat/internal/appid"
	errwrap "github.com/fragstat/fragstat/internal/errors"
	"github.com/fragstat/fragstat/internal/metrics"
	"github.com/fragstat/fragstat/internal/observability"
	"github.com/fragstat/fragstat/internal/server"
	"github.com/fragstat/fragstat/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the esports API server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read the config file (restart to apply)

On shutdown the HTTP server drains, the cache connection closes and the
logger is flushed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		identity := appid.Get()
		observability.InitServerLogger(observability.ServerLoggerOptions{
			Service:     identity.BinaryName,
			Level:       cfg.Logging.Level,
			Environment: cfg.Environment,
			Namespace:   identity.BinaryName,
		})
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
			metrics.SetServerStartTime(time.Now().Unix())
			metrics.SetBuildInfo(versionInfo.Version, cfg.Cache.Settings().Mode(), cfg.Security.RateLimitStore)
		}

		svc, err := newServices(cfg, logger)
		if err != nil {
			return err
		}
		gate, closeGate, err := newGate(cfg, logger)
		if err != nil {
			_ = svc.Close()
			return err
		}

		if !svc.upstream.Configured() {
			logger.Warn("Esports provider token not set; API requests will fail until it is configured")
		}
		if !svc.odds.Enabled() {
			logger.Info("Odds assistant disabled (no inference API key)")
		}
		handlers.SetFeatureInfo(handlers.FeatureInfo{
			CacheMode:      cfg.Cache.Settings().Mode(),
			RateLimitStore: cfg.Security.RateLimitStore,
			Odds:           svc.odds.Enabled(),
		})
		if len(cfg.Security.AllowedOrigins) == 0 {
			logger.Warn("No allowed origins configured; browser requests to /api will be rejected")
		}

		logger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("version", versionInfo.Version),
			zap.String("environment", cfg.Environment),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.String("cache", cfg.Cache.Settings().Mode()),
			zap.String("rate_limit_store", cfg.Security.RateLimitStore),
			zap.Int("metrics_port", observability.GetMetricsPort()))

		hm := handlers.NewHealthManager(versionInfo.Version)
		hm.RegisterChecker("upstream", svc.upstream)
		hm.RegisterOptionalChecker("cache", svc.cache)
		if cfg.Metrics.Enabled {
			hm.RegisterOptionalChecker("telemetry", telemetryHealthChecker{})
		}

		srv := server.New(server.Options{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
			Catalog:      svc.catalog,
			Odds:         svc.odds,
			Gate:         gate,
			Health:       hm,
			AdminToken:   os.Getenv(appid.EnvVar("ADMIN_TOKEN")),
			PprofEnabled: cfg.Debug.PprofEnabled && !cfg.IsProduction(),
		})

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run LIFO: server, then cache, then logger.
		signals.OnShutdown(func(ctx context.Context) error {
			if err := logger.Sync(); err != nil {
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Closing cache and rate limit store...")
			if err := closeGate(); err != nil {
				logger.Warn("Rate limit store close failed", zap.Error(err))
			}
			if err := svc.Close(); err != nil {
				logger.Warn("Cache close failed", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
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
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					logger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				logger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapInvalidInput(ctx, err, "config reload failed")
			}
			if _, err := loadConfig(); err != nil {
				logger.Error("Reloaded config is invalid", zap.Error(err))
				return errwrap.WrapInvalidInput(ctx, err, "config reload failed")
			}
			logger.Info("Configuration re-read; restart to apply server and cache changes",
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
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
