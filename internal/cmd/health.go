package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fragstat/fragstat/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Verify the binary can start: version metadata, logger and a valid
configuration. Use "doctor" to probe the cache and upstream provider.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.CLILogger
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			logger.Error("FAIL: version information missing")
			return fmt.Errorf("%w: version information missing", errConfig)
		}
		logger.Info("OK: version information available", zap.String("version", versionInfo.Version))

		cfg, err := loadConfig()
		if err != nil {
			logger.Error("FAIL: configuration invalid", zap.Error(err))
			return fmt.Errorf("%w: %v", errConfig, err)
		}
		logger.Info("OK: configuration valid",
			zap.String("environment", cfg.Environment),
			zap.String("cache", cfg.Cache.Settings().Mode()),
			zap.Bool("upstream_token", cfg.Upstream.Token != ""),
			zap.Bool("odds_enabled", cfg.Odds.Enabled()))

		logger.Info("All health checks passed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
