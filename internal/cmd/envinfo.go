package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fragstat/fragstat/internal/appid"
	"github.com/fragstat/fragstat/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration and version information. Secrets are reported as set or not set.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()
		identity := appid.Get()

		log.Info("=== " + identity.BinaryName + " environment ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + identity.BinaryName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info(fmt.Sprintf("  Platform:   %s/%s", runtime.GOOS, runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := loadConfig()
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			configFile = "(none, default path " + defaultConfigPath() + ")"
		}

		log.Info("Configuration:")
		log.Info("  Config File:    " + configFile)
		log.Info("  Environment:    " + cfg.Environment)
		log.Info(fmt.Sprintf("  Server:         %s:%d", cfg.Server.Host, cfg.Server.Port))
		log.Info("  Log Level:      " + cfg.Logging.Level)
		log.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		log.Info(fmt.Sprintf("  Pprof:          %t", cfg.Debug.PprofEnabled && !cfg.IsProduction()))
		log.Info("")

		log.Info("Cache:")
		log.Info("  Mode:           " + cfg.Cache.Settings().Mode())
		log.Info("  Key Prefix:     " + fallbackText(cfg.Cache.KeyPrefix, "(none)"))
		log.Info("  Default TTL:    " + cfg.Cache.DefaultTTL.String())
		log.Info("")

		log.Info("Security:")
		log.Info("  Allowed Origins: " + fallbackText(strings.Join(cfg.Security.AllowedOrigins, ", "), "(none)"))
		log.Info(fmt.Sprintf("  API Keys:        %d configured", len(cfg.Security.ValidAPIKeys)))
		log.Info(fmt.Sprintf("  Rate Limit:      %d per %s (%s store)", cfg.Security.RateLimitMax, cfg.Security.RateLimitWindow, cfg.Security.RateLimitStore))
		log.Info("")

		log.Info("Upstream:")
		log.Info("  Base URL:       " + cfg.Upstream.BaseURL)
		log.Info("  Token:          " + setStatus(cfg.Upstream.Token))
		log.Info(fmt.Sprintf("  Rate:           %.1f req/s (burst %d)", cfg.Upstream.RequestsPerSecond, cfg.Upstream.Burst))
		log.Info("")

		log.Info("Odds:")
		log.Info(fmt.Sprintf("  Enabled:        %t", cfg.Odds.Enabled()))
		log.Info("  Model:          " + cfg.Odds.Model)
		log.Info("  API Key:        " + setStatus(cfg.Odds.APIKey))
		log.Info("")

		log.Info("Environment:")
		log.Info("  " + appid.EnvVar("ADMIN_TOKEN") + ": " + envStatus(appid.EnvVar("ADMIN_TOKEN")))
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}

func setStatus(secret string) string {
	if strings.TrimSpace(secret) != "" {
		return "(set)"
	}
	return "(not set)"
}

func fallbackText(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
