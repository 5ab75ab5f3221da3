package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fragstat/fragstat/internal/appid"
	"github.com/fragstat/fragstat/internal/config"
	"github.com/fragstat/fragstat/internal/esports"
	"github.com/fragstat/fragstat/internal/observability"
)

var (
	doctorOffline   bool
	doctorInitForce bool
	doctorInitToken string
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks against the runtime, configuration, cache,
esports provider and odds assistant, and suggest fixes for common issues.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := observability.CLILogger
		log.Info("=== " + appid.Get().BinaryName + " doctor ===")
		log.Info("")

		failed := false
		const total = 7
		step := func(n int, what string) string { return fmt.Sprintf("[%d/%d] Checking %s...", n, total, what) }

		goVersion := runtime.Version()
		if goVersion >= "go1.23" {
			log.Info(step(1, "Go version")+" ✅ "+goVersion, zap.String("go_version", goVersion))
		} else {
			log.Warn(step(1, "Go version")+" ⚠️  "+goVersion+" (recommended: go1.23+)", zap.String("go_version", goVersion))
		}

		version := crucible.GetVersion()
		if version.Gofulmen != "" {
			log.Info(fmt.Sprintf("%s ✅ gofulmen v%s, crucible v%s", step(2, "Fulmen libraries"), version.Gofulmen, version.Crucible))
		} else {
			log.Warn(step(2, "Fulmen libraries") + " ⚠️  version metadata unavailable")
		}

		if path := defaultConfigPath(); path == "" {
			log.Warn(step(3, "config directory") + " ⚠️  cannot resolve user config directory")
		} else {
			log.Info(fmt.Sprintf("%s ✅ %s (%s)", step(3, "config directory"), filepath.Dir(path), existenceStatus(fileExists(path))))
		}

		cfg, cfgErr := loadConfig()
		if cfgErr != nil {
			log.Error(step(4, "configuration")+" ❌ invalid", zap.Error(cfgErr))
			log.Warn("Remaining checks skipped (config not loaded)")
			return fmt.Errorf("%w: %v", errConfig, cfgErr)
		}
		source := viper.ConfigFileUsed()
		if source == "" {
			source = "defaults and environment"
		}
		log.Info(fmt.Sprintf("%s ✅ %s (%s)", step(4, "configuration"), cfg.Environment, source))

		svc, err := newServices(cfg, log)
		if err != nil {
			return err
		}
		defer svc.Close() // nolint:errcheck // best-effort cleanup

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		mode := cfg.Cache.Settings().Mode()
		switch {
		case !svc.cache.Configured():
			log.Warn(step(5, "cache") + " ⚠️  not configured (every request reaches the provider)")
		case svc.cache.CheckHealth(ctx) != nil:
			log.Error(step(5, "cache")+" ❌ "+mode+" unreachable", zap.Error(svc.cache.LastError()))
			failed = true
		default:
			log.Info(step(5, "cache") + " ✅ " + mode)
		}

		switch {
		case !svc.upstream.Configured():
			log.Error(fmt.Sprintf("%s ❌ token not set (set %s)", step(6, "esports provider"), appid.EnvVar("UPSTREAM_TOKEN")))
			failed = true
		case doctorOffline:
			log.Info(step(6, "esports provider") + " ✅ token set (offline, not probed)")
		default:
			start := time.Now()
			if _, err := svc.upstream.ListGames(ctx); err != nil {
				log.Error(step(6, "esports provider")+" ❌ probe failed", zap.Error(err))
				if esports.IsNotFound(err) {
					log.Info("       Check upstream.base_url.")
				}
				failed = true
			} else {
				log.Info(fmt.Sprintf("%s ✅ %s (%s)", step(6, "esports provider"), cfg.Upstream.BaseURL, time.Since(start).Round(time.Millisecond)))
			}
		}

		if svc.odds.Enabled() {
			log.Info(fmt.Sprintf("%s ✅ %s via %s", step(7, "odds assistant"), cfg.Odds.Model, cfg.Odds.BaseURL))
		} else {
			log.Warn(fmt.Sprintf("%s ⚠️  disabled (set %s to enable)", step(7, "odds assistant"), appid.EnvVar("ODDS_API_KEY")))
		}

		log.Info("")
		if failed {
			log.Warn("⚠️  Some checks failed. Review the output above for details.")
			return fmt.Errorf("%w: doctor checks failed", errUnavailable)
		}
		log.Info("✅ All checks passed!")
		return nil
	},
}

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := defaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}
		if fileExists(configPath) && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		token := strings.TrimSpace(doctorInitToken)
		if strings.EqualFold(token, "prompt") {
			value, err := promptForValue(cmd.OutOrStdout(), cmd.InOrStdin(), "Enter esports provider token (leave blank to skip): ")
			if err != nil {
				return err
			}
			token = value
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		mode := os.FileMode(0644)
		if token != "" {
			mode = 0600
		}
		if err := os.WriteFile(configPath, []byte(buildInitConfig(token)), mode); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return fmt.Errorf("%w: %v", errConfig, err)
		}
		path := viper.ConfigFileUsed()
		if path == "" {
			path = "(no file)"
		}
		observability.CLILogger.Info("Config is valid", zap.String("path", path))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd, doctorValidateCmd)

	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false, "skip the live provider probe")
	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
	doctorInitCmd.Flags().StringVar(&doctorInitToken, "token", "", "esports provider token, or 'prompt' to enter it")
}

func defaultConfigPath() string {
	dir := gfconfig.GetAppConfigDir(appid.Get().ConfigName)
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

func buildInitConfig(token string) string {
	name := appid.Get().BinaryName
	lines := []string{
		fmt.Sprintf("# %s config - created by '%s doctor init'", name, name),
		"environment: " + config.EnvDevelopment,
		"server:",
		"  host: localhost",
		"  port: 8080",
		"cache:",
		"  # url: redis://localhost:6379/0",
		"  key_prefix: \"\"",
		"security:",
		"  allowed_origins:",
		"    - http://localhost:3000",
		"  rate_limit_window: 3m",
		"  rate_limit_max: 100",
		"upstream:",
		"  base_url: https://api.pandascore.co",
	}
	if token != "" {
		lines = append(lines, fmt.Sprintf("  token: %q", token))
	} else {
		lines = append(lines, fmt.Sprintf("  # token: \"\"  # or set %s", appid.EnvVar("UPSTREAM_TOKEN")))
	}
	lines = append(lines,
		"odds:",
		"  model: gpt-4o-mini",
		fmt.Sprintf("  # api_key: \"\"  # or set %s", appid.EnvVar("ODDS_API_KEY")),
	)
	return strings.Join(lines, "\n") + "\n"
}

func promptForValue(out io.Writer, in io.Reader, prompt string) (string, error) {
	if _, err := fmt.Fprint(out, prompt); err != nil {
		return "", err
	}
	value, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func existenceStatus(exists bool) string {
	if exists {
		return "exists"
	}
	return "missing"
}

func envStatus(name string) string {
	if strings.TrimSpace(os.Getenv(name)) != "" {
		return "(set)"
	}
	return "(not set)"
}
