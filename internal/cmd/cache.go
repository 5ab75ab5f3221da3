package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fragstat/fragstat/internal/cachekey"
	"github.com/fragstat/fragstat/internal/observability"
)

var (
	cachePurgeAll bool
	cachePurgeYes bool
	cacheGetRaw   bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the resource cache",
}

var cachePingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check connectivity to the configured cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close() // nolint:errcheck // best-effort cleanup

		out := cmd.OutOrStdout()
		mode := svc.cfg.Cache.Settings().Mode()
		if !svc.cache.Configured() {
			fmt.Fprintf(out, "Cache: %s (not configured, requests pass through to the provider)\n", mode)
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		start := time.Now()
		if err := svc.cache.CheckHealth(ctx); err != nil {
			fmt.Fprintf(out, "Cache: %s unreachable (%v)\n", mode, err)
			return fmt.Errorf("%w: cache: %v", errUnavailable, err)
		}
		fmt.Fprintf(out, "Cache: %s %s (%s)\n", mode, svc.cache.State(), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a cached value",
	Long: `Print the value stored under a cache key, for example
resource:games:all or resource:match:1001. JSON values are indented
unless --raw is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close() // nolint:errcheck // best-effort cleanup

		key := strings.TrimSpace(args[0])
		value, ok := svc.cache.Get(cmd.Context(), key)
		if !ok {
			if err := svc.cache.LastError(); err != nil {
				return fmt.Errorf("%w: cache: %v", errUnavailable, err)
			}
			return fmt.Errorf("key %q not found", key)
		}

		out := cmd.OutOrStdout()
		if !cacheGetRaw {
			var buf bytes.Buffer
			if err := json.Indent(&buf, value, "", "  "); err == nil {
				value = buf.Bytes()
			}
		}
		_, err = fmt.Fprintln(out, string(value))
		return err
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge [resource]",
	Short: "Delete cached entries for a resource",
	Long: fmt.Sprintf(`Delete every cached entry of one resource, or of all resources with --all.

Resources: %s`, resourceNames()),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cachePurgeAll == (len(args) == 1) {
			return errors.New("specify exactly one of a resource name or --all")
		}
		if cachePurgeAll && !cachePurgeYes {
			return errors.New("--all requires --yes")
		}

		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close() // nolint:errcheck // best-effort cleanup

		if !svc.cache.Configured() {
			fmt.Fprintln(cmd.OutOrStdout(), "Cache not configured; nothing to purge")
			return nil
		}

		var (
			removed int
			target  string
		)
		if cachePurgeAll {
			target = "all"
			removed = svc.catalog.PurgeAll(cmd.Context())
		} else {
			resource, ok := cachekey.ParseResource(args[0])
			if !ok {
				return fmt.Errorf("unknown resource %q (expected one of: %s)", args[0], resourceNames())
			}
			target = string(resource)
			removed = svc.catalog.Purge(cmd.Context(), resource)
		}
		if err := svc.cache.LastError(); err != nil && removed == 0 {
			return fmt.Errorf("%w: cache: %v", errUnavailable, err)
		}

		observability.CLILogger.Debug("Cache purge complete", zap.String("target", target), zap.Int("removed", removed))
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached entries (%s)\n", removed, target)
		return nil
	},
}

func resourceNames() string {
	names := make([]string, 0, len(cachekey.Resources))
	for _, r := range cachekey.Resources {
		names = append(names, string(r))
	}
	return strings.Join(names, ", ")
}

// openServices loads config and wires the domain services for a CLI command.
func openServices() (*services, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errConfig, err)
	}
	return newServices(cfg, observability.CLILogger)
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cachePingCmd, cacheGetCmd, cachePurgeCmd)

	cacheGetCmd.Flags().BoolVar(&cacheGetRaw, "raw", false, "print the stored bytes unchanged")
	cachePurgeCmd.Flags().BoolVar(&cachePurgeAll, "all", false, "purge every resource")
	cachePurgeCmd.Flags().BoolVar(&cachePurgeYes, "yes", false, "confirm --all")
}
