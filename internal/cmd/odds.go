package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fragstat/fragstat/internal/appid"
	"github.com/fragstat/fragstat/internal/observability"
	"github.com/fragstat/fragstat/internal/odds"
	"github.com/fragstat/fragstat/internal/output"
)

var oddsRefresh bool

var oddsCmd = &cobra.Command{
	Use:   "odds <match-id>",
	Short: "Estimate win probabilities for an upcoming match",
	Long: fmt.Sprintf(`Ask the configured language model for win probabilities of both teams
in a match. Estimates are cached per match; --refresh asks again.

Requires an inference API key (%s).`, appid.EnvVar("ODDS_API_KEY")),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := resolveOutput(cmd)
		if err != nil {
			return err
		}

		matchID := strings.TrimSpace(args[0])
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close() // nolint:errcheck // best-effort cleanup

		if !svc.odds.Enabled() {
			return fmt.Errorf("%w: %v", errConfig, odds.ErrDisabled)
		}

		result, err := svc.odds.Predict(cmd.Context(), matchID, oddsRefresh)
		if err != nil {
			return err
		}
		observability.CLILogger.Debug("Odds estimate ready",
			zap.String("match_id", matchID),
			zap.Bool("cache_hit", result.Hit()))

		return writeDocument(cmd, target, "odds-"+matchID, output.Odds(result.Value))
	},
}

func init() {
	rootCmd.AddCommand(oddsCmd)

	oddsCmd.Flags().BoolVar(&oddsRefresh, "refresh", false, "ignore a cached estimate")
	addOutputFlags(oddsCmd)
}
