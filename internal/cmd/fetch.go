package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fragstat/fragstat/internal/cachekey"
	"github.com/fragstat/fragstat/internal/catalog"
	"github.com/fragstat/fragstat/internal/observability"
	"github.com/fragstat/fragstat/internal/output"
)

var (
	fetchPage       int
	fetchStatus     string
	fetchGame       string
	fetchTournament string
	fetchSearch     string
	fetchSort       string
	fetchRefresh    bool
)

// fetchResult is a rendered resource plus whether it came from cache.
type fetchResult struct {
	doc output.Document
	hit bool
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <resource> [id]",
	Short: "Fetch a resource through the cache",
	Long: `Fetch a resource the same way the API does: from cache when present,
otherwise from the esports provider, storing the result.

Resources:
  games                      all games
  matches                    --page --status --game --tournament --search --sort
  match <id>                 one match with streams
  tournaments                --status --page
  standings <tournament-id>  tournament table
  teams                      --page
  roster <team-id>           team and players
  players                    --page
  home                       live matches, upcoming matches, running tournaments`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := resolveOutput(cmd)
		if err != nil {
			return err
		}

		resource, ok := cachekey.ParseResource(args[0])
		if !ok || resource == cachekey.ResourceOdds {
			return fmt.Errorf("unknown resource %q", args[0])
		}
		id := ""
		if len(args) == 2 {
			id = args[1]
		}

		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close() // nolint:errcheck // best-effort cleanup

		result, err := fetchResource(cmd.Context(), svc.catalog, resource, id)
		if err != nil {
			return err
		}
		observability.CLILogger.Debug("Fetched resource",
			zap.String("resource", string(resource)),
			zap.Bool("cache_hit", result.hit))

		name := string(resource)
		if id != "" {
			name += "-" + id
		}
		return writeDocument(cmd, target, name, result.doc)
	},
}

func fetchResource(ctx context.Context, svc *catalog.Service, resource cachekey.Resource, id string) (fetchResult, error) {
	needID := func() error {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%s requires an id argument", resource)
		}
		return nil
	}

	switch resource {
	case cachekey.ResourceGames:
		res, err := svc.Games(ctx, fetchRefresh)
		return fetchResult{output.Games(res.Value), res.Hit()}, err
	case cachekey.ResourceMatches:
		filters := cachekey.MatchFilters{
			Status:     fetchStatus,
			Game:       fetchGame,
			Tournament: fetchTournament,
			Search:     fetchSearch,
			Sort:       fetchSort,
		}
		res, err := svc.Matches(ctx, fetchPage, filters, fetchRefresh)
		return fetchResult{output.Matches(res.Value), res.Hit()}, err
	case cachekey.ResourceMatch:
		if err := needID(); err != nil {
			return fetchResult{}, err
		}
		res, err := svc.Match(ctx, id, fetchRefresh)
		return fetchResult{output.Match(res.Value), res.Hit()}, err
	case cachekey.ResourceTournaments:
		res, err := svc.Tournaments(ctx, fetchStatus, fetchPage, fetchRefresh)
		return fetchResult{output.Tournaments(res.Value), res.Hit()}, err
	case cachekey.ResourceStandings:
		if err := needID(); err != nil {
			return fetchResult{}, err
		}
		res, err := svc.Standings(ctx, id, fetchRefresh)
		return fetchResult{output.Standings(res.Value), res.Hit()}, err
	case cachekey.ResourceTeams:
		res, err := svc.Teams(ctx, fetchPage, fetchRefresh)
		return fetchResult{output.Teams(res.Value), res.Hit()}, err
	case cachekey.ResourceRoster:
		if err := needID(); err != nil {
			return fetchResult{}, err
		}
		res, err := svc.Roster(ctx, id, fetchRefresh)
		return fetchResult{output.Roster(res.Value), res.Hit()}, err
	case cachekey.ResourcePlayers:
		res, err := svc.Players(ctx, fetchPage, fetchRefresh)
		return fetchResult{output.Players(res.Value), res.Hit()}, err
	case cachekey.ResourceHome:
		res, err := svc.Home(ctx, fetchRefresh)
		return fetchResult{output.Home(res.Value), res.Hit()}, err
	default:
		return fetchResult{}, fmt.Errorf("resource %q cannot be fetched", resource)
	}
}

// writeDocument renders doc to the resolved target, falling back to the
// command's stdout.
func writeDocument(cmd *cobra.Command, target outputTarget, name string, doc output.Document) error {
	rendered, err := output.Render(target.format, doc)
	if err != nil {
		return err
	}
	path, err := target.file(name)
	if err != nil {
		return err
	}
	sink, err := openSink(cmd.OutOrStdout(), path)
	if err != nil {
		return err
	}
	defer sink.close() // nolint:errcheck // best-effort cleanup

	if _, err := fmt.Fprintln(sink.writer, rendered); err != nil {
		return err
	}
	if sink.path != "-" {
		observability.CLILogger.Info("Wrote output", zap.String("path", sink.path))
	}
	return nil
}

// addOutputFlags registers the shared --output-format, --out and --out-dir flags.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output-format", "o", "table", "output format: table, json, markdown")
	cmd.Flags().String("out", "", "write output to this file instead of stdout")
	cmd.Flags().String("out-dir", "", "write output into this directory with a generated name")
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().IntVar(&fetchPage, "page", 1, "page number")
	fetchCmd.Flags().StringVar(&fetchStatus, "status", "", "running, upcoming or past")
	fetchCmd.Flags().StringVar(&fetchGame, "game", "", "game slug or id (matches)")
	fetchCmd.Flags().StringVar(&fetchTournament, "tournament", "", "tournament id (matches)")
	fetchCmd.Flags().StringVar(&fetchSearch, "search", "", "match name search (matches)")
	fetchCmd.Flags().StringVar(&fetchSort, "sort", "", "provider sort expression (matches)")
	fetchCmd.Flags().BoolVar(&fetchRefresh, "refresh", false, "bypass the cache read")
	addOutputFlags(fetchCmd)
}
