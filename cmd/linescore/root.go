package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"OddsPulse/internal/domain/models"
	"OddsPulse/internal/services/scoring"
	xhttp "OddsPulse/pkg/http"
)

// scoreFlags holds the snapshot flags shared by the asian and size commands.
type scoreFlags struct {
	initialHandicap float64
	currentHandicap float64
	initialWater    float64
	currentWater    float64
	history         string
	server          string
	timeout         time.Duration
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "linescore",
		Short: "Score handicap and over/under line movements",
		Long: `linescore turns an opening and current betting line into a recommendation.

Available subcommands:
  asian  - score an Asian handicap line (upper vs lower)
  size   - score an over/under line (large vs small)
  rules  - list the rules a scorer evaluates
  stream - score snapshots from stdin over the server's websocket`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newScoreCmd(models.HandicapAsian, "Score an Asian handicap line"),
		newScoreCmd(models.HandicapSize, "Score an over/under line"),
		newRulesCmd(),
		newStreamCmd(),
	)
	return root
}

func newScoreCmd(t models.HandicapType, short string) *cobra.Command {
	f := &scoreFlags{}
	cmd := &cobra.Command{
		Use:   string(t),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range []string{"initial-water", "current-water"} {
				if !cmd.Flags().Changed(name) {
					return fmt.Errorf("--%s is required", name)
				}
			}
			if f.initialWater <= 0 || f.currentWater <= 0 {
				return fmt.Errorf("water must be positive")
			}

			var (
				rec *models.Recommendation
				err error
			)
			if f.server != "" {
				rec, err = scoreRemote(cmd.Context(), t, f)
			} else {
				rec, err = scoreLocal(t, f)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}

	fl := cmd.Flags()
	fl.Float64Var(&f.initialHandicap, "initial-handicap", 0, "opening handicap or total line")
	fl.Float64Var(&f.currentHandicap, "current-handicap", 0, "current handicap or total line")
	fl.Float64Var(&f.initialWater, "initial-water", 0, "opening water (odds)")
	fl.Float64Var(&f.currentWater, "current-water", 0, "current water (odds)")
	fl.StringVar(&f.history, "history", string(models.HistoryUnknown), "previous outcome: win, loss or unknown")
	fl.StringVar(&f.server, "server", "", "OddsPulse base URL; scores locally when empty")
	fl.DurationVar(&f.timeout, "timeout", 10*time.Second, "request timeout with --server")
	return cmd
}

func scoreLocal(t models.HandicapType, f *scoreFlags) (*models.Recommendation, error) {
	scorer, ok := scoring.NewRegistry().Get(t)
	if !ok {
		return nil, fmt.Errorf("no scorer for %q", t)
	}
	rec := scorer.Score(models.NewSnapshot(f.initialHandicap, f.currentHandicap, f.initialWater, f.currentWater, f.history))
	return &rec, nil
}

func scoreRemote(ctx context.Context, t models.HandicapType, f *scoreFlags) (*models.Recommendation, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	client := xhttp.NewClient(f.server, xhttp.WithTimeout(f.timeout))
	req := snapshotRequest(t, f)
	var rec models.Recommendation
	if err := client.Do(ctx, &xhttp.RequestOptions{
		Method: http.MethodPost,
		Path:   "/api/recommend",
		Body:   req,
	}, &rec); err != nil {
		return nil, fmt.Errorf("recommend via %s: %w", f.server, err)
	}
	return &rec, nil
}

func snapshotRequest(t models.HandicapType, f *scoreFlags) *models.RecommendRequest {
	ih, ch, iw, cw := f.initialHandicap, f.currentHandicap, f.initialWater, f.currentWater
	return &models.RecommendRequest{
		Type: string(t),
		SnapshotFields: models.SnapshotFields{
			InitialHandicap:  &ih,
			CurrentHandicap:  &ch,
			InitialWater:     &iw,
			CurrentWater:     &cw,
			HistoricalRecord: string(models.NormalizeHistory(f.history)),
		},
	}
}

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules [asian|size]",
		Short: "List the rules a scorer evaluates, in order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			types := []models.HandicapType{models.HandicapAsian, models.HandicapSize}
			if len(args) == 1 {
				types = []models.HandicapType{models.HandicapType(args[0])}
			}
			return printRules(cmd.OutOrStdout(), types)
		},
	}
}

func printRules(w io.Writer, types []models.HandicapType) error {
	var scorers = map[models.HandicapType]*scoring.Scorer{
		models.HandicapAsian: scoring.NewAsianScorer(),
		models.HandicapSize:  scoring.NewSizeScorer(),
	}
	for _, t := range types {
		s, ok := scorers[t]
		if !ok {
			return fmt.Errorf("unknown handicap type %q", t)
		}
		fmt.Fprintf(w, "%s:\n", t)
		for i, r := range s.Rules() {
			fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, r.Kind, r.Name)
		}
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
