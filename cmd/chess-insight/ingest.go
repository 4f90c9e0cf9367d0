package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/park285/chess-insight/internal/domain"
)

var (
	ingestTimeframe string
	ingestTypes     []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest USER_ID",
	Short: "Fetch and store new games for a linked user",
	Long: `Walk the linked chess.com account's monthly archives over the chosen
timeframe and store every game not already kept for the user.

Timeframes: 3_months, 1_year, 5_years, 10_years.
Game types: rapid, blitz, bullet (others are ignored; none means all three).`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTimeframe, "timeframe", string(domain.DefaultTimeframe), "archive window")
	ingestCmd.Flags().StringSliceVar(&ingestTypes, "types", nil, "game types to keep")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	owner, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	tf := domain.Timeframe(ingestTimeframe)
	if !tf.Valid() {
		return fmt.Errorf("unknown timeframe %q", ingestTimeframe)
	}

	deps, err := buildDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer deps.Close()

	summary, err := deps.Coordinator.FetchAndStoreGames(cmd.Context(), owner, tf, ingestTypes)
	if err != nil {
		return err
	}
	username, _ := deps.Store.LinkedUsername(cmd.Context(), owner)
	fmt.Fprintln(cmd.OutOrStdout(), deps.Messages.Text("ingest.summary", map[string]any{
		"Username":   username,
		"Fetched":    summary.Fetched,
		"Added":      summary.Added,
		"Duplicates": summary.Duplicates,
		"Failed":     summary.Failed,
	}, fmt.Sprintf("fetched=%d added=%d", summary.Fetched, summary.Added)))
	return nil
}
