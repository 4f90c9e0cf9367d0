package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/park285/chess-insight/internal/archive"
	"github.com/park285/chess-insight/internal/chessbuilder"
	"github.com/park285/chess-insight/internal/domain"
	"github.com/park285/chess-insight/internal/obslog"
)

var (
	fetchTimeframe string
	fetchTypes     []string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch USERNAME",
	Short: "Stream a player's archived games as JSON lines without storing them",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchTimeframe, "timeframe", string(domain.DefaultTimeframe), "archive window")
	fetchCmd.Flags().StringSliceVar(&fetchTypes, "types", nil, "game types to keep")
	rootCmd.AddCommand(fetchCmd)
}

type fetchedGame struct {
	ExternalID  string  `json:"uuid,omitempty"`
	EndTime     *int64  `json:"end_time,omitempty"`
	TimeClass   string  `json:"time_class"`
	TimeControl string  `json:"time_control,omitempty"`
	White       string  `json:"white,omitempty"`
	WhiteResult string  `json:"white_result,omitempty"`
	Black       string  `json:"black,omitempty"`
	BlackResult string  `json:"black_result,omitempty"`
	PGN         string  `json:"pgn"`
	TCN         *string `json:"tcn,omitempty"`
}

func runFetch(cmd *cobra.Command, args []string) error {
	username, err := archive.ValidateUsername(args[0])
	if err != nil {
		return err
	}
	logger := obslog.L()
	client := chessbuilder.NewArchiveClient(cfg.Archive)
	fetcher := archive.NewFetcher(client, archive.FetcherConfig{
		RequestsPerSecond: cfg.Archive.RequestsPerSecond,
	}, logger.Named("archive"), nil)

	enc := json.NewEncoder(cmd.OutOrStdout())
	req := archive.FetchRequest{Username: username, Timeframe: domain.Timeframe(fetchTimeframe), Speeds: fetchTypes}
	for g := range fetcher.Fetch(cmd.Context(), req) {
		out := fetchedGame{
			ExternalID:  g.ExternalID,
			EndTime:     g.EndTime,
			TimeClass:   string(g.TimeClass),
			TimeControl: g.TimeControl,
			White:       g.WhiteUsername,
			WhiteResult: g.WhiteResult,
			Black:       g.BlackUsername,
			BlackResult: g.BlackResult,
			PGN:         g.PGN,
		}
		if g.TCN != "" {
			tcn := g.TCN
			out.TCN = &tcn
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return cmd.Context().Err()
}
