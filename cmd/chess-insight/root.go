package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/park285/chess-insight/internal/chessbuilder"
	"github.com/park285/chess-insight/internal/config"
	"github.com/park285/chess-insight/internal/obslog"
)

var (
	configPath string
	verbose    bool

	cfg *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "chess-insight",
	Short: "Import chess.com games and analyse positions",
	Long: `chess-insight pulls a player's monthly game archives from chess.com,
stores new games per user, and evaluates positions with a UCI engine.

Configuration comes from an optional YAML file and environment variables
(environment wins).

Examples:
  # Run the HTTP API
  chess-insight serve --config ./config.yaml

  # Import the last year of blitz games for a linked user
  chess-insight ingest 3f0c... --timeframe 1_year --types blitz

  # Analyse the final position of a PGN file
  chess-insight analyze game.pgn`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		settings := obslog.SettingsFromEnv()
		if verbose {
			settings.Level = "debug"
		}
		if err := obslog.Init(settings); err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		obslog.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func buildDeps(ctx context.Context) (*chessbuilder.Deps, error) {
	d, err := chessbuilder.New(ctx, cfg, obslog.L())
	if err != nil {
		obslog.L().Error("build dependencies", zap.Error(err))
		return nil, err
	}
	return d, nil
}
