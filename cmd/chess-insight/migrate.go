package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/park285/chess-insight/internal/chessbuilder"
	"github.com/park285/chess-insight/internal/obslog"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the game store schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := chessbuilder.OpenStore(cmd.Context(), cfg.Store, obslog.L())
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
