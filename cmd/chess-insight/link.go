package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var linkCmd = &cobra.Command{
	Use:   "link USER_ID USERNAME",
	Short: "Link a chess.com username to a user",
	Args:  cobra.ExactArgs(2),
	RunE:  runLink,
}

func init() {
	rootCmd.AddCommand(linkCmd)
}

func runLink(cmd *cobra.Command, args []string) error {
	owner, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	deps, err := buildDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer deps.Close()

	name, err := deps.Coordinator.LinkAccount(cmd.Context(), owner, args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "linked %s to %s\n", name, owner)
	return nil
}
