package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestMigrateWithSQLite(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "games.db"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"migrate"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out.String(), "schema up to date") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestReadTranscript(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("1. e4 e5"))
	got, err := readTranscript(cmd, nil)
	if err != nil || got != "1. e4 e5" {
		t.Fatalf("stdin: %q, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "game.pgn")
	if err := os.WriteFile(path, []byte("1. d4 d5"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err = readTranscript(cmd, []string{path})
	if err != nil || got != "1. d4 d5" {
		t.Fatalf("file: %q, %v", got, err)
	}
}

func TestIngestRejectsBadArguments(t *testing.T) {
	rootCmd.SetArgs([]string{"ingest", "not-a-uuid"})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetErr(nil) })
	if err := rootCmd.Execute(); err == nil {
		t.Fatalf("expected error for bad user id")
	}
}
