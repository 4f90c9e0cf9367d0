package gamestore

import (
	"context"
	"os"
	"testing"
)

// Set CHESS_INSIGHT_TEST_POSTGRES to a disposable database DSN to run.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("CHESS_INSIGHT_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("CHESS_INSIGHT_TEST_POSTGRES not set")
	}
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := OpenPostgres(context.Background(), dsn)
		if err != nil {
			t.Fatalf("open postgres: %v", err)
		}
		if err := s.Migrate(context.Background()); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
