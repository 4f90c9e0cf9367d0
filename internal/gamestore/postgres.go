package gamestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/park285/chess-insight/internal/domain"
)

type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects with the pool settings used in production and
// verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStore(db), nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	ddl, err := migrations.ReadFile("migrations/postgres.sql")
	if err != nil {
		return fmt.Errorf("read postgres schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(ddl)); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) Exists(ctx context.Context, owner uuid.UUID, externalID string) (bool, error) {
	if strings.TrimSpace(externalID) == "" {
		return false, nil
	}
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM user_games
			WHERE user_id = $1 AND chess_com_game_uuid = $2
		)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, owner, externalID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check game exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Create(ctx context.Context, owner uuid.UUID, game domain.NormalizedGame) (uuid.UUID, error) {
	if strings.TrimSpace(game.PGN) == "" {
		return uuid.Nil, fmt.Errorf("insert game: empty pgn")
	}
	const query = `
		INSERT INTO user_games (` + gameColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, chess_com_game_uuid) DO NOTHING
		RETURNING game_id`

	var id uuid.NullUUID
	err := s.db.QueryRowContext(ctx, query, insertArgs(uuid.New(), owner, game)...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return uuid.Nil, ErrDuplicateGame
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert game: %w", err)
	}
	return id.UUID, nil
}

func (s *PostgresStore) List(ctx context.Context, owner uuid.UUID, limit, offset int) ([]domain.StoredGame, error) {
	limit, offset = ClampPage(limit, offset)
	const query = `
		SELECT ` + gameColumns + `, created_at
		FROM user_games
		WHERE user_id = $1
		ORDER BY end_time DESC NULLS LAST, created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, owner, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select games: %w", err)
	}
	defer rows.Close()

	games := make([]domain.StoredGame, 0, limit)
	for rows.Next() {
		var (
			row       gameRow
			createdAt time.Time
		)
		if err := rows.Scan(append(row.dest(), &createdAt)...); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, row.toDomain(createdAt))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	return games, nil
}

func (s *PostgresStore) Count(ctx context.Context, owner uuid.UUID) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_games WHERE user_id = $1`, owner).Scan(&n); err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) LinkedUsername(ctx context.Context, owner uuid.UUID) (string, error) {
	var username string
	err := s.db.QueryRowContext(ctx, `SELECT chess_com_username FROM linked_accounts WHERE user_id = $1`, owner).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select linked account: %w", err)
	}
	return username, nil
}

func (s *PostgresStore) LinkUsername(ctx context.Context, owner uuid.UUID, username string) error {
	const query = `
		INSERT INTO linked_accounts (user_id, chess_com_username, linked_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET
			chess_com_username = EXCLUDED.chess_com_username,
			linked_at = EXCLUDED.linked_at`
	if _, err := s.db.ExecContext(ctx, query, owner, username); err != nil {
		return fmt.Errorf("upsert linked account: %w", err)
	}
	return nil
}
