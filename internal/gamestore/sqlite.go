package gamestore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/park285/chess-insight/internal/domain"
)

// SQLiteStore keeps games in a single local database file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{`PRAGMA journal_mode=wal;`, `PRAGMA busy_timeout=5000;`, `PRAGMA foreign_keys=on;`} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "apply %s", pragma)
		}
	}
	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	ddl, err := migrations.ReadFile("migrations/sqlite.sql")
	if err != nil {
		return errors.Wrap(err, "read sqlite schema")
	}
	_, err = s.db.ExecContext(ctx, string(ddl))
	return errors.Wrap(err, "apply sqlite schema")
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Exists(ctx context.Context, owner uuid.UUID, externalID string) (bool, error) {
	if strings.TrimSpace(externalID) == "" {
		return false, nil
	}
	const q = `SELECT EXISTS (SELECT 1 FROM user_games WHERE user_id = ? AND chess_com_game_uuid = ?);`
	var exists bool
	if err := s.db.QueryRowContext(ctx, q, owner.String(), externalID).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "check game exists")
	}
	return exists, nil
}

func (s *SQLiteStore) Create(ctx context.Context, owner uuid.UUID, game domain.NormalizedGame) (uuid.UUID, error) {
	if strings.TrimSpace(game.PGN) == "" {
		return uuid.Nil, errors.New("insert game: empty pgn")
	}
	const q = `INSERT INTO user_games (` + gameColumns + `, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT DO NOTHING;`

	id := uuid.New()
	args := insertArgs(id, owner, game)
	args[0], args[1] = id.String(), owner.String()
	args = append(args, s.now().UTC().Format(time.RFC3339Nano))

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "insert game")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "insert game rows affected")
	}
	if n == 0 {
		return uuid.Nil, ErrDuplicateGame
	}
	return id, nil
}

func (s *SQLiteStore) List(ctx context.Context, owner uuid.UUID, limit, offset int) ([]domain.StoredGame, error) {
	limit, offset = ClampPage(limit, offset)
	const q = `SELECT ` + gameColumns + `, created_at
FROM user_games
WHERE user_id = ?
ORDER BY end_time IS NULL, end_time DESC, created_at DESC
LIMIT ? OFFSET ?;`

	rows, err := s.db.QueryContext(ctx, q, owner.String(), limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "list games")
	}
	defer rows.Close()

	games := make([]domain.StoredGame, 0, limit)
	for rows.Next() {
		var (
			row     gameRow
			created string
		)
		if err := rows.Scan(append(row.dest(), &created)...); err != nil {
			return nil, errors.Wrap(err, "scan game")
		}
		createdAt, _ := time.Parse(time.RFC3339Nano, created)
		games = append(games, row.toDomain(createdAt))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate games")
	}
	return games, nil
}

func (s *SQLiteStore) Count(ctx context.Context, owner uuid.UUID) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_games WHERE user_id = ?;`, owner.String()).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count games")
	}
	return n, nil
}

func (s *SQLiteStore) LinkedUsername(ctx context.Context, owner uuid.UUID) (string, error) {
	var username string
	err := s.db.QueryRowContext(ctx, `SELECT chess_com_username FROM linked_accounts WHERE user_id = ?;`, owner.String()).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "select linked account")
	}
	return username, nil
}

func (s *SQLiteStore) LinkUsername(ctx context.Context, owner uuid.UUID, username string) error {
	const q = `INSERT INTO linked_accounts (user_id, chess_com_username, linked_at)
VALUES (?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
  chess_com_username = excluded.chess_com_username,
  linked_at = excluded.linked_at;`
	_, err := s.db.ExecContext(ctx, q, owner.String(), username, s.now().UTC().Format(time.RFC3339Nano))
	return errors.Wrap(err, "upsert linked account")
}
