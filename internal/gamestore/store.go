package gamestore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/park285/chess-insight/internal/domain"
)

// ErrDuplicateGame reports that (owner, external id) is already stored.
var ErrDuplicateGame = errors.New("game already stored")

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

//go:embed migrations/*.sql
var migrations embed.FS

type GameStore interface {
	Exists(ctx context.Context, owner uuid.UUID, externalID string) (bool, error)
	Create(ctx context.Context, owner uuid.UUID, game domain.NormalizedGame) (uuid.UUID, error)
	// List returns games newest first by end time; games without an end
	// time come last.
	List(ctx context.Context, owner uuid.UUID, limit, offset int) ([]domain.StoredGame, error)
	Count(ctx context.Context, owner uuid.UUID) (int, error)
}

type AccountStore interface {
	// LinkedUsername returns "" when the owner has not linked an account.
	LinkedUsername(ctx context.Context, owner uuid.UUID) (string, error)
	LinkUsername(ctx context.Context, owner uuid.UUID, username string) error
}

type Store interface {
	GameStore
	AccountStore
	Migrate(ctx context.Context) error
	Close() error
}

// ClampPage normalizes paging arguments.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

const gameColumns = `game_id, user_id, pgn, tcn, chess_com_username, chess_com_game_uuid, end_time,
	time_class, time_control, white_username, white_result, black_username, black_result`

// gameRow holds the nullable column set shared by the SQL stores.
type gameRow struct {
	id          uuid.UUID
	owner       uuid.UUID
	pgn         string
	tcn         sql.NullString
	username    string
	externalID  sql.NullString
	endTime     sql.NullInt64
	timeClass   sql.NullString
	timeControl sql.NullString
	whiteUser   sql.NullString
	whiteResult sql.NullString
	blackUser   sql.NullString
	blackResult sql.NullString
}

func (r *gameRow) dest() []any {
	return []any{
		&r.id, &r.owner, &r.pgn, &r.tcn, &r.username, &r.externalID, &r.endTime,
		&r.timeClass, &r.timeControl, &r.whiteUser, &r.whiteResult, &r.blackUser, &r.blackResult,
	}
}

func (r *gameRow) toDomain(createdAt time.Time) domain.StoredGame {
	g := domain.StoredGame{
		ID:        r.id,
		OwnerID:   r.owner,
		CreatedAt: createdAt,
		NormalizedGame: domain.NormalizedGame{
			ExternalID:    r.externalID.String,
			PGN:           r.pgn,
			TCN:           r.tcn.String,
			OwnerUsername: r.username,
			TimeClass:     domain.SpeedCategory(r.timeClass.String),
			TimeControl:   r.timeControl.String,
			WhiteUsername: r.whiteUser.String,
			WhiteResult:   r.whiteResult.String,
			BlackUsername: r.blackUser.String,
			BlackResult:   r.blackResult.String,
		},
	}
	if r.endTime.Valid {
		end := r.endTime.Int64
		g.EndTime = &end
	}
	return g
}

// insertArgs orders game values after (game_id, user_id) to match gameColumns.
func insertArgs(id, owner uuid.UUID, g domain.NormalizedGame) []any {
	return []any{
		id, owner, g.PGN, nullString(g.TCN), g.OwnerUsername, nullString(g.ExternalID), nullInt64(g.EndTime),
		nullString(string(g.TimeClass)), nullString(g.TimeControl),
		nullString(g.WhiteUsername), nullString(g.WhiteResult), nullString(g.BlackUsername), nullString(g.BlackResult),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
