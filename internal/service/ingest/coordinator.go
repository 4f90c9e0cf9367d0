package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-insight/internal/archive"
	"github.com/park285/chess-insight/internal/domain"
	"github.com/park285/chess-insight/internal/gamestore"
	"github.com/park285/chess-insight/internal/metrics"
)

var ErrPlayerNotFound = errors.New("chess.com player not found")

// Collector materializes one archive window.
type Collector interface {
	Collect(ctx context.Context, req archive.FetchRequest) ([]domain.NormalizedGame, error)
}

// PlayerVerifier confirms that a username exists upstream.
type PlayerVerifier interface {
	PlayerExists(ctx context.Context, username string) (bool, error)
}

type Store interface {
	gamestore.GameStore
	gamestore.AccountStore
}

type Deps struct {
	Store     Store
	Collector Collector
	Verifier  PlayerVerifier
	Guard     Guard
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

type Coordinator struct {
	store     Store
	collector Collector
	verifier  PlayerVerifier
	guard     Guard
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewCoordinator(d Deps) (*Coordinator, error) {
	if d.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if d.Collector == nil {
		return nil, fmt.Errorf("collector required")
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	guard := d.Guard
	if guard == nil {
		guard = NewLocalGuard()
	}
	return &Coordinator{
		store:     d.Store,
		collector: d.Collector,
		verifier:  d.Verifier,
		guard:     guard,
		logger:    logger,
		metrics:   d.Metrics,
	}, nil
}

// FetchAndStoreGames pulls the owner's archive window and persists games
// not already stored. It fails before any network call when no username
// is linked.
func (c *Coordinator) FetchAndStoreGames(ctx context.Context, owner uuid.UUID, timeframe domain.Timeframe, speeds []string) (domain.IngestSummary, error) {
	linked, err := c.store.LinkedUsername(ctx, owner)
	if err != nil {
		return domain.IngestSummary{}, fmt.Errorf("load linked account: %w", err)
	}
	if strings.TrimSpace(linked) == "" {
		return domain.IngestSummary{}, domain.ErrConfiguration
	}
	username, err := archive.ValidateUsername(linked)
	if err != nil {
		return domain.IngestSummary{}, err
	}

	release, err := c.guard.Acquire(ctx, owner)
	if err != nil {
		return domain.IngestSummary{}, err
	}
	defer release()

	games, err := c.collector.Collect(ctx, archive.FetchRequest{
		Username:  username,
		Timeframe: timeframe,
		Speeds:    speeds,
	})
	if err != nil {
		return domain.IngestSummary{}, fmt.Errorf("collect archive: %w", err)
	}

	summary := c.Ingest(ctx, owner, games)
	c.logger.Info("ingestion finished",
		zap.String("owner", owner.String()),
		zap.String("username", username),
		zap.String("timeframe", string(timeframe)),
		zap.Int("fetched", summary.Fetched),
		zap.Int("added", summary.Added),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// Ingest stores every game whose external id is new for owner. Games without
// an external id are always inserted. A failed insert is logged and skipped.
func (c *Coordinator) Ingest(ctx context.Context, owner uuid.UUID, games []domain.NormalizedGame) domain.IngestSummary {
	summary := domain.IngestSummary{Fetched: len(games)}
	for _, g := range games {
		if ctx.Err() != nil {
			summary.Failed++
			continue
		}
		if g.HasExternalID() {
			exists, err := c.store.Exists(ctx, owner, g.ExternalID)
			if err != nil {
				c.recordFailure(&summary, owner, g, err)
				continue
			}
			if exists {
				summary.Duplicates++
				c.metrics.ObserveIngest("duplicate")
				continue
			}
		}
		if _, err := c.store.Create(ctx, owner, g); err != nil {
			if errors.Is(err, gamestore.ErrDuplicateGame) {
				summary.Duplicates++
				c.metrics.ObserveIngest("duplicate")
				continue
			}
			c.recordFailure(&summary, owner, g, err)
			continue
		}
		summary.Added++
		c.metrics.ObserveIngest("added")
	}
	return summary
}

func (c *Coordinator) recordFailure(summary *domain.IngestSummary, owner uuid.UUID, g domain.NormalizedGame, err error) {
	summary.Failed++
	c.metrics.ObserveIngest("failed")
	c.logger.Warn("store game failed",
		zap.String("owner", owner.String()),
		zap.String("external_id", g.ExternalID),
		zap.Error(err))
}

// LinkAccount verifies username upstream and links it to owner. Usernames
// are stored lowercased.
func (c *Coordinator) LinkAccount(ctx context.Context, owner uuid.UUID, username string) (string, error) {
	name, err := archive.ValidateUsername(strings.ToLower(username))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if c.verifier != nil {
		ok, err := c.verifier.PlayerExists(ctx, name)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrPlayerNotFound
		}
	}
	if err := c.store.LinkUsername(ctx, owner, name); err != nil {
		return "", fmt.Errorf("link account: %w", err)
	}
	return name, nil
}

// ListGames returns one page of stored games with the owner's total.
func (c *Coordinator) ListGames(ctx context.Context, owner uuid.UUID, limit, offset int) (domain.GamePage, error) {
	games, err := c.store.List(ctx, owner, limit, offset)
	if err != nil {
		return domain.GamePage{}, fmt.Errorf("list games: %w", err)
	}
	total, err := c.store.Count(ctx, owner)
	if err != nil {
		return domain.GamePage{}, fmt.Errorf("count games: %w", err)
	}
	return domain.GamePage{Games: games, Total: total}, nil
}
