package gamestore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/park285/chess-insight/internal/domain"
)

// MemoryStore is a development-only store used when no database is configured.
type MemoryStore struct {
	mu sync.RWMutex

	gamesByOwner map[uuid.UUID][]*domain.StoredGame
	gamesByIndex map[string]*domain.StoredGame // owner|external id
	accounts     map[uuid.UUID]string
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		gamesByOwner: make(map[uuid.UUID][]*domain.StoredGame),
		gamesByIndex: make(map[string]*domain.StoredGame),
		accounts:     make(map[uuid.UUID]string),
		now:          time.Now,
	}
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Exists(_ context.Context, owner uuid.UUID, externalID string) (bool, error) {
	if strings.TrimSpace(externalID) == "" {
		return false, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.gamesByIndex[indexKey(owner, externalID)]
	return ok, nil
}

func (m *MemoryStore) Create(_ context.Context, owner uuid.UUID, game domain.NormalizedGame) (uuid.UUID, error) {
	if strings.TrimSpace(game.PGN) == "" {
		return uuid.Nil, fmt.Errorf("insert game: empty pgn")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := indexKey(owner, game.ExternalID)
	if game.HasExternalID() {
		if _, exists := m.gamesByIndex[key]; exists {
			return uuid.Nil, ErrDuplicateGame
		}
	}

	stored := &domain.StoredGame{
		ID:             uuid.New(),
		OwnerID:        owner,
		CreatedAt:      m.now(),
		NormalizedGame: game,
	}
	if game.EndTime != nil {
		end := *game.EndTime
		stored.EndTime = &end
	}
	if game.HasExternalID() {
		m.gamesByIndex[key] = stored
	}
	m.gamesByOwner[owner] = append(m.gamesByOwner[owner], stored)
	return stored.ID, nil
}

func (m *MemoryStore) List(_ context.Context, owner uuid.UUID, limit, offset int) ([]domain.StoredGame, error) {
	limit, offset = ClampPage(limit, offset)

	m.mu.RLock()
	items := append([]*domain.StoredGame(nil), m.gamesByOwner[owner]...)
	m.mu.RUnlock()

	// end time desc with missing end times last, then newest insert first
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].EndTime, items[j].EndTime
		switch {
		case a != nil && b != nil && *a != *b:
			return *a > *b
		case (a == nil) != (b == nil):
			return a != nil
		default:
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
	})

	if offset >= len(items) {
		return []domain.StoredGame{}, nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]domain.StoredGame, 0, len(items))
	for _, g := range items {
		cp := *g
		if g.EndTime != nil {
			end := *g.EndTime
			cp.EndTime = &end
		}
		out = append(out, cp)
	}
	return out, nil
}

func (m *MemoryStore) Count(_ context.Context, owner uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.gamesByOwner[owner]), nil
}

func (m *MemoryStore) LinkedUsername(_ context.Context, owner uuid.UUID) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accounts[owner], nil
}

func (m *MemoryStore) LinkUsername(_ context.Context, owner uuid.UUID, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[owner] = username
	return nil
}

func indexKey(owner uuid.UUID, externalID string) string {
	return owner.String() + "|" + externalID
}
