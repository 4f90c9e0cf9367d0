package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/park285/chess-insight/internal/archive"
	"github.com/park285/chess-insight/internal/domain"
	"github.com/park285/chess-insight/internal/gamestore"
)

type fakeCollector struct {
	games    []domain.NormalizedGame
	err      error
	calls    int
	lastReq  archive.FetchRequest
	entered  chan struct{}
	blocking chan struct{}
}

func (f *fakeCollector) Collect(ctx context.Context, req archive.FetchRequest) ([]domain.NormalizedGame, error) {
	f.calls++
	f.lastReq = req
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.blocking != nil {
		<-f.blocking
	}
	return f.games, f.err
}

type fakeVerifier struct {
	exists bool
	err    error
}

func (f fakeVerifier) PlayerExists(context.Context, string) (bool, error) { return f.exists, f.err }

// flakyStore fails Create for selected external ids.
type flakyStore struct {
	*gamestore.MemoryStore
	failFor map[string]bool
}

func (s *flakyStore) Create(ctx context.Context, owner uuid.UUID, g domain.NormalizedGame) (uuid.UUID, error) {
	if s.failFor[g.ExternalID] {
		return uuid.Nil, errors.New("disk full")
	}
	return s.MemoryStore.Create(ctx, owner, g)
}

// racingStore reports every game as new, leaving dedup to Create.
type racingStore struct{ *gamestore.MemoryStore }

func (racingStore) Exists(context.Context, uuid.UUID, string) (bool, error) { return false, nil }

func games(ids ...string) []domain.NormalizedGame {
	out := make([]domain.NormalizedGame, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.NormalizedGame{ExternalID: id, PGN: "1. e4 e5", OwnerUsername: "alice", TimeClass: domain.SpeedRapid})
	}
	return out
}

func newLinkedCoordinator(t *testing.T, store Store, collector Collector) (*Coordinator, uuid.UUID) {
	t.Helper()
	owner := uuid.New()
	if err := store.LinkUsername(context.Background(), owner, "alice"); err != nil {
		t.Fatalf("link: %v", err)
	}
	c, err := NewCoordinator(Deps{Store: store, Collector: collector})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return c, owner
}

func TestFetchAndStoreGamesIsIdempotent(t *testing.T) {
	collector := &fakeCollector{games: games("a", "b", "c")}
	c, owner := newLinkedCoordinator(t, gamestore.NewMemoryStore(), collector)
	ctx := context.Background()

	first, err := c.FetchAndStoreGames(ctx, owner, domain.Timeframe1Year, []string{"rapid"})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Fetched != 3 || first.Added != 3 {
		t.Fatalf("first summary = %+v", first)
	}
	second, err := c.FetchAndStoreGames(ctx, owner, domain.Timeframe1Year, []string{"rapid"})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Fetched != 3 || second.Added != 0 || second.Duplicates != 3 {
		t.Fatalf("second summary = %+v", second)
	}
	if collector.lastReq.Username != "alice" || collector.lastReq.Timeframe != domain.Timeframe1Year {
		t.Fatalf("collector request = %+v", collector.lastReq)
	}
}

func TestIngestAddsGamesWithoutExternalID(t *testing.T) {
	c, owner := newLinkedCoordinator(t, gamestore.NewMemoryStore(), &fakeCollector{})
	batch := games("", "", "x")
	first := c.Ingest(context.Background(), owner, batch)
	second := c.Ingest(context.Background(), owner, batch)
	if first.Added != 3 || second.Added != 2 {
		t.Fatalf("added = %d then %d, want 3 then 2", first.Added, second.Added)
	}
}

func TestIngestDedupsWithinBatch(t *testing.T) {
	c, owner := newLinkedCoordinator(t, gamestore.NewMemoryStore(), &fakeCollector{})
	got := c.Ingest(context.Background(), owner, games("a", "a", "b"))
	if got.Fetched != 3 || got.Added != 2 || got.Duplicates != 1 {
		t.Fatalf("summary = %+v", got)
	}
}

func TestIngestContinuesPastInsertFailure(t *testing.T) {
	store := &flakyStore{MemoryStore: gamestore.NewMemoryStore(), failFor: map[string]bool{"b": true}}
	c, owner := newLinkedCoordinator(t, store, &fakeCollector{})
	got := c.Ingest(context.Background(), owner, games("a", "b", "c"))
	if got.Fetched != 3 || got.Added != 2 || got.Failed != 1 {
		t.Fatalf("summary = %+v", got)
	}
}

func TestIngestTreatsLostRaceAsDuplicate(t *testing.T) {
	store := racingStore{gamestore.NewMemoryStore()}
	c, owner := newLinkedCoordinator(t, store, &fakeCollector{})
	c.Ingest(context.Background(), owner, games("a"))
	got := c.Ingest(context.Background(), owner, games("a"))
	if got.Added != 0 || got.Duplicates != 1 || got.Failed != 0 {
		t.Fatalf("summary = %+v", got)
	}
}

func TestFetchWithoutLinkedUsername(t *testing.T) {
	collector := &fakeCollector{games: games("a")}
	c, err := NewCoordinator(Deps{Store: gamestore.NewMemoryStore(), Collector: collector})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	_, err = c.FetchAndStoreGames(context.Background(), uuid.New(), domain.Timeframe3Months, nil)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
	if collector.calls != 0 {
		t.Fatalf("collector called %d times before configuration check", collector.calls)
	}
}

func TestFetchWithMalformedUsername(t *testing.T) {
	store := gamestore.NewMemoryStore()
	owner := uuid.New()
	_ = store.LinkUsername(context.Background(), owner, "bad name!")
	collector := &fakeCollector{}
	c, _ := NewCoordinator(Deps{Store: store, Collector: collector})
	_, err := c.FetchAndStoreGames(context.Background(), owner, domain.Timeframe3Months, nil)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want upstream unavailable", err)
	}
	if collector.calls != 0 {
		t.Fatalf("collector called for malformed username")
	}
}

func TestFetchRejectsConcurrentRunForSameOwner(t *testing.T) {
	collector := &fakeCollector{games: games("a"), entered: make(chan struct{}, 1), blocking: make(chan struct{})}
	c, owner := newLinkedCoordinator(t, gamestore.NewMemoryStore(), collector)

	done := make(chan error, 1)
	go func() {
		_, err := c.FetchAndStoreGames(context.Background(), owner, domain.Timeframe3Months, nil)
		done <- err
	}()
	<-collector.entered
	_, err := c.FetchAndStoreGames(context.Background(), owner, domain.Timeframe3Months, nil)
	if !errors.Is(err, ErrIngestInProgress) {
		t.Fatalf("err = %v, want ErrIngestInProgress", err)
	}
	close(collector.blocking)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
}

func TestLinkAccount(t *testing.T) {
	store := gamestore.NewMemoryStore()
	owner := uuid.New()
	c, _ := NewCoordinator(Deps{Store: store, Collector: &fakeCollector{}, Verifier: fakeVerifier{exists: true}})

	name, err := c.LinkAccount(context.Background(), owner, "  Hikaru ")
	if err != nil || name != "hikaru" {
		t.Fatalf("LinkAccount = %q, %v", name, err)
	}
	if linked, _ := store.LinkedUsername(context.Background(), owner); linked != "hikaru" {
		t.Fatalf("linked = %q", linked)
	}

	c.verifier = fakeVerifier{exists: false}
	if _, err := c.LinkAccount(context.Background(), owner, "ghost"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("err = %v, want ErrPlayerNotFound", err)
	}
	c.verifier = fakeVerifier{err: domain.ErrUpstreamUnavailable}
	if _, err := c.LinkAccount(context.Background(), owner, "someone"); !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want upstream unavailable", err)
	}
	if _, err := c.LinkAccount(context.Background(), owner, "no spaces allowed"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
}

func TestListGames(t *testing.T) {
	c, owner := newLinkedCoordinator(t, gamestore.NewMemoryStore(), &fakeCollector{})
	c.Ingest(context.Background(), owner, games("a", "b", "c"))
	page, err := c.ListGames(context.Background(), owner, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Games) != 2 || page.Total != 3 {
		t.Fatalf("page = %d games, total %d", len(page.Games), page.Total)
	}
}
