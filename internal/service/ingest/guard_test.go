package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisGuardExcludesConcurrentRuns(t *testing.T) {
	mr, rdb := newTestRedis(t)
	g := NewRedisGuard(rdb, time.Minute, nil)
	ctx := context.Background()
	owner := uuid.New()

	release, err := g.Acquire(ctx, owner)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if ttl := mr.TTL(g.key(owner)); ttl != time.Minute {
		t.Fatalf("lock ttl = %v", ttl)
	}
	if _, err := g.Acquire(ctx, owner); !errors.Is(err, ErrIngestInProgress) {
		t.Fatalf("second acquire err = %v", err)
	}
	if other, err := g.Acquire(ctx, uuid.New()); err != nil {
		t.Fatalf("other owner acquire: %v", err)
	} else {
		other()
	}

	release()
	if mr.Exists(g.key(owner)) {
		t.Fatalf("lock not released")
	}
	again, err := g.Acquire(ctx, owner)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	again()
}

func TestRedisGuardReleaseKeepsForeignLock(t *testing.T) {
	mr, rdb := newTestRedis(t)
	g := NewRedisGuard(rdb, time.Minute, nil)
	owner := uuid.New()

	release, err := g.Acquire(context.Background(), owner)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	// lock expired and was taken by another replica
	if err := mr.Set(g.key(owner), "someone-else"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	release()
	if got, _ := mr.Get(g.key(owner)); got != "someone-else" {
		t.Fatalf("foreign lock removed, value now %q", got)
	}
}

func TestRedisGuardFailsOpen(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()
	g := NewRedisGuard(rdb, time.Minute, nil)
	release, err := g.Acquire(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("acquire with redis down: %v", err)
	}
	release()
}

func TestLocalGuard(t *testing.T) {
	g := NewLocalGuard()
	owner := uuid.New()
	release, err := g.Acquire(context.Background(), owner)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := g.Acquire(context.Background(), owner); !errors.Is(err, ErrIngestInProgress) {
		t.Fatalf("err = %v", err)
	}
	release()
	release()
	if _, err := g.Acquire(context.Background(), owner); err != nil {
		t.Fatalf("reacquire: %v", err)
	}
}
