package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrIngestInProgress = errors.New("ingestion already running for this user")

const defaultLockTTL = 10 * time.Minute

// Guard allows one ingestion run per owner at a time.
type Guard interface {
	Acquire(ctx context.Context, owner uuid.UUID) (release func(), err error)
}

// LocalGuard serialises runs inside one process.
type LocalGuard struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{held: make(map[uuid.UUID]struct{})}
}

func (g *LocalGuard) Acquire(_ context.Context, owner uuid.UUID) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[owner]; busy {
		return nil, ErrIngestInProgress
	}
	g.held[owner] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, owner)
			g.mu.Unlock()
		})
	}, nil
}

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisGuard shares the per-owner lock across service replicas. When Redis
// is unreachable the run proceeds unguarded; the store's unique index still
// prevents duplicate rows.
type RedisGuard struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisGuard {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisGuard{rdb: rdb, ttl: ttl, logger: logger}
}

func (g *RedisGuard) key(owner uuid.UUID) string { return "ingest:lock:" + owner.String() }

func (g *RedisGuard) Acquire(ctx context.Context, owner uuid.UUID) (func(), error) {
	key := g.key(owner)
	token := uuid.NewString()
	ok, err := g.rdb.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		g.logger.Warn("ingest lock unavailable, continuing unguarded", zap.String("key", key), zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, ErrIngestInProgress
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, g.rdb, []string{key}, token).Err(); err != nil && err != redis.Nil {
			g.logger.Warn("release ingest lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
