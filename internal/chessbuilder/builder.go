package chessbuilder

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-insight/internal/archive"
	"github.com/park285/chess-insight/internal/chess"
	"github.com/park285/chess-insight/internal/config"
	"github.com/park285/chess-insight/internal/gamestore"
	"github.com/park285/chess-insight/internal/httpapi"
	"github.com/park285/chess-insight/internal/metrics"
	"github.com/park285/chess-insight/internal/msgcat"
	"github.com/park285/chess-insight/internal/service/analysis"
	"github.com/park285/chess-insight/internal/service/ingest"
)

// Deps holds every long-lived dependency. Engine and Analysis are nil when
// no engine binary is configured.
type Deps struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Messages    *msgcat.Catalog
	Store       gamestore.Store
	Redis       *redis.Client
	Archive     *archive.Client
	Fetcher     *archive.Fetcher
	Coordinator *ingest.Coordinator
	Engine      *chess.Engine
	Analysis    *analysis.Handler
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{Config: cfg, Logger: logger, Metrics: metrics.New()}

	messages, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	d.Messages = messages

	store, err := OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	d.Store = store
	if err := store.Migrate(ctx); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	d.Archive = NewArchiveClient(cfg.Archive)
	d.Fetcher = archive.NewFetcher(d.Archive, archive.FetcherConfig{
		RequestsPerSecond: cfg.Archive.RequestsPerSecond,
		Concurrency:       cfg.Archive.Concurrency,
	}, logger.Named("archive"), d.Metrics)

	guard := ingest.Guard(ingest.NewLocalGuard())
	if strings.TrimSpace(cfg.Store.RedisURL) != "" {
		rdb, err := openRedis(ctx, cfg.Store.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, using in-process ingest guard", zap.Error(err))
		} else {
			d.Redis = rdb
			guard = ingest.NewRedisGuard(rdb, cfg.Ingest.LockTTL, logger.Named("guard"))
		}
	}

	d.Coordinator, err = ingest.NewCoordinator(ingest.Deps{
		Store:     store,
		Collector: d.Fetcher,
		Verifier:  d.Archive,
		Guard:     guard,
		Logger:    logger.Named("ingest"),
		Metrics:   d.Metrics,
	})
	if err != nil {
		_ = d.Close()
		return nil, err
	}

	if strings.TrimSpace(cfg.Engine.StockfishPath) == "" {
		logger.Warn("STOCKFISH_PATH not set; analysis disabled")
		return d, nil
	}
	d.Engine, err = chess.NewEngine(EngineConfig(cfg.Engine), logger.Named("engine"), d.Metrics)
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("init engine: %w", err)
	}
	d.Analysis, err = analysis.NewHandler(d.Engine, logger.Named("analysis"))
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

// OpenStore picks Postgres, then SQLite, then memory.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (gamestore.Store, error) {
	switch {
	case strings.TrimSpace(cfg.DatabaseURL) != "":
		s, err := gamestore.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case strings.TrimSpace(cfg.SQLitePath) != "":
		s, err := gamestore.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		if logger != nil {
			logger.Warn("no DATABASE_URL or SQLITE_PATH; games are kept in memory only")
		}
		return gamestore.NewMemoryStore(), nil
	}
}

func NewArchiveClient(cfg config.ArchiveConfig) *archive.Client {
	opts := []archive.Option{archive.WithTimeout(cfg.Timeout)}
	if ua := strings.TrimSpace(cfg.UserAgent); ua != "" {
		opts = append(opts, archive.WithUserAgent(ua))
	}
	if cfg.Concurrency > 1 {
		opts = append(opts, archive.WithMaxConnsPerHost(cfg.Concurrency*2))
	}
	return archive.NewClient(cfg.BaseURL, opts...)
}

func EngineConfig(cfg config.EngineConfig) chess.EngineConfig {
	return chess.EngineConfig{
		BinaryPath:     cfg.StockfishPath,
		Depth:          cfg.Depth,
		TopLines:       cfg.TopLines,
		Threads:        cfg.Threads,
		HashMB:         cfg.HashMB,
		MaxSessions:    cfg.MaxSessions,
		SessionTimeout: cfg.Timeout,
	}
}

// API builds the HTTP application over these dependencies.
func (d *Deps) API() *fiber.App {
	deps := httpapi.Deps{
		Ingest:         d.Coordinator,
		Messages:       d.Messages,
		Metrics:        d.Metrics,
		Logger:         d.Logger.Named("http"),
		AllowedOrigins: d.Config.HTTP.AllowedOrigins,
	}
	if d.Analysis != nil {
		deps.Analysis = d.Analysis
	}
	return httpapi.New(deps)
}

func (d *Deps) Close() error {
	var errs []error
	if d.Engine != nil {
		errs = append(errs, d.Engine.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	if d.Store != nil {
		errs = append(errs, d.Store.Close())
	}
	return errors.Join(errs...)
}

func openRedis(ctx context.Context, raw string) (*redis.Client, error) {
	opts, err := parseRedisURL(raw)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	portStr := u.Port()
	if portStr == "" {
		portStr = "6379"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: u.User.Username(),
		Password: pass,
		DB:       db,
	}, nil
}
