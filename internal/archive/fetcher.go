package archive

import (
	"context"
	"errors"
	"iter"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/park285/chess-insight/internal/domain"
	"github.com/park285/chess-insight/internal/metrics"
)

// Source serves one month of archived games.
type Source interface {
	MonthlyArchive(ctx context.Context, username string, year int, month time.Month) ([]ArchiveGame, error)
}

type MonthStatus int

const (
	MonthOK MonthStatus = iota
	MonthEmpty
	MonthFailed
)

func (s MonthStatus) String() string {
	switch s {
	case MonthOK:
		return "ok"
	case MonthEmpty:
		return "empty"
	default:
		return "failed"
	}
}

type MonthResult struct {
	Month  YearMonth
	Status MonthStatus
	Games  []domain.NormalizedGame
	Err    error
}

type FetchRequest struct {
	Username  string
	Timeframe domain.Timeframe
	Speeds    []string
}

type FetcherConfig struct {
	// RequestsPerSecond paces month requests; zero disables pacing.
	RequestsPerSecond float64
	// Concurrency bounds parallel month requests in Collect.
	Concurrency int
}

type Fetcher struct {
	source      Source
	limiter     *rate.Limiter
	concurrency int
	now         func() time.Time
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

func NewFetcher(source Source, cfg FetcherConfig, logger *zap.Logger, m *metrics.Metrics) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Fetcher{
		source:      source,
		limiter:     rate.NewLimiter(limit, 1),
		concurrency: concurrency,
		now:         time.Now,
		logger:      logger,
		metrics:     m,
	}
}

// Months walks the request window newest month first, issuing one request
// per month as the sequence is consumed. Failed months are reported, never
// fatal. An invalid username yields no months; a cancelled ctx ends the walk.
func (f *Fetcher) Months(ctx context.Context, req FetchRequest) iter.Seq[MonthResult] {
	return func(yield func(MonthResult) bool) {
		username, err := ValidateUsername(req.Username)
		if err != nil {
			f.logger.Warn("archive fetch skipped", zap.String("username", req.Username), zap.Error(err))
			return
		}
		speeds := domain.EffectiveSpeeds(req.Speeds)
		for _, ym := range MonthsBack(f.now(), req.Timeframe.Months()) {
			if ctx.Err() != nil {
				f.logger.Debug("archive walk cancelled",
					zap.String("username", username),
					zap.Stringer("next_month", ym))
				return
			}
			if !yield(f.fetchMonth(ctx, username, ym, speeds)) {
				return
			}
		}
	}
}

// Fetch flattens Months into normalized games. Each call walks the whole
// window again.
func (f *Fetcher) Fetch(ctx context.Context, req FetchRequest) iter.Seq[domain.NormalizedGame] {
	return func(yield func(domain.NormalizedGame) bool) {
		for month := range f.Months(ctx, req) {
			for _, g := range month.Games {
				if !yield(g) {
					return
				}
			}
		}
	}
}

// Collect materializes the window. Only an invalid username or a cancelled
// context fail the call.
func (f *Fetcher) Collect(ctx context.Context, req FetchRequest) ([]domain.NormalizedGame, error) {
	username, err := ValidateUsername(req.Username)
	if err != nil {
		return nil, err
	}
	req.Username = username

	var games []domain.NormalizedGame
	if f.concurrency <= 1 {
		for g := range f.Fetch(ctx, req) {
			games = append(games, g)
		}
	} else {
		games = f.collectParallel(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return games, nil
}

func (f *Fetcher) collectParallel(ctx context.Context, req FetchRequest) []domain.NormalizedGame {
	speeds := domain.EffectiveSpeeds(req.Speeds)
	months := MonthsBack(f.now(), req.Timeframe.Months())
	results := make([]MonthResult, len(months))

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, ym := range months {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = f.fetchMonth(ctx, req.Username, ym, speeds)
			return nil
		})
	}
	_ = g.Wait()

	var games []domain.NormalizedGame
	for _, r := range results {
		games = append(games, r.Games...)
	}
	return games
}

func (f *Fetcher) fetchMonth(ctx context.Context, username string, ym YearMonth, speeds domain.SpeedSet) MonthResult {
	res := MonthResult{Month: ym}
	if err := f.limiter.Wait(ctx); err != nil {
		res.Status, res.Err = MonthFailed, err
		f.report(username, res)
		return res
	}

	raw, err := f.source.MonthlyArchive(ctx, username, ym.Year, ym.Month)
	switch {
	case errors.Is(err, ErrNotFound):
		res.Status = MonthEmpty
	case err != nil:
		res.Status, res.Err = MonthFailed, err
	default:
		res.Status = MonthOK
		res.Games = normalizeMonth(raw, username, speeds)
	}
	f.report(username, res)
	return res
}

func (f *Fetcher) report(username string, res MonthResult) {
	f.metrics.ObserveArchiveMonth(res.Status.String())
	if res.Status == MonthFailed {
		f.logger.Warn("archive month failed",
			zap.String("username", username),
			zap.Stringer("month", res.Month),
			zap.Error(res.Err))
		return
	}
	f.logger.Debug("archive month fetched",
		zap.String("username", username),
		zap.Stringer("month", res.Month),
		zap.Stringer("status", res.Status),
		zap.Int("games", len(res.Games)))
}
