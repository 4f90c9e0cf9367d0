package chess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-insight/internal/chess/uci"
	"github.com/park285/chess-insight/internal/domain"
	"github.com/park285/chess-insight/internal/metrics"
)

// Session is one running engine process bound to a single position.
type Session interface {
	SetPosition(ctx context.Context, fen string) error
	Evaluate(ctx context.Context) (uci.Score, error)
	BestMove(ctx context.Context) (string, error)
	TopMoves(ctx context.Context, n int) ([]uci.Candidate, error)
	Close() error
}

// StartFunc spawns a fresh session searching multiPV lines.
type StartFunc func(ctx context.Context, multiPV int) (Session, error)

type Engine struct {
	start    StartFunc
	launcher *uci.Launcher
	cfg      EngineConfig
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewEngine prepares an engine adapter that launches cfg.BinaryPath once per
// analysis request.
func NewEngine(cfg EngineConfig, logger *zap.Logger, m *metrics.Metrics) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := validateEngineConfig(cfg); err != nil {
		return nil, err
	}
	launcher, err := uci.NewLauncher(uci.LauncherConfig{
		BinaryPath: cfg.BinaryPath,
		Capacity:   cfg.MaxSessions,
		Options:    uci.Options{Threads: cfg.Threads, HashMB: cfg.HashMB, MultiPV: cfg.TopLines},
		Limits:     cfg.limits(),
		OnStart:    func() { m.AddRunningEngines(1) },
		OnStop:     func() { m.AddRunningEngines(-1) },
	})
	if err != nil {
		return nil, err
	}
	e := newEngine(func(ctx context.Context, multiPV int) (Session, error) {
		s, err := launcher.Start(ctx, multiPV)
		if err != nil {
			return nil, err
		}
		return s, nil
	}, cfg, logger, m)
	e.launcher = launcher
	return e, nil
}

func newEngine(start StartFunc, cfg EngineConfig, logger *zap.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{start: start, cfg: cfg.withDefaults(), logger: logger, metrics: m}
}

// TopLines is the configured number of ranked lines per analysis.
func (e *Engine) TopLines() int { return e.cfg.TopLines }

// Analyze runs one engine session against pos and reports the evaluation,
// the best move and up to topN ranked lines. Every failure wraps
// domain.ErrEngineUnavailable.
func (e *Engine) Analyze(ctx context.Context, pos *Position, topN int) (domain.EngineResult, error) {
	if pos == nil {
		return domain.EngineResult{}, fmt.Errorf("%w: no position", domain.ErrEngineUnavailable)
	}
	if topN <= 0 {
		topN = e.cfg.TopLines
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.SessionTimeout)
	defer cancel()

	started := time.Now()
	result, err := e.analyze(ctx, pos, topN)
	if err != nil {
		e.metrics.ObserveEngineSession("unavailable", time.Since(started))
		e.logger.Warn("engine analysis failed",
			zap.String("fen", pos.FEN()),
			zap.Int("top_n", topN),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err))
		return domain.EngineResult{}, mapEngineError(err)
	}
	e.metrics.ObserveEngineSession("ok", time.Since(started))
	return result, nil
}

func (e *Engine) analyze(ctx context.Context, pos *Position, topN int) (domain.EngineResult, error) {
	session, err := e.start(ctx, topN)
	if err != nil {
		return domain.EngineResult{}, fmt.Errorf("start engine: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			e.logger.Debug("engine close", zap.Error(cerr))
		}
	}()

	if err := session.SetPosition(ctx, pos.FEN()); err != nil {
		return domain.EngineResult{}, fmt.Errorf("set position: %w", err)
	}
	score, err := session.Evaluate(ctx)
	if err != nil {
		return domain.EngineResult{}, fmt.Errorf("evaluate: %w", err)
	}
	best, err := session.BestMove(ctx)
	if err != nil {
		return domain.EngineResult{}, fmt.Errorf("best move: %w", err)
	}
	lines, err := session.TopMoves(ctx, topN)
	if err != nil {
		return domain.EngineResult{}, fmt.Errorf("top moves: %w", err)
	}

	if legal := pos.LegalMoves(); len(lines) > legal {
		lines = lines[:legal]
	}
	if legal := pos.LegalMoves(); legal == 0 {
		best = ""
	}

	whiteToMove := pos.WhiteToMove()
	result := domain.EngineResult{
		Evaluation:  whitePerspective(score, whiteToMove),
		BestMove:    strings.ToLower(best),
		BestMoveSAN: pos.SAN(best),
		TopLines:    make([]domain.EngineLine, 0, len(lines)),
	}
	for _, line := range lines {
		result.TopLines = append(result.TopLines, domain.EngineLine{
			Move:    line.Move,
			MoveSAN: pos.SAN(line.Move),
			Score:   whitePerspective(line.Score, whiteToMove),
			PV:      append([]string(nil), line.Principal...),
		})
		if line.Depth > result.Depth {
			result.Depth = line.Depth
		}
	}
	return result, nil
}

// whitePerspective flips a side-to-move score when Black is to move.
func whitePerspective(s uci.Score, whiteToMove bool) domain.Score {
	kind := domain.ScoreCentipawns
	if s.Mate {
		kind = domain.ScoreMate
	}
	value := s.Value
	if !whiteToMove {
		value = -value
	}
	return domain.Score{Kind: kind, Value: value}
}

func mapEngineError(err error) error {
	switch {
	case errors.Is(err, domain.ErrEngineUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: timed out: %w", domain.ErrEngineUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrEngineUnavailable, err)
	}
}

// Close kills any engine process still running.
func (e *Engine) Close() error {
	if e == nil || e.launcher == nil {
		return nil
	}
	return e.launcher.Close()
}
