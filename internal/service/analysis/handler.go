package analysis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/chess-insight/internal/chess"
	"github.com/park285/chess-insight/internal/domain"
)

// DefaultTopLines is the number of ranked alternatives requested when the
// analyzer does not report its own bound.
const DefaultTopLines = 3

type Analyzer interface {
	Analyze(ctx context.Context, pos *chess.Position, topN int) (domain.EngineResult, error)
}

type Handler struct {
	engine   Analyzer
	topLines int
	logger   *zap.Logger
}

func NewHandler(engine Analyzer, logger *zap.Logger) (*Handler, error) {
	if engine == nil {
		return nil, fmt.Errorf("analyzer required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	topLines := DefaultTopLines
	if b, ok := engine.(interface{ TopLines() int }); ok && b.TopLines() > 0 {
		topLines = b.TopLines()
	}
	return &Handler{engine: engine, topLines: topLines, logger: logger}, nil
}

// Handle analyses the final position of transcript. Blank or unparseable
// input is domain.ErrInvalidInput and never reaches the engine; engine
// failures come back as domain.ErrEngineUnavailable.
func (h *Handler) Handle(ctx context.Context, transcript string) (*domain.AnalysisReport, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("%w: transcript is required", domain.ErrInvalidInput)
	}

	pos, err := chess.ParseTranscript(transcript)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	result, err := h.engine.Analyze(ctx, pos, h.topLines)
	if err != nil {
		return nil, err
	}

	report := &domain.AnalysisReport{
		FEN:     pos.FEN(),
		Plies:   pos.Plies(),
		Opening: chess.Opening(pos),
		Result:  result,
	}
	h.logger.Debug("analysis complete",
		zap.String("fen", report.FEN),
		zap.Int("plies", report.Plies),
		zap.String("best_move", result.BestMove),
		zap.Int("depth", result.Depth))
	return report, nil
}
