package httpapi

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/park285/chess-insight/internal/domain"
	"github.com/park285/chess-insight/internal/gamestore"
	"github.com/park285/chess-insight/pkg/chessdto"
)

func ownerParam(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: user id must be a UUID", domain.ErrInvalidInput)
	}
	return id, nil
}

func (s *Server) linkAccount(c *fiber.Ctx) error {
	owner, err := ownerParam(c)
	if err != nil {
		return err
	}
	var req chessdto.LinkAccountRequest
	if err := bind(c, &req, false); err != nil {
		return err
	}
	setMessageData(c, map[string]any{"Username": req.ChessComUsername, "UserID": owner.String()})

	name, err := s.ingest.LinkAccount(c.UserContext(), owner, req.ChessComUsername)
	if err != nil {
		return err
	}
	return c.JSON(chessdto.LinkAccountResponse{UserID: owner.String(), ChessComUsername: name})
}

func (s *Server) fetchGames(c *fiber.Ctx) error {
	owner, err := ownerParam(c)
	if err != nil {
		return err
	}
	var req chessdto.FetchGamesRequest
	if err := bind(c, &req, true); err != nil {
		return err
	}
	setMessageData(c, map[string]any{"UserID": owner.String()})

	timeframe := domain.Timeframe(req.Timeframe)
	if req.Timeframe == "" {
		timeframe = domain.DefaultTimeframe
	}
	summary, err := s.ingest.FetchAndStoreGames(c.UserContext(), owner, timeframe, req.GameTypes)
	if err != nil {
		return err
	}
	return c.JSON(chessdto.FetchGamesResponse{
		Fetched:    summary.Fetched,
		Added:      summary.Added,
		Duplicates: summary.Duplicates,
		Failed:     summary.Failed,
	})
}

func (s *Server) listGames(c *fiber.Ctx) error {
	owner, err := ownerParam(c)
	if err != nil {
		return err
	}
	limit, offset := gamestore.ClampPage(
		c.QueryInt("limit", gamestore.DefaultListLimit),
		c.QueryInt("offset", 0),
	)
	page, err := s.ingest.ListGames(c.UserContext(), owner, limit, offset)
	if err != nil {
		return err
	}
	out := chessdto.GamesPage{Games: make([]chessdto.Game, 0, len(page.Games)), Total: page.Total, Limit: limit, Offset: offset}
	for _, g := range page.Games {
		out.Games = append(out.Games, gameDTO(g))
	}
	return c.JSON(out)
}

func gameDTO(g domain.StoredGame) chessdto.Game {
	return chessdto.Game{
		ID:               g.ID.String(),
		ChessComGameUUID: g.ExternalID,
		ChessComUsername: g.OwnerUsername,
		PGN:              g.PGN,
		TCN:              g.TCN,
		EndTime:          g.EndTime,
		TimeClass:        string(g.TimeClass),
		TimeControl:      g.TimeControl,
		White:            chessdto.GamePlayer{Username: g.WhiteUsername, Result: g.WhiteResult},
		Black:            chessdto.GamePlayer{Username: g.BlackUsername, Result: g.BlackResult},
		CreatedAt:        g.CreatedAt,
	}
}

func (s *Server) analyze(c *fiber.Ctx) error {
	var req chessdto.AnalysisRequest
	if err := bind(c, &req, false); err != nil {
		return err
	}
	if s.analysis == nil {
		return fmt.Errorf("%w: no engine configured", domain.ErrEngineUnavailable)
	}
	report, err := s.analysis.Handle(c.UserContext(), req.PGN)
	if err != nil {
		return err
	}
	return c.JSON(AnalysisDTO(report))
}

// AnalysisDTO converts a report into its wire form.
func AnalysisDTO(r *domain.AnalysisReport) chessdto.AnalysisResponse {
	out := chessdto.AnalysisResponse{
		FEN:         r.FEN,
		Plies:       r.Plies,
		Evaluation:  scoreDTO(r.Result.Evaluation),
		BestMove:    r.Result.BestMove,
		BestMoveSAN: r.Result.BestMoveSAN,
		Depth:       r.Result.Depth,
		TopLines:    make([]chessdto.Line, 0, len(r.Result.TopLines)),
	}
	if r.Opening != nil {
		out.Opening = &chessdto.Opening{ECO: r.Opening.ECO, Name: r.Opening.Name}
	}
	for _, l := range r.Result.TopLines {
		pv := l.PV
		if pv == nil {
			pv = []string{}
		}
		out.TopLines = append(out.TopLines, chessdto.Line{
			Move:    l.Move,
			MoveSAN: l.MoveSAN,
			Score:   scoreDTO(l.Score),
			PV:      pv,
		})
	}
	return out
}

func scoreDTO(s domain.Score) chessdto.Score {
	kind := string(s.Kind)
	if kind == "" {
		kind = string(domain.ScoreCentipawns)
	}
	return chessdto.Score{Type: kind, Value: s.Value}
}
