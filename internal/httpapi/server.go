package httpapi

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-insight/internal/domain"
	"github.com/park285/chess-insight/internal/metrics"
	"github.com/park285/chess-insight/internal/msgcat"
)

// Ingestor is the slice of the ingestion coordinator the API drives.
type Ingestor interface {
	LinkAccount(ctx context.Context, owner uuid.UUID, username string) (string, error)
	FetchAndStoreGames(ctx context.Context, owner uuid.UUID, timeframe domain.Timeframe, speeds []string) (domain.IngestSummary, error)
	ListGames(ctx context.Context, owner uuid.UUID, limit, offset int) (domain.GamePage, error)
}

type Analyzer interface {
	Handle(ctx context.Context, transcript string) (*domain.AnalysisReport, error)
}

// Deps wires the API. Analysis may be nil, in which case POST /analysis
// answers ENGINE_UNAVAILABLE.
type Deps struct {
	Ingest         Ingestor
	Analysis       Analyzer
	Messages       *msgcat.Catalog
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	AllowedOrigins []string
}

type Server struct {
	ingest   Ingestor
	analysis Analyzer
	messages *msgcat.Catalog
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// New builds the fiber application with every route registered.
func New(d Deps) *fiber.App {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	messages := d.Messages
	if messages == nil {
		messages = msgcat.MustDefault()
	}
	s := &Server{
		ingest:   d.Ingest,
		analysis: d.Analysis,
		messages: messages,
		metrics:  d.Metrics,
		logger:   logger,
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          s.errorHandler,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          3 * time.Minute,
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: true,
	})

	app.Use(s.requestLogger)
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins(d.AllowedOrigins),
		AllowMethods: "GET,POST,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/health", s.health)
	app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))

	user := app.Group("/user/:id/chess-com")
	user.Patch("", s.linkAccount)
	user.Post("/games", s.fetchGames)
	user.Get("/games", s.listGames)

	app.Post("/analysis", s.analyze)

	return app
}

func corsOrigins(origins []string) string {
	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ",")
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}
