package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// requestLogger logs and measures every request. The route label is the
// registered pattern so ids in the path do not explode metric cardinality.
func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if err != nil {
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}
	elapsed := time.Since(start)
	status := c.Response().StatusCode()

	route := "unmatched"
	if r := c.Route(); r != nil && r.Path != "" && status != fiber.StatusNotFound {
		route = r.Path
	}
	s.metrics.ObserveRequest(route, c.Method(), status, elapsed)

	fields := []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("latency", elapsed),
	}
	switch {
	case status >= fiber.StatusInternalServerError:
		s.logger.Warn("request failed", fields...)
	default:
		s.logger.Debug("request", fields...)
	}
	return nil
}
