package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/park285/chess-insight/internal/domain"
	"github.com/park285/chess-insight/internal/service/ingest"
	"github.com/park285/chess-insight/pkg/chessdto"
)

const localsMessageData = "msgdata"

// classify maps a service error onto status, code and catalog details.
// data feeds the catalog template.
func (s *Server) classify(err error, data map[string]any) chessdto.DomainError {
	var de chessdto.DomainError
	if errors.As(err, &de) {
		return de
	}
	if data == nil {
		data = map[string]any{}
	}

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return s.fromFiberError(fe, data)
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrMalformedTranscript):
		data["Reason"] = err.Error()
		return s.domainError(fiber.StatusBadRequest, chessdto.CodeInvalidInput, "invalid input", "errors.invalid_input", data, false)
	case errors.Is(err, domain.ErrConfiguration):
		return s.domainError(fiber.StatusBadRequest, chessdto.CodeConfiguration, err.Error(), "errors.configuration", data, false)
	case errors.Is(err, ingest.ErrPlayerNotFound):
		return s.domainError(fiber.StatusBadRequest, chessdto.CodePlayerNotFound, err.Error(), "errors.player_not_found", data, false)
	case errors.Is(err, ingest.ErrIngestInProgress):
		return s.domainError(fiber.StatusConflict, chessdto.CodeIngestInProgress, err.Error(), "errors.ingest_in_progress", data, true)
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return s.domainError(fiber.StatusBadGateway, chessdto.CodeUpstreamUnavailable, err.Error(), "errors.upstream_unavailable", data, true)
	case errors.Is(err, domain.ErrEngineUnavailable):
		return s.domainError(fiber.StatusServiceUnavailable, chessdto.CodeEngineUnavailable, err.Error(), "errors.engine_unavailable", data, true)
	default:
		return s.domainError(fiber.StatusInternalServerError, chessdto.CodeInternal, "internal server error", "errors.internal", data, false)
	}
}

func (s *Server) fromFiberError(fe *fiber.Error, data map[string]any) chessdto.DomainError {
	switch fe.Code {
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return s.domainError(fe.Code, chessdto.CodeNotFound, fe.Message, "errors.not_found", data, false)
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity, fiber.StatusRequestEntityTooLarge:
		data["Reason"] = fe.Message
		return s.domainError(fiber.StatusBadRequest, chessdto.CodeInvalidInput, "invalid input", "errors.invalid_input", data, false)
	default:
		return chessdto.DomainError{Status: fe.Code, Code: chessdto.CodeInternal, Message: fe.Message}
	}
}

func (s *Server) domainError(status int, code, message, key string, data map[string]any, retryable bool) chessdto.DomainError {
	return chessdto.DomainError{
		Status:    status,
		Code:      code,
		Message:   message,
		Details:   s.messages.Text(key, data, ""),
		Retryable: retryable,
	}
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	data, _ := c.Locals(localsMessageData).(map[string]any)
	if data == nil {
		data = map[string]any{}
	}
	data["Method"] = c.Method()
	data["Path"] = c.Path()

	de := s.classify(err, data)
	if de.Status == 0 {
		de.Status = fiber.StatusInternalServerError
	}
	if de.Status >= fiber.StatusInternalServerError {
		s.logger.Error("request error",
			zap.String("path", c.Path()),
			zap.String("code", de.Code),
			zap.Error(err))
	}
	return c.Status(de.Status).JSON(de.Response())
}

func setMessageData(c *fiber.Ctx, kv map[string]any) {
	c.Locals(localsMessageData, kv)
}
