package domain

import "errors"

var (
	ErrConfiguration       = errors.New("no chess.com username linked")
	ErrUpstreamUnavailable = errors.New("game archive unavailable")
	ErrInvalidInput        = errors.New("invalid input")
	ErrMalformedTranscript = errors.New("malformed game transcript")
	ErrEngineUnavailable   = errors.New("analysis engine unavailable")
)
