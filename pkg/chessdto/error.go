package chessdto

// Error codes carried in ErrorResponse.Code.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeConfiguration       = "CONFIGURATION_ERROR"
	CodePlayerNotFound      = "PLAYER_NOT_FOUND"
	CodeIngestInProgress    = "INGEST_IN_PROGRESS"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeEngineUnavailable   = "ENGINE_UNAVAILABLE"
	CodeNotFound            = "NOT_FOUND"
	CodeInternal            = "INTERNAL_ERROR"
)

// DomainError is a classified failure ready to be written to a client.
type DomainError struct {
	Status    int
	Code      string
	Message   string
	Details   string
	Retryable bool
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "chess insight error"
}

func (e DomainError) Response() ErrorResponse {
	return ErrorResponse{Error: e.Error(), Code: e.Code, Details: e.Details, Retryable: e.Retryable}
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}
