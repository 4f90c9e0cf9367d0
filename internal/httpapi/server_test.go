package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/chess-insight/internal/domain"
	"github.com/park285/chess-insight/internal/metrics"
	"github.com/park285/chess-insight/internal/service/ingest"
	"github.com/park285/chess-insight/pkg/chessdto"
)

type fakeIngestor struct {
	linkErr   error
	fetchErr  error
	summary   domain.IngestSummary
	page      domain.GamePage
	gotFrame  domain.Timeframe
	gotSpeeds []string
	gotLimit  int
	gotOffset int
}

func (f *fakeIngestor) LinkAccount(_ context.Context, _ uuid.UUID, username string) (string, error) {
	if f.linkErr != nil {
		return "", f.linkErr
	}
	return strings.ToLower(username), nil
}

func (f *fakeIngestor) FetchAndStoreGames(_ context.Context, _ uuid.UUID, tf domain.Timeframe, speeds []string) (domain.IngestSummary, error) {
	f.gotFrame, f.gotSpeeds = tf, speeds
	return f.summary, f.fetchErr
}

func (f *fakeIngestor) ListGames(_ context.Context, _ uuid.UUID, limit, offset int) (domain.GamePage, error) {
	f.gotLimit, f.gotOffset = limit, offset
	return f.page, nil
}

type fakeAnalyzer struct {
	report *domain.AnalysisReport
	err    error
	calls  int
}

func (f *fakeAnalyzer) Handle(_ context.Context, _ string) (*domain.AnalysisReport, error) {
	f.calls++
	return f.report, f.err
}

func newTestApp(ing Ingestor, an Analyzer) (*fakeIngestor, *metrics.Metrics, func(*http.Request) *http.Response) {
	m := metrics.New()
	app := New(Deps{Ingest: ing, Analysis: an, Metrics: m})
	fi, _ := ing.(*fakeIngestor)
	return fi, m, func(req *http.Request) *http.Response {
		resp, err := app.Test(req, int((5 * time.Second).Milliseconds()))
		if err != nil {
			panic(err)
		}
		return resp
	}
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func TestHealth(t *testing.T) {
	_, _, do := newTestApp(&fakeIngestor{}, nil)
	resp := do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestLinkAccount(t *testing.T) {
	_, _, do := newTestApp(&fakeIngestor{}, nil)
	owner := uuid.New()
	resp := do(jsonRequest(http.MethodPatch, "/user/"+owner.String()+"/chess-com", `{"chess_com_username":"Hikaru"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[chessdto.LinkAccountResponse](t, resp)
	assert.Equal(t, owner.String(), body.UserID)
	assert.Equal(t, "hikaru", body.ChessComUsername)
}

func TestLinkAccountErrors(t *testing.T) {
	owner := uuid.New().String()
	cases := []struct {
		name   string
		path   string
		body   string
		err    error
		status int
		code   string
	}{
		{"bad owner", "/user/not-a-uuid/chess-com", `{"chess_com_username":"hikaru"}`, nil, 400, chessdto.CodeInvalidInput},
		{"missing username", "/user/" + owner + "/chess-com", `{}`, nil, 400, chessdto.CodeInvalidInput},
		{"unknown player", "/user/" + owner + "/chess-com", `{"chess_com_username":"ghost"}`, ingest.ErrPlayerNotFound, 400, chessdto.CodePlayerNotFound},
		{"upstream down", "/user/" + owner + "/chess-com", `{"chess_com_username":"hikaru"}`, fmt.Errorf("check: %w", domain.ErrUpstreamUnavailable), 502, chessdto.CodeUpstreamUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, do := newTestApp(&fakeIngestor{linkErr: tc.err}, nil)
			resp := do(jsonRequest(http.MethodPatch, tc.path, tc.body))
			assert.Equal(t, tc.status, resp.StatusCode)
			body := decode[chessdto.ErrorResponse](t, resp)
			assert.Equal(t, tc.code, body.Code)
			assert.NotEmpty(t, body.Details)
		})
	}
}

func TestPlayerNotFoundDetailsNameTheUser(t *testing.T) {
	_, _, do := newTestApp(&fakeIngestor{linkErr: ingest.ErrPlayerNotFound}, nil)
	resp := do(jsonRequest(http.MethodPatch, "/user/"+uuid.NewString()+"/chess-com", `{"chess_com_username":"ghost"}`))
	body := decode[chessdto.ErrorResponse](t, resp)
	assert.Contains(t, body.Details, "ghost")
}

func TestFetchGames(t *testing.T) {
	ing := &fakeIngestor{summary: domain.IngestSummary{Fetched: 5, Added: 3, Duplicates: 2}}
	fi, _, do := newTestApp(ing, nil)
	resp := do(jsonRequest(http.MethodPost, "/user/"+uuid.NewString()+"/chess-com/games",
		`{"timeframe":"1_year","game_types":["blitz","daily"]}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[chessdto.FetchGamesResponse](t, resp)
	assert.Equal(t, 5, body.Fetched)
	assert.Equal(t, 3, body.Added)
	assert.Equal(t, domain.Timeframe1Year, fi.gotFrame)
	assert.Equal(t, []string{"blitz", "daily"}, fi.gotSpeeds)
}

func TestFetchGamesEmptyBodyUsesDefaults(t *testing.T) {
	fi, _, do := newTestApp(&fakeIngestor{}, nil)
	resp := do(jsonRequest(http.MethodPost, "/user/"+uuid.NewString()+"/chess-com/games", ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.DefaultTimeframe, fi.gotFrame)
	assert.Empty(t, fi.gotSpeeds)
}

func TestFetchGamesErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"bad timeframe", `{"timeframe":"forever"}`, nil, 400, chessdto.CodeInvalidInput},
		{"not linked", `{}`, domain.ErrConfiguration, 400, chessdto.CodeConfiguration},
		{"running", `{}`, ingest.ErrIngestInProgress, 409, chessdto.CodeIngestInProgress},
		{"unexpected", `{}`, errors.New("disk full"), 500, chessdto.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, do := newTestApp(&fakeIngestor{fetchErr: tc.err}, nil)
			resp := do(jsonRequest(http.MethodPost, "/user/"+uuid.NewString()+"/chess-com/games", tc.body))
			assert.Equal(t, tc.status, resp.StatusCode)
			body := decode[chessdto.ErrorResponse](t, resp)
			assert.Equal(t, tc.code, body.Code)
		})
	}
}

func TestListGames(t *testing.T) {
	end := int64(1700000000)
	ing := &fakeIngestor{page: domain.GamePage{
		Total: 42,
		Games: []domain.StoredGame{{
			ID: uuid.New(),
			NormalizedGame: domain.NormalizedGame{
				ExternalID:    "abc",
				PGN:           "1. e4 e5",
				OwnerUsername: "hikaru",
				EndTime:       &end,
				TimeClass:     domain.SpeedBlitz,
				WhiteUsername: "hikaru",
				WhiteResult:   "win",
			},
		}},
	}}
	fi, _, do := newTestApp(ing, nil)
	resp := do(httptest.NewRequest(http.MethodGet, "/user/"+uuid.NewString()+"/chess-com/games?limit=500&offset=-3", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[chessdto.GamesPage](t, resp)
	assert.Equal(t, 42, body.Total)
	require.Len(t, body.Games, 1)
	assert.Equal(t, "abc", body.Games[0].ChessComGameUUID)
	assert.Equal(t, "win", body.Games[0].White.Result)
	assert.Equal(t, 100, fi.gotLimit)
	assert.Equal(t, 0, fi.gotOffset)
}

func TestAnalyze(t *testing.T) {
	an := &fakeAnalyzer{report: &domain.AnalysisReport{
		FEN:     "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2",
		Plies:   2,
		Opening: &domain.Opening{ECO: "C20", Name: "King's Pawn Game"},
		Result: domain.EngineResult{
			Evaluation:  domain.Score{Kind: domain.ScoreCentipawns, Value: 31},
			BestMove:    "g1f3",
			BestMoveSAN: "Nf3",
			TopLines: []domain.EngineLine{
				{Move: "g1f3", MoveSAN: "Nf3", Score: domain.Score{Kind: domain.ScoreCentipawns, Value: 31}, PV: []string{"g1f3", "b8c6"}},
			},
		},
	}}
	_, _, do := newTestApp(&fakeIngestor{}, an)
	resp := do(jsonRequest(http.MethodPost, "/analysis", `{"pgn":"1. e4 e5"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[chessdto.AnalysisResponse](t, resp)
	assert.Equal(t, "g1f3", body.BestMove)
	assert.Equal(t, "cp", body.Evaluation.Type)
	assert.Equal(t, 31, body.Evaluation.Value)
	require.NotNil(t, body.Opening)
	assert.Equal(t, "C20", body.Opening.ECO)
	require.Len(t, body.TopLines, 1)
}

func TestAnalyzeErrors(t *testing.T) {
	t.Run("blank body", func(t *testing.T) {
		an := &fakeAnalyzer{}
		_, _, do := newTestApp(&fakeIngestor{}, an)
		resp := do(jsonRequest(http.MethodPost, "/analysis", `{"pgn":""}`))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, 0, an.calls)
	})
	t.Run("malformed", func(t *testing.T) {
		an := &fakeAnalyzer{err: fmt.Errorf("%w: %w", domain.ErrInvalidInput, domain.ErrMalformedTranscript)}
		_, _, do := newTestApp(&fakeIngestor{}, an)
		resp := do(jsonRequest(http.MethodPost, "/analysis", `{"pgn":"zzz"}`))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, chessdto.CodeInvalidInput, decode[chessdto.ErrorResponse](t, resp).Code)
	})
	t.Run("engine down", func(t *testing.T) {
		an := &fakeAnalyzer{err: domain.ErrEngineUnavailable}
		_, _, do := newTestApp(&fakeIngestor{}, an)
		resp := do(jsonRequest(http.MethodPost, "/analysis", `{"pgn":"1. e4"}`))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		body := decode[chessdto.ErrorResponse](t, resp)
		assert.Equal(t, chessdto.CodeEngineUnavailable, body.Code)
		assert.True(t, body.Retryable)
	})
	t.Run("no engine configured", func(t *testing.T) {
		_, _, do := newTestApp(&fakeIngestor{}, nil)
		resp := do(jsonRequest(http.MethodPost, "/analysis", `{"pgn":"1. e4"}`))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestUnknownRoute(t *testing.T) {
	_, _, do := newTestApp(&fakeIngestor{}, nil)
	resp := do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, chessdto.CodeNotFound, decode[chessdto.ErrorResponse](t, resp).Code)
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	_, _, do := newTestApp(&fakeIngestor{}, nil)
	do(httptest.NewRequest(http.MethodGet, "/health", nil))
	resp := do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `chess_insight_http_requests_total{method="GET",route="/health",status="200"} 1`)
}
