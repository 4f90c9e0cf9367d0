package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/chess-insight/internal/domain"
)

const (
	DefaultBaseURL   = "https://api.chess.com/pub/player"
	DefaultUserAgent = "chess-insight/1.0 (+https://github.com/park285/chess-insight)"
	defaultTimeout   = 30 * time.Second
)

// ErrNotFound reports a 404 from the archive API.
var ErrNotFound = errors.New("archive resource not found")

type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("archive api error: status=%d body=%s", e.Status, e.Body)
}

type Client struct {
	baseURL   string
	http      *fasthttp.Client
	userAgent string

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if strings.TrimSpace(ua) != "" {
			c.userAgent = ua
		}
	}
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

// WithRetry sets the attempt budget for player lookups. Monthly archive
// requests are never retried.
func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: defaultTimeout, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		userAgent:      DefaultUserAgent,
		defaultTimeout: defaultTimeout,
		retryMax:       2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MonthlyArchive downloads one month of games for username. A missing
// month yields ErrNotFound.
func (c *Client) MonthlyArchive(ctx context.Context, username string, year int, month time.Month) ([]ArchiveGame, error) {
	path := fmt.Sprintf("/%s/games/%04d/%02d", url.PathEscape(username), year, int(month))
	var payload archiveMonth
	if err := c.getJSON(ctx, path, &payload, false); err != nil {
		return nil, err
	}
	return payload.Games, nil
}

// PlayerExists checks the player profile endpoint. Only a 404 means the
// player does not exist; other failures wrap domain.ErrUpstreamUnavailable.
func (c *Client) PlayerExists(ctx context.Context, username string) (bool, error) {
	err := c.getJSON(ctx, "/"+url.PathEscape(username), nil, true)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("%w: verify player: %v", domain.ErrUpstreamUnavailable, err)
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + path)
	req.Header.Set("Accept", "application/json")
	req.Header.SetUserAgent(c.userAgent)

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else {
			status := resp.StatusCode()
			switch {
			case status == fasthttp.StatusNotFound:
				return ErrNotFound
			case status < 200 || status >= 300:
				lastErr = &StatusError{Status: status, Body: truncate(string(resp.Body()), 512)}
				if !shouldRetryStatus(status) {
					return lastErr
				}
			default:
				if out == nil {
					return nil
				}
				if err := json.Unmarshal(resp.Body(), out); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
				return nil
			}
		}
		if attempt < attempts {
			if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
				return lastErr
			}
		}
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 200 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
