package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultRateLimitMarker is the body the source serves instead of content when throttling.
const DefaultRateLimitMarker = "error code: 1015"

// StatusError is a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

func (e *StatusError) ErrorKind() string { return "fetch" }

// API performs retrying GET requests against the content source.
type API struct {
	client          *http.Client
	userAgent       string
	policy          Policy
	rateLimitMarker string
	logger          *slog.Logger
}

type Option func(*API)

func WithHTTPClient(c *http.Client) Option { return func(a *API) { a.client = c } }

func WithUserAgent(ua string) Option { return func(a *API) { a.userAgent = ua } }

func WithPolicy(p Policy) Option { return func(a *API) { a.policy = p } }

func WithRateLimitMarker(m string) Option { return func(a *API) { a.rateLimitMarker = m } }

func WithLogger(l *slog.Logger) Option { return func(a *API) { a.logger = l } }

func NewAPI(opts ...Option) *API {
	a := &API{
		client:          &http.Client{Timeout: 30 * time.Second},
		userAgent:       "mgdl",
		policy:          DefaultPolicy(),
		rateLimitMarker: DefaultRateLimitMarker,
		logger:          slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.policy.OnRetry == nil {
		logger := a.logger
		a.policy.OnRetry = func(attempt int, delay time.Duration, err error) {
			logger.Debug("retrying request", "attempt", attempt, "delay", delay, "error", err)
		}
	}
	return a
}

// Policy returns the retry policy used for every request.
func (a *API) Policy() Policy {
	return a.policy
}

// GetText fetches url as text, retrying transient failures.
func (a *API) GetText(ctx context.Context, url string) (string, error) {
	body, err := a.GetBytes(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetBytes fetches url, retrying transient failures.
func (a *API) GetBytes(ctx context.Context, url string) ([]byte, error) {
	return Retry(ctx, a.policy, IsTransient, func(ctx context.Context) ([]byte, error) {
		return a.get(ctx, url)
	})
}

func (a *API) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: GET %s: %w", ErrTransient, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrTransient, url, err)
	}

	if a.rateLimited(resp, body) {
		return nil, fmt.Errorf("%w: rate limited while accessing %s", ErrTransient, url)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: %w", ErrTransient, &StatusError{URL: url, Code: resp.StatusCode})
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}
	return body, nil
}

// rateLimited checks textual bodies for the marker whatever the status code.
// Binary payloads are not scanned.
func (a *API) rateLimited(resp *http.Response, body []byte) bool {
	if a.rateLimitMarker == "" {
		return false
	}
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "text/") && !strings.Contains(ct, "html") {
		return false
	}
	return bytes.Contains(body, []byte(a.rateLimitMarker))
}
