package datasource

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultUserAgent identifies the renderer to tile providers.
const DefaultUserAgent = "staticmap/1.0 (+https://github.com/MeKo-Tech/staticmap)"

// maxTileBytes bounds a single tile download.
const maxTileBytes = 16 << 20

// HTTPConfig configures an HTTPSource.
type HTTPConfig struct {
	Client    *http.Client // optional; built from Timeout when nil
	Timeout   time.Duration
	UserAgent string
	// Retries is the number of extra attempts after a transient failure
	// (network error, 429 or 5xx). Zero disables retrying.
	Retries int
	Backoff time.Duration // first retry delay, doubled per attempt
	Logger  *slog.Logger
}

// DefaultHTTPConfig returns sensible defaults.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:   30 * time.Second,
		UserAgent: DefaultUserAgent,
		Backoff:   250 * time.Millisecond,
	}
}

// HTTPSource downloads tiles over HTTP(S).
type HTTPSource struct {
	client    *http.Client
	userAgent string
	retries   int
	backoff   time.Duration
	logger    *slog.Logger
}

// NewHTTPSource creates an HTTP tile source.
func NewHTTPSource(cfg HTTPConfig) *HTTPSource {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 250 * time.Millisecond
	}

	return &HTTPSource{
		client:    client,
		userAgent: cfg.UserAgent,
		retries:   max(cfg.Retries, 0),
		backoff:   cfg.Backoff,
		logger:    cfg.Logger,
	}
}

// FetchTile downloads and decodes the tile at url.
func (s *HTTPSource) FetchTile(ctx context.Context, url string) (image.Image, error) {
	return fetchAndDecode(ctx, s, url)
}

// FetchRaw downloads the encoded tile at url.
func (s *HTTPSource) FetchRaw(ctx context.Context, url string) ([]byte, error) {
	if err := checkFormat(url); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			delay := s.backoff << (attempt - 1)
			s.log().Debug("retrying tile download", "url", url, "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, transportError(url, ctx.Err())
			case <-time.After(delay):
			}
		}

		data, retry, err := s.get(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return nil, transportError(url, lastErr)
}

// get performs one request. retry reports whether the failure is transient.
func (s *HTTPSource) get(ctx context.Context, url string) (data []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "image/png,image/jpeg;q=0.9,*/*;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, !errors.Is(err, context.Canceled), err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) // nolint:errcheck
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, transient, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxTileBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxTileBytes {
		return nil, false, fmt.Errorf("tile larger than %d bytes", maxTileBytes)
	}
	return data, false, nil
}

func (s *HTTPSource) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
