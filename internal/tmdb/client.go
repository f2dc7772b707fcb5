// Package tmdb enriches catalog content with TMDB metadata: genres,
// keywords, cast, certifications, financials. Lookups are rate limited
// and served from the hot cache where possible; shows share one TMDB id
// across all their episodes, so a sync pass hits the cache far more often
// than the network.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"chanplan/internal/cache"
	"chanplan/internal/httputil"
	"chanplan/internal/metrics"
	"chanplan/internal/models"
)

const defaultBaseURL = "https://api.themoviedb.org/3"

// hotTTL bounds hot-cache staleness. The nightly sync refreshes durable
// metadata anyway, so a day is plenty.
const hotTTL = 24 * time.Hour

type Client struct {
	apiKey   string
	baseURL  string
	language string
	http     *http.Client
	hot      cache.Cache
	limiter  *rate.Limiter
	cb       *gobreaker.CircuitBreaker
}

// New builds a TMDB client. hot may be nil, in which case every lookup
// goes to the network.
func New(apiKey string, hot cache.Cache) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    httputil.NewClientWithTimeout(httputil.IntegrationTimeout),
		hot:     hot,
		limiter: rate.NewLimiter(35, 10),
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "tmdb",
			Interval: time.Minute,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			// Only dependency failures count toward opening. Unknown
			// titles and rejected keys say nothing about TMDB's health.
			IsSuccessful: func(err error) bool {
				return models.KindOf(err) != models.KindDependency
			},
		}),
	}
}

// NewWithBaseURL builds an unthrottled client against a custom endpoint.
// Used by tests.
func NewWithBaseURL(apiKey string, hot cache.Cache, baseURL string) *Client {
	c := New(apiKey, hot)
	c.baseURL = baseURL
	c.limiter = rate.NewLimiter(rate.Inf, 0)
	return c
}

// SetLanguage localizes title lookups, e.g. "de-DE". Empty keeps TMDB's
// default.
func (c *Client) SetLanguage(lang string) { c.language = lang }

// TestConnection verifies the API key against the configuration endpoint.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.do(ctx, "/configuration", nil)
	return err
}

func (c *Client) do(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, models.ConfigError("tmdb api key not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	v, err := c.cb.Execute(func() (any, error) {
		return c.fetch(ctx, path, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, models.DependencyError("tmdb: %w", err)
		}
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) fetch(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)
	u := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	reqStart := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveExternalRequest("tmdb", time.Since(reqStart))
	if err != nil {
		return nil, models.DependencyError("tmdb: %w", err)
	}
	defer httputil.DrainBody(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxResponseBody))
	if err != nil {
		return nil, models.DependencyError("tmdb: reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("tmdb %s: %w", path, models.ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, models.ConfigError("tmdb: api key rejected")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, models.DependencyError("tmdb: status %d: %s", resp.StatusCode, httputil.Truncate(body, 200))
	}
	return body, nil
}
