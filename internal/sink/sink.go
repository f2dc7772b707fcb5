// Package sink delivers generated schedules to the downstream service
// that plays them out. Pushes run as a job step after generation
// completes; a failed push marks the step, never the result.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"chanplan/internal/httputil"
	"chanplan/internal/metrics"
	"chanplan/internal/models"
)

// Sink receives finished schedules for one or more channels.
type Sink interface {
	Name() string
	TestConnection(ctx context.Context) error
	PushSchedule(ctx context.Context, channelID int64, result *models.ProgrammingResult) error
}

// pushPayload is the wire layout of one schedule push. Test pushes carry
// the test flag and no result; receivers treat them as a no-op.
type pushPayload struct {
	ChannelID int64                     `json:"channelId"`
	PushedAt  time.Time                 `json:"pushedAt"`
	Test      bool                      `json:"test,omitempty"`
	Result    *models.ProgrammingResult `json:"result,omitempty"`
}

// HTTP posts schedule payloads as JSON to a configured endpoint.
type HTTP struct {
	name     string
	endpoint string
	token    string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker
}

// NewHTTP builds a sink for one endpoint. token is optional; when set it
// is sent as a bearer Authorization header.
func NewHTTP(endpoint, token string) *HTTP {
	name := "http"
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		name = u.Host
	}
	return &HTTP{
		name:     name,
		endpoint: endpoint,
		token:    token,
		client:   httputil.NewClientWithTimeout(httputil.IntegrationTimeout),
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "sink " + name,
			Interval: time.Minute,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
			IsSuccessful: func(err error) bool {
				return models.KindOf(err) != models.KindDependency
			},
		}),
	}
}

func (s *HTTP) Name() string { return s.name }

// TestConnection delivers a synthetic test push so operators can verify
// endpoint and credentials before wiring a channel to it.
func (s *HTTP) TestConnection(ctx context.Context) error {
	return s.post(ctx, pushPayload{Test: true, PushedAt: time.Now().UTC()})
}

// PushSchedule posts the generation result for one channel.
func (s *HTTP) PushSchedule(ctx context.Context, channelID int64, result *models.ProgrammingResult) error {
	if result == nil {
		return models.InternalError("sink %s: nil result", s.name)
	}
	return s.post(ctx, pushPayload{
		ChannelID: channelID,
		PushedAt:  time.Now().UTC(),
		Result:    result,
	})
}

func (s *HTTP) post(ctx context.Context, payload pushPayload) error {
	if s.endpoint == "" {
		return models.ConfigError("sink: endpoint not configured")
	}
	_, err := s.cb.Execute(func() (any, error) {
		return nil, s.send(ctx, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return models.DependencyError("sink %s: %w", s.name, err)
	}
	return err
}

func (s *HTTP) send(ctx context.Context, payload pushPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return models.InternalError("sink %s: marshaling payload: %w", s.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.ConfigError("sink %s: creating request: %w", s.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	reqStart := time.Now()
	resp, err := s.client.Do(req)
	metrics.ObserveExternalRequest("sink", time.Since(reqStart))
	if err != nil {
		return models.DependencyError("sink %s: %w", s.name, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return models.ConfigError("sink %s: auth rejected (status %d)", s.name, resp.StatusCode)
	case resp.StatusCode >= 400:
		return models.DependencyError("sink %s: status %d", s.name, resp.StatusCode)
	}
	return nil
}
