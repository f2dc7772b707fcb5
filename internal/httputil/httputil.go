// Package httputil holds shared HTTP client plumbing for the outbound
// integrations: media servers, TMDB, channel sinks, and the suggestion
// endpoint.
package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const DefaultTimeout = 10 * time.Second
const ExtendedTimeout = 15 * time.Second
const IntegrationTimeout = 30 * time.Second
const MaxResponseBody = 2 << 20 // 2 MiB

func NewClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

func NewClientWithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// DrainBody finishes and closes resp.Body so the transport can reuse the
// connection.
func DrainBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

// ReadLimited reads the response body up to MaxResponseBody and errors when
// the server sends more. Integrations never trust upstream sizes.
func ReadLimited(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBody+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if len(data) > MaxResponseBody {
		return nil, fmt.Errorf("response body exceeds %d bytes", MaxResponseBody)
	}
	return data, nil
}

// DecodeJSONLimited decodes a size-capped JSON response body into v.
func DecodeJSONLimited(resp *http.Response, v any) error {
	data, err := ReadLimited(resp)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// ValidateIntegrationURL checks that a URL is usable as an integration
// endpoint (media server, sink, or suggestion base URL).
func ValidateIntegrationURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// Truncate renders at most maxRunes runes of b, marking cut-off text with
// "...". Used when quoting upstream error bodies.
func Truncate(b []byte, maxRunes int) string {
	r := []rune(string(b))
	if len(r) > maxRunes {
		return string(r[:maxRunes]) + "..."
	}
	return string(r)
}
