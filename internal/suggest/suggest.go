// Package suggest asks an OpenAI-compatible endpoint to review a generated
// schedule. Suggestions are advisory: the run attaches the response to its
// result and never fails because of this path.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"chanplan/internal/httputil"
	"chanplan/internal/metrics"
	"chanplan/internal/models"
)

// Suggester produces improvement notes for a schedule summary. model may
// be empty to use the configured default.
type Suggester interface {
	Suggest(ctx context.Context, prompt, model string) (string, error)
}

// callTimeout bounds one completion call. Large schedules produce long
// prompts and reasoning models answer slowly.
const callTimeout = 2 * time.Minute

const systemPrompt = "You are a television programming assistant. Review " +
	"the schedule and scoring summary you are given and suggest concrete " +
	"improvements: better slot assignments, replacements for low-scoring " +
	"picks, pacing problems. Be specific and concise."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client talks to one OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// New builds a client. apiKey may be empty for unauthenticated local
// endpoints.
func New(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL: normalizeBaseURL(baseURL),
		apiKey:  apiKey,
		model:   model,
		http:    httputil.NewClientWithTimeout(callTimeout),
	}
}

func (c *Client) Suggest(ctx context.Context, prompt, model string) (string, error) {
	if c.baseURL == "" {
		return "", models.ConfigError("suggest: base url not configured")
	}
	if model == "" {
		model = c.model
	}
	if model == "" {
		return "", models.ConfigError("suggest: model not configured")
	}

	payload := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", models.InternalError("suggest: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", models.ConfigError("suggest: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	reqStart := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveExternalRequest("suggest", time.Since(reqStart))
	if err != nil {
		return "", models.DependencyError("suggest: %w", err)
	}
	defer httputil.DrainBody(resp)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxResponseBody))
	if err != nil {
		return "", models.DependencyError("suggest: reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", models.ConfigError("suggest: api key rejected (status %d)", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", models.DependencyError("suggest: status %d: %s", resp.StatusCode, httputil.Truncate(raw, 200))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", models.DependencyError("suggest: decoding response: %w", err)
	}
	if cr.Error != nil {
		return "", models.DependencyError("suggest: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", models.DependencyError("suggest: empty response")
	}

	return stripThink(cr.Choices[0].Message.Content), nil
}

// normalizeBaseURL strips trailing slashes and a "/chat/completions"
// suffix so the path is never doubled when the client appends it.
func normalizeBaseURL(raw string) string {
	s := strings.TrimRight(raw, "/")
	return strings.TrimSuffix(s, "/chat/completions")
}

// stripThink drops <think>...</think> reasoning blocks so stored
// suggestions carry only the final answer.
func stripThink(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "</think>")
		if end == -1 {
			s = s[:start]
			break
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}
