package suggest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chanplan/internal/models"
)

func TestSuggest(t *testing.T) {
	var got chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte(`{"choices": [{"message": {"content": "Move the documentary to the 21:00 slot."}}]}`))
	}))
	defer ts.Close()

	resp, err := New(ts.URL, "sk-test", "gpt-4o-mini").Suggest(context.Background(), "Schedule: ...", "")
	if err != nil {
		t.Fatal(err)
	}
	if resp != "Move the documentary to the 21:00 slot." {
		t.Errorf("response = %q", resp)
	}

	if got.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want the configured default", got.Model)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("messages = %d, want system + user", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Errorf("roles = %s/%s", got.Messages[0].Role, got.Messages[1].Role)
	}
	if got.Messages[1].Content != "Schedule: ..." {
		t.Errorf("user content = %q", got.Messages[1].Content)
	}
}

func TestSuggestModelOverride(t *testing.T) {
	var got chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	}))
	defer ts.Close()

	if _, err := New(ts.URL, "", "default-model").Suggest(context.Background(), "p", "other-model"); err != nil {
		t.Fatal(err)
	}
	if got.Model != "other-model" {
		t.Errorf("model = %q, want other-model", got.Model)
	}
}

func TestSuggestStripsThinkBlocks(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "<think>weighing options</think>Swap slots 3 and 5."}},
			},
		})
		w.Write(body)
	}))
	defer ts.Close()

	resp, err := New(ts.URL, "", "m").Suggest(context.Background(), "p", "")
	if err != nil {
		t.Fatal(err)
	}
	if resp != "Swap slots 3 and 5." {
		t.Errorf("response = %q", resp)
	}
}

func TestSuggestAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "model overloaded"}}`))
	}))
	defer ts.Close()

	_, err := New(ts.URL, "", "m").Suggest(context.Background(), "p", "")
	if models.KindOf(err) != models.KindDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestSuggestEmptyChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer ts.Close()

	_, err := New(ts.URL, "", "m").Suggest(context.Background(), "p", "")
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestSuggestKeyRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	_, err := New(ts.URL, "bad", "m").Suggest(context.Background(), "p", "")
	if models.KindOf(err) != models.KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestSuggestNotConfigured(t *testing.T) {
	if _, err := New("", "", "m").Suggest(context.Background(), "p", ""); models.KindOf(err) != models.KindConfig {
		t.Fatalf("expected config error for missing base url, got %v", err)
	}
	if _, err := New("http://llm.local", "", "").Suggest(context.Background(), "p", ""); models.KindOf(err) != models.KindConfig {
		t.Fatalf("expected config error for missing model, got %v", err)
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"http://llm.local/v1", "http://llm.local/v1"},
		{"http://llm.local/v1/", "http://llm.local/v1"},
		{"http://llm.local/v1/chat/completions", "http://llm.local/v1"},
		{"http://llm.local/v1/chat/completions/", "http://llm.local/v1"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := normalizeBaseURL(tc.in); got != tc.want {
			t.Errorf("normalizeBaseURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStripThink(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain answer", "plain answer"},
		{"<think>a</think>answer", "answer"},
		{"<think>a</think>x<think>b</think>y", "xy"},
		{"answer<think>unclosed", "answer"},
	}
	for _, tc := range cases {
		if got := stripThink(tc.in); got != tc.want {
			t.Errorf("stripThink(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
