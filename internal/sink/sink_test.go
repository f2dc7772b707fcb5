package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chanplan/internal/models"
)

func testResult() *models.ProgrammingResult {
	return &models.ProgrammingResult{
		TotalScore:   42.5,
		AverageScore: 8.5,
		Iteration:    3,
		Programs: []models.ScheduledProgram{
			{Content: models.Content{ID: "plex-1-100", Title: "The Iron Giant"}, BlockName: "Evening"},
		},
	}
}

func TestPushSchedule(t *testing.T) {
	var got pushPayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
	}))
	defer ts.Close()

	s := NewHTTP(ts.URL, "secret")
	if err := s.PushSchedule(context.Background(), 7, testResult()); err != nil {
		t.Fatal(err)
	}

	if got.ChannelID != 7 {
		t.Errorf("channel id = %d, want 7", got.ChannelID)
	}
	if got.Test {
		t.Error("test flag set on a real push")
	}
	if got.PushedAt.IsZero() {
		t.Error("pushedAt not set")
	}
	if got.Result == nil || got.Result.TotalScore != 42.5 {
		t.Errorf("result = %+v", got.Result)
	}
	if len(got.Result.Programs) != 1 || got.Result.Programs[0].Content.Title != "The Iron Giant" {
		t.Errorf("programs = %+v", got.Result.Programs)
	}
}

func TestPushScheduleNoToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Error("authorization header sent without a configured token")
		}
	}))
	defer ts.Close()

	s := NewHTTP(ts.URL, "")
	if err := s.PushSchedule(context.Background(), 1, testResult()); err != nil {
		t.Fatal(err)
	}
}

func TestTestConnection(t *testing.T) {
	var got pushPayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer ts.Close()

	if err := NewHTTP(ts.URL, "secret").TestConnection(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !got.Test {
		t.Error("test flag not set")
	}
	if got.Result != nil {
		t.Errorf("test push carried a result: %+v", got.Result)
	}
}

func TestPushScheduleAuthRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	err := NewHTTP(ts.URL, "wrong").PushSchedule(context.Background(), 1, testResult())
	if models.KindOf(err) != models.KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestPushScheduleServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	err := NewHTTP(ts.URL, "").PushSchedule(context.Background(), 1, testResult())
	if models.KindOf(err) != models.KindDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestPushScheduleNilResult(t *testing.T) {
	err := NewHTTP("http://sink.local/push", "").PushSchedule(context.Background(), 1, nil)
	if err == nil {
		t.Fatal("expected error for nil result")
	}
}

func TestPushScheduleNoEndpoint(t *testing.T) {
	err := NewHTTP("", "").PushSchedule(context.Background(), 1, testResult())
	if models.KindOf(err) != models.KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestBreakerOpensOnRepeatedFailures(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	s := NewHTTP(ts.URL, "")
	for i := 0; i < 3; i++ {
		if err := s.PushSchedule(context.Background(), 1, testResult()); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	err := s.PushSchedule(context.Background(), 1, testResult())
	if models.KindOf(err) != models.KindDependency {
		t.Fatalf("expected dependency error from open breaker, got %v", err)
	}
	if calls != 3 {
		t.Errorf("server calls = %d, want 3", calls)
	}
}

func TestSinkName(t *testing.T) {
	s := NewHTTP("http://dvr.local:8089/api/push", "")
	if s.Name() != "dvr.local:8089" {
		t.Errorf("name = %q, want dvr.local:8089", s.Name())
	}
}
