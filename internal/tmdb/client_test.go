package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chanplan/internal/cache"
	"chanplan/internal/models"
)

const movieFixture = `{
  "id": 10386,
  "title": "The Iron Giant",
  "genres": [{"id": 16, "name": "Animation"}, {"id": 10751, "name": "Family"}],
  "production_companies": [{"id": 1, "name": "Warner Bros. Animation"}],
  "belongs_to_collection": {"id": 5, "name": "Iron Giant Collection"},
  "vote_average": 7.9,
  "vote_count": 4875,
  "budget": 70000000,
  "revenue": 23159305,
  "keywords": {"keywords": [{"id": 1, "name": "robot"}, {"id": 2, "name": "cold war"}]},
  "credits": {"cast": [{"name": "Eli Marienthal", "order": 0}, {"name": "Jennifer Aniston", "order": 1}]},
  "release_dates": {"results": [
    {"iso_3166_1": "DE", "release_dates": [{"certification": "6"}]},
    {"iso_3166_1": "US", "release_dates": [{"certification": ""}, {"certification": "PG"}]}
  ]}
}`

func newTestClient(t *testing.T, handler http.Handler, hot cache.Cache) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewWithBaseURL("test-key", hot, srv.URL)
	c.http = srv.Client()
	return c
}

func newHotCache(t *testing.T) cache.Cache {
	t.Helper()
	hot := cache.NewMemory(0)
	t.Cleanup(func() { hot.Close() })
	return hot
}

func TestMovieDetails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/10386" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Errorf("expected api_key=test-key, got %s", r.URL.Query().Get("api_key"))
		}
		if r.URL.Query().Get("append_to_response") != "keywords,credits,release_dates" {
			t.Errorf("unexpected append_to_response: %s", r.URL.Query().Get("append_to_response"))
		}
		w.Write([]byte(movieFixture))
	}), nil)

	meta, err := c.MovieDetails(context.Background(), 10386)
	if err != nil {
		t.Fatalf("MovieDetails: %v", err)
	}

	if len(meta.Genres) != 2 || meta.Genres[0] != "Animation" || meta.Genres[1] != "Family" {
		t.Errorf("genres = %v", meta.Genres)
	}
	if len(meta.Keywords) != 2 || meta.Keywords[1] != "cold war" {
		t.Errorf("keywords = %v", meta.Keywords)
	}
	if len(meta.Studios) != 1 || meta.Studios[0] != "Warner Bros. Animation" {
		t.Errorf("studios = %v", meta.Studios)
	}
	if len(meta.Collections) != 1 || meta.Collections[0] != "Iron Giant Collection" {
		t.Errorf("collections = %v", meta.Collections)
	}
	if len(meta.Actors) != 2 || meta.Actors[0] != "Eli Marienthal" {
		t.Errorf("actors = %v", meta.Actors)
	}
	if meta.AgeRating != "PG" {
		t.Errorf("age rating = %q, want PG (US preferred over DE)", meta.AgeRating)
	}
	if meta.Rating != 7.9 {
		t.Errorf("rating = %v", meta.Rating)
	}
	if meta.VoteCount != 4875 {
		t.Errorf("vote count = %d", meta.VoteCount)
	}
	if meta.Budget != 70000000 || meta.Revenue != 23159305 {
		t.Errorf("budget/revenue = %d/%d", meta.Budget, meta.Revenue)
	}
	if meta.TMDBID != 10386 {
		t.Errorf("tmdb id = %d", meta.TMDBID)
	}
}

func TestTVDetails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/1396" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("append_to_response") != "keywords,credits,content_ratings" {
			t.Errorf("unexpected append_to_response: %s", r.URL.Query().Get("append_to_response"))
		}
		w.Write([]byte(`{
  "id": 1396,
  "name": "Breaking Bad",
  "genres": [{"id": 18, "name": "Drama"}],
  "vote_average": 8.9,
  "vote_count": 12000,
  "keywords": {"results": [{"id": 1, "name": "drug cartel"}]},
  "credits": {"cast": [{"name": "Bryan Cranston", "order": 0}]},
  "content_ratings": {"results": [{"iso_3166_1": "GB", "rating": "18"}, {"iso_3166_1": "US", "rating": "TV-MA"}]}
}`))
	}), nil)

	meta, err := c.TVDetails(context.Background(), 1396)
	if err != nil {
		t.Fatalf("TVDetails: %v", err)
	}
	if len(meta.Genres) != 1 || meta.Genres[0] != "Drama" {
		t.Errorf("genres = %v", meta.Genres)
	}
	if len(meta.Keywords) != 1 || meta.Keywords[0] != "drug cartel" {
		t.Errorf("keywords = %v (TV keywords live under results)", meta.Keywords)
	}
	if meta.AgeRating != "TV-MA" {
		t.Errorf("age rating = %q, want TV-MA", meta.AgeRating)
	}
	if meta.Collections != nil {
		t.Errorf("collections = %v, want nil", meta.Collections)
	}
}

func TestDetailsHotCacheHit(t *testing.T) {
	var calls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(movieFixture))
	}), newHotCache(t))

	for i := 0; i < 3; i++ {
		if _, err := c.MovieDetails(context.Background(), 10386); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 HTTP call, got %d", calls)
	}
}

func TestDetailsLanguage(t *testing.T) {
	var langs []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		langs = append(langs, r.URL.Query().Get("language"))
		w.Write([]byte(`{"id": 1}`))
	}), nil)

	if _, err := c.MovieDetails(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	c.SetLanguage("de-DE")
	if _, err := c.MovieDetails(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	if len(langs) != 2 || langs[0] != "" || langs[1] != "de-DE" {
		t.Fatalf("language params = %v", langs)
	}
}

func TestDetailsDispatch(t *testing.T) {
	var paths []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte(`{"id": 1}`))
	}), nil)

	if _, err := c.Details(context.Background(), models.ContentTypeMovie, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Details(context.Background(), models.ContentTypeEpisode, 1); err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 || paths[0] != "/movie/1" || paths[1] != "/tv/1" {
		t.Fatalf("paths = %v", paths)
	}
}

func TestRefreshBypassesHotCache(t *testing.T) {
	hot := newHotCache(t)
	hot.Set("tmdb:movie:10386", &models.ContentMeta{Rating: 1.0}, 0)

	var calls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(movieFixture))
	}), hot)

	meta, err := c.Refresh(context.Background(), models.ContentTypeMovie, 10386)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 HTTP call, got %d", calls)
	}
	if meta.Rating != 7.9 {
		t.Errorf("rating = %v, want the fetched 7.9", meta.Rating)
	}

	// The stale entry is replaced, so a plain lookup now sees fresh data.
	cached, ok := hot.Get("tmdb:movie:10386")
	if !ok || cached.Rating != 7.9 {
		t.Errorf("hot cache after refresh = %+v", cached)
	}
}

func TestCastTruncation(t *testing.T) {
	members := make([]string, 12)
	for i := range members {
		members[i] = fmt.Sprintf(`{"name": "Actor %d", "order": %d}`, i, i)
	}
	body := fmt.Sprintf(`{"id": 1, "credits": {"cast": [%s]}}`, strings.Join(members, ","))

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}), nil)

	meta, err := c.MovieDetails(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.Actors) != maxCastNames {
		t.Fatalf("actors = %d, want %d", len(meta.Actors), maxCastNames)
	}
	if meta.Actors[0] != "Actor 0" || meta.Actors[9] != "Actor 9" {
		t.Errorf("actors = %v", meta.Actors)
	}
}

func TestCertificationFallback(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 1, "release_dates": {"results": [
  {"iso_3166_1": "FR", "release_dates": [{"certification": ""}]},
  {"iso_3166_1": "DE", "release_dates": [{"certification": "12"}]}
]}}`))
	}), nil)

	meta, err := c.MovieDetails(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if meta.AgeRating != "12" {
		t.Errorf("age rating = %q, want first non-empty fallback 12", meta.AgeRating)
	}
}

func TestMovieDetailsNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status_message": "not found"}`))
	}), nil)

	_, err := c.MovieDetails(context.Background(), 99999)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAPIKeyRejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}), nil)

	err := c.TestConnection(context.Background())
	if models.KindOf(err) != models.KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestMissingAPIKey(t *testing.T) {
	var calls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}), nil)
	c.apiKey = ""

	_, err := c.MovieDetails(context.Background(), 1)
	if models.KindOf(err) != models.KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no HTTP calls, got %d", calls)
	}
}

func TestTestConnection(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/configuration" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"images": {}}`))
	}), nil)

	if err := c.TestConnection(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestBreakerOpensOnRepeatedServerErrors(t *testing.T) {
	var calls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}), nil)

	for i := 0; i < 5; i++ {
		_, err := c.MovieDetails(context.Background(), 1)
		if models.KindOf(err) != models.KindDependency {
			t.Fatalf("call %d: got %v", i, err)
		}
	}

	// The open breaker rejects the next call before it reaches the server.
	_, err := c.MovieDetails(context.Background(), 1)
	if models.KindOf(err) != models.KindDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if calls != 5 {
		t.Errorf("server calls = %d, want 5", calls)
	}
}

func TestNotFoundDoesNotOpenBreaker(t *testing.T) {
	var calls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}), nil)

	for i := 0; i < 8; i++ {
		_, err := c.MovieDetails(context.Background(), 1)
		if !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("call %d: got %v", i, err)
		}
	}
	if calls != 8 {
		t.Errorf("server calls = %d, want 8 (breaker must stay closed)", calls)
	}
}
