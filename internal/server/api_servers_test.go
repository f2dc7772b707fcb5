package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chanplan/internal/media"
	"chanplan/internal/models"
)

type fakeContentServer struct {
	name    string
	items   []models.Content
	connErr error
}

func (f *fakeContentServer) Name() string                             { return f.name }
func (f *fakeContentServer) Type() models.ServerType                  { return models.ServerTypePlex }
func (f *fakeContentServer) TestConnection(ctx context.Context) error { return f.connErr }

func (f *fakeContentServer) GetLibraries(ctx context.Context) ([]models.Library, error) {
	return []models.Library{{ID: "lib1", Name: "Movies", Type: models.LibraryTypeMovie, ItemCount: len(f.items)}}, nil
}

func (f *fakeContentServer) GetLibraryItems(ctx context.Context, libraryID string) ([]models.Content, error) {
	return f.items, nil
}

func (f *fakeContentServer) GetItemDetails(ctx context.Context, itemID string) (*models.PoolItem, error) {
	return nil, models.ErrNotFound
}

func fakeFactory(fake *fakeContentServer) func(*models.MediaServer) (media.ContentServer, error) {
	return func(*models.MediaServer) (media.ContentServer, error) { return fake, nil }
}

func TestCreateServerAPI(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"name":"Plex","type":"plex","url":"http://plex:32400","apiKey":"abc","enabled":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/servers", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var ms models.MediaServer
	if err := json.NewDecoder(w.Body).Decode(&ms); err != nil {
		t.Fatal(err)
	}
	if ms.ID == 0 {
		t.Fatal("expected ID")
	}
	if strings.Contains(w.Body.String(), "abc") {
		t.Fatal("api key must not appear in responses")
	}
}

func TestCreateServerValidationAPI(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty name", `{"name":"","type":"plex","url":"http://x","apiKey":"k"}`},
		{"bad type", `{"name":"X","type":"emby","url":"http://x","apiKey":"k"}`},
		{"empty url", `{"name":"X","type":"plex","url":"","apiKey":"k"}`},
		{"empty key", `{"name":"X","type":"plex","url":"http://x","apiKey":""}`},
		{"invalid json", `{bad`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/servers", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestTestServerConnectionAPI(t *testing.T) {
	fake := &fakeContentServer{name: "Plex"}
	srv, st := newTestServer(t, WithServerFactory(fakeFactory(fake)))

	ms := &models.MediaServer{Name: "Plex", Type: models.ServerTypePlex, URL: "http://plex", APIKey: "k"}
	if err := st.CreateServer(ms); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/servers/%d/test", ms.ID), nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res testConnectionResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
}

func TestTestServerConnectionFailureAPI(t *testing.T) {
	fake := &fakeContentServer{name: "Plex", connErr: errors.New("connection refused")}
	srv, st := newTestServer(t, WithServerFactory(fakeFactory(fake)))

	ms := &models.MediaServer{Name: "Plex", Type: models.ServerTypePlex, URL: "http://plex", APIKey: "k"}
	if err := st.CreateServer(ms); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/servers/%d/test", ms.ID), nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var res testConnectionResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Error == "" {
		t.Fatalf("expected failure detail, got %+v", res)
	}
}

func TestSyncServerAPI(t *testing.T) {
	fake := &fakeContentServer{name: "Plex", items: []models.Content{
		{ID: "m1", Title: "Alpha", Type: models.ContentTypeMovie, DurationMillis: 5400000, LibraryID: "lib1"},
		{ID: "m2", Title: "Beta", Type: models.ContentTypeMovie, DurationMillis: 6300000, LibraryID: "lib1"},
	}}
	srv, st := newTestServer(t, WithServerFactory(fakeFactory(fake)))

	ms := &models.MediaServer{Name: "Plex", Type: models.ServerTypePlex, URL: "http://plex", APIKey: "k", Enabled: true}
	if err := st.CreateServer(ms); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/servers/%d/sync", ms.ID), nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var job models.Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatal(err)
	}
	if job.Kind != models.JobKindSync {
		t.Fatalf("expected sync job, got %s", job.Kind)
	}

	done := waitForJob(t, srv.jobs, job.ID)
	if done.Status != models.JobCompleted {
		t.Fatalf("expected completed, got %s: %s", done.Status, done.Error)
	}

	n, err := st.CountContent(ms.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 items synced, got %d", n)
	}
}

func TestSyncServerUnknownAPI(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/servers/99/sync", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
