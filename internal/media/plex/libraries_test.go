package plex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"chanplan/internal/models"
)

func TestGetLibraries(t *testing.T) {
	sectionsXML := `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer>
  <Directory key="1" title="Movies" type="movie"/>
  <Directory key="2" title="TV Shows" type="show"/>
  <Directory key="3" title="Home Videos" type="other"/>
</MediaContainer>`

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Plex-Token") != "test-token" {
			t.Error("missing plex token header")
		}
		switch r.URL.Path {
		case "/library/sections":
			w.Write([]byte(sectionsXML))
		case "/library/sections/1/all":
			if r.URL.Query().Get("type") == plexTypeMovie {
				w.Write([]byte(`<MediaContainer totalSize="150"/>`))
			} else {
				w.Write([]byte(`<MediaContainer size="0"/>`))
			}
		case "/library/sections/2/all":
			// Show sections count episodes, not shows.
			if r.URL.Query().Get("type") == plexTypeEpisode {
				w.Write([]byte(`<MediaContainer totalSize="2500"/>`))
			} else {
				w.Write([]byte(`<MediaContainer size="0"/>`))
			}
		case "/library/sections/3/all":
			w.Write([]byte(`<MediaContainer totalSize="12"/>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	libs, err := newTestServer(ts).GetLibraries(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(libs) != 3 {
		t.Fatalf("expected 3 libraries, got %d", len(libs))
	}

	movies := libs[0]
	if movies.ID != "1" {
		t.Errorf("movies id = %q, want 1", movies.ID)
	}
	if movies.Name != "Movies" {
		t.Errorf("movies name = %q, want Movies", movies.Name)
	}
	if movies.Type != models.LibraryTypeMovie {
		t.Errorf("movies type = %q, want movie", movies.Type)
	}
	if movies.ItemCount != 150 {
		t.Errorf("movies item_count = %d, want 150", movies.ItemCount)
	}
	if movies.ServerID != 1 {
		t.Errorf("movies server_id = %d, want 1", movies.ServerID)
	}

	tv := libs[1]
	if tv.Type != models.LibraryTypeShow {
		t.Errorf("tv type = %q, want show", tv.Type)
	}
	if tv.ItemCount != 2500 {
		t.Errorf("tv item_count = %d, want 2500 (episodes)", tv.ItemCount)
	}

	other := libs[2]
	if other.Type != models.LibraryTypeOther {
		t.Errorf("other type = %q, want other", other.Type)
	}
	if other.ItemCount != 12 {
		t.Errorf("other item_count = %d, want 12", other.ItemCount)
	}
}

func TestGetLibrariesEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<MediaContainer/>`))
	}))
	defer ts.Close()

	libs, err := newTestServer(ts).GetLibraries(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(libs) != 0 {
		t.Errorf("expected 0 libraries, got %d", len(libs))
	}
}

func TestGetLibrariesServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := newTestServer(ts).GetLibraries(context.Background())
	if err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestGetLibrariesUsesSize(t *testing.T) {
	sectionsXML := `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer>
  <Directory key="1" title="Movies" type="movie"/>
</MediaContainer>`

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/library/sections":
			w.Write([]byte(sectionsXML))
		case "/library/sections/1/all":
			// No totalSize, should fall back to size
			w.Write([]byte(`<MediaContainer size="42"/>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	libs, err := newTestServer(ts).GetLibraries(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(libs) != 1 {
		t.Fatalf("expected 1 library, got %d", len(libs))
	}
	if libs[0].ItemCount != 42 {
		t.Errorf("item_count = %d, want 42 (from size attr)", libs[0].ItemCount)
	}
}
