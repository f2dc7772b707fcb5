package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"chanplan/internal/store"
)

func migrationsDir() string {
	_, f, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(f), "..", "..", "migrations")
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	dir := migrationsDir()
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("migrations dir: %v", err)
	}
	if err := s.Migrate(dir); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return New(s)
}

func TestServiceDisabledUntilKeySet(t *testing.T) {
	svc := newTestService(t)

	enabled, err := svc.Enabled()
	if err != nil {
		t.Fatal(err)
	}
	if enabled {
		t.Error("service enabled before any key was set")
	}

	if err := svc.SetKey("my-admin-key-0001"); err != nil {
		t.Fatal(err)
	}
	enabled, err = svc.Enabled()
	if err != nil {
		t.Fatal(err)
	}
	if !enabled {
		t.Error("service still disabled after SetKey")
	}
}

func TestServiceSetKeyTooShort(t *testing.T) {
	svc := newTestService(t)
	if err := svc.SetKey("short"); err != ErrKeyTooShort {
		t.Fatalf("SetKey(short) = %v, want ErrKeyTooShort", err)
	}
}

func TestServiceVerify(t *testing.T) {
	svc := newTestService(t)
	if err := svc.SetKey("my-admin-key-0001"); err != nil {
		t.Fatal(err)
	}

	ok, err := svc.Verify("my-admin-key-0001")
	if err != nil || !ok {
		t.Fatalf("Verify(correct) = (%v, %v)", ok, err)
	}
	// Second call takes the cached-digest path.
	ok, err = svc.Verify("my-admin-key-0001")
	if err != nil || !ok {
		t.Fatalf("cached Verify(correct) = (%v, %v)", ok, err)
	}

	ok, err = svc.Verify("not-the-admin-key")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("wrong key verified")
	}
}

func TestServiceVerifyUnconfigured(t *testing.T) {
	svc := newTestService(t)
	ok, err := svc.Verify("whatever-key-1234")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("verify passed with no key configured")
	}
}

func TestServiceRotate(t *testing.T) {
	svc := newTestService(t)
	if err := svc.SetKey("my-admin-key-0001"); err != nil {
		t.Fatal(err)
	}

	key, err := svc.Rotate()
	if err != nil {
		t.Fatal(err)
	}
	if len(key) != 64 {
		t.Errorf("rotated key length = %d, want 64", len(key))
	}

	ok, err := svc.Verify(key)
	if err != nil || !ok {
		t.Fatalf("Verify(rotated) = (%v, %v)", ok, err)
	}
	ok, err = svc.Verify("my-admin-key-0001")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("old key still verifies after rotation")
	}
}

func requireTestHandler(svc *Service) (http.Handler, *bool) {
	reached := false
	h := svc.RequireKey()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))
	return h, &reached
}

func TestRequireKeyDisabledPassesThrough(t *testing.T) {
	svc := newTestService(t)
	h, reached := requireTestHandler(svc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/channels", nil))

	if rec.Code != http.StatusOK || !*reached {
		t.Errorf("status = %d, reached = %v", rec.Code, *reached)
	}
}

func TestRequireKeyMissingHeader(t *testing.T) {
	svc := newTestService(t)
	if err := svc.SetKey("my-admin-key-0001"); err != nil {
		t.Fatal(err)
	}
	h, reached := requireTestHandler(svc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/channels", nil))

	if rec.Code != http.StatusUnauthorized || *reached {
		t.Errorf("status = %d, reached = %v", rec.Code, *reached)
	}
}

func TestRequireKeyWrongKey(t *testing.T) {
	svc := newTestService(t)
	if err := svc.SetKey("my-admin-key-0001"); err != nil {
		t.Fatal(err)
	}
	h, reached := requireTestHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/channels", nil)
	req.Header.Set("X-API-Key", "not-the-admin-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized || *reached {
		t.Errorf("status = %d, reached = %v", rec.Code, *reached)
	}
}

func TestRequireKeyHeaderForms(t *testing.T) {
	svc := newTestService(t)
	if err := svc.SetKey("my-admin-key-0001"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		set  func(*http.Request)
	}{
		{"x-api-key", func(r *http.Request) { r.Header.Set("X-API-Key", "my-admin-key-0001") }},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer my-admin-key-0001") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, reached := requireTestHandler(svc)
			req := httptest.NewRequest(http.MethodGet, "/api/channels", nil)
			tt.set(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK || !*reached {
				t.Errorf("status = %d, reached = %v", rec.Code, *reached)
			}
		})
	}
}

func TestKeyFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{"x-api-key", "X-API-Key", "abc123", "abc123"},
		{"bearer", "Authorization", "Bearer abc123", "abc123"},
		{"basic ignored", "Authorization", "Basic abc123", ""},
		{"none", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			if got := KeyFromRequest(req); got != tt.want {
				t.Errorf("KeyFromRequest = %q, want %q", got, tt.want)
			}
		})
	}
}
