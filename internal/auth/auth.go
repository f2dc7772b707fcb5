package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"chanplan/internal/store"
)

// Service verifies presented API keys against the stored admin key hash.
// A full argon2id check runs once per key; requests after that hit a
// constant-time digest comparison.
type Service struct {
	store *store.Store

	mu       sync.RWMutex
	verified [sha256.Size]byte
	cached   bool
}

func New(st *store.Store) *Service {
	return &Service{store: st}
}

// Enabled reports whether an admin key has been set.
func (s *Service) Enabled() (bool, error) {
	hash, err := s.store.GetAdminKeyHash()
	return hash != "", err
}

// SetKey validates, hashes and stores a new admin key.
func (s *Service) SetKey(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	hash, err := HashKey(key)
	if err != nil {
		return err
	}
	if err := s.store.SetAdminKeyHash(hash); err != nil {
		return err
	}
	s.mu.Lock()
	s.cached = false
	s.mu.Unlock()
	return nil
}

// Rotate generates a fresh key, stores its hash and returns the plaintext.
// This is the only time the plaintext is visible.
func (s *Service) Rotate() (string, error) {
	key, err := GenerateKey()
	if err != nil {
		return "", err
	}
	if err := s.SetKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// Verify reports whether key matches the stored hash. When no key is
// configured it burns a check against dummyHash and reports false, so
// callers cannot tell "unset" from "wrong" by timing.
func (s *Service) Verify(key string) (bool, error) {
	digest := sha256.Sum256([]byte(key))

	s.mu.RLock()
	if s.cached && subtle.ConstantTimeCompare(digest[:], s.verified[:]) == 1 {
		s.mu.RUnlock()
		return true, nil
	}
	s.mu.RUnlock()

	hash, err := s.store.GetAdminKeyHash()
	if err != nil {
		return false, err
	}
	if hash == "" {
		_, _ = VerifyKey(key, dummyHash)
		return false, nil
	}

	ok, err := VerifyKey(key, hash)
	if err != nil || !ok {
		return false, err
	}

	s.mu.Lock()
	s.verified = digest
	s.cached = true
	s.mu.Unlock()
	return true, nil
}

// KeyFromRequest extracts the presented API key: X-API-Key first, then a
// bearer token.
func KeyFromRequest(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// RequireKey gates a handler chain on the admin key. With no key
// configured every request passes.
func (s *Service) RequireKey() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			enabled, err := s.Enabled()
			if err != nil {
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			key := KeyFromRequest(r)
			if key == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			ok, err := s.Verify(key)
			if err != nil {
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}
			if !ok {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
