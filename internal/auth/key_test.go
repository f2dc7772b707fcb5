package auth

import (
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"valid 16 chars", "0123456789abcdef", nil},
		{"valid generated length", strings.Repeat("a", 64), nil},
		{"too short", "short-key", ErrKeyTooShort},
		{"empty", "", ErrKeyTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if err != tt.wantErr {
				t.Errorf("ValidateKey(%q) = %v, want %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if len(key) != 64 {
		t.Errorf("key length = %d, want 64", len(key))
	}
	if err := ValidateKey(key); err != nil {
		t.Errorf("generated key fails validation: %v", err)
	}

	key2, _ := GenerateKey()
	if key == key2 {
		t.Error("two generated keys are identical")
	}
}

func TestHashKey(t *testing.T) {
	key := "test-api-key-1234"

	hash, err := HashKey(key)
	if err != nil {
		t.Fatalf("HashKey failed: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Errorf("hash should start with $argon2id$v=19$, got %s", hash)
	}

	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Errorf("hash should have 6 parts, got %d", len(parts))
	}

	// Random salt makes every hash distinct.
	hash2, _ := HashKey(key)
	if hash == hash2 {
		t.Error("hashes should differ due to random salt")
	}
}

func TestVerifyKey(t *testing.T) {
	key := "test-api-key-1234"
	hash, err := HashKey(key)
	if err != nil {
		t.Fatalf("HashKey failed: %v", err)
	}

	tests := []struct {
		name    string
		key     string
		hash    string
		want    bool
		wantErr bool
	}{
		{"correct key", key, hash, true, false},
		{"wrong key", "wrong-api-key-999", hash, false, false},
		{"similar key", "test-api-key-1235", hash, false, false},
		{"empty key", "", hash, false, false},
		{"invalid hash format", key, "notahash", false, true},
		{"invalid hash prefix", key, "$bcrypt$invalidhash", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifyKey(tt.key, tt.hash)
			if (err != nil) != tt.wantErr {
				t.Errorf("VerifyKey() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("VerifyKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDummyHashIsValid(t *testing.T) {
	// dummyHash must parse as a real argon2id hash so the unconfigured
	// path pays the same cost as a mismatch.
	valid, err := VerifyKey("anykey-anykey-anykey", dummyHash)
	if err != nil {
		t.Fatalf("dummyHash is not a valid argon2id hash: %v", err)
	}
	if valid {
		t.Error("dummyHash should not match any key")
	}
}
