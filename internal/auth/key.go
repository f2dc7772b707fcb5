// Package auth guards the HTTP API with a single admin API key. The key is
// stored as an argon2id hash; auth is disabled until a key is set.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters, OWASP recommended.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // 64 MB
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

var (
	ErrKeyTooShort = errors.New("api key must be at least 16 characters")
	ErrInvalidHash = errors.New("invalid key hash format")
)

// dummyHash is a well-formed argon2id hash that matches no key. Verifying
// against it keeps the unconfigured path as slow as a real mismatch.
const dummyHash = "$argon2id$v=19$m=65536,t=1,p=4$c2NoZWR1bGUtcGFkZGluZw$J9kXpQ2vRb8mT4wLhYs6Ze0uAn3CfD5gHiVjK7NqMxo"

// ValidateKey checks an API key meets the minimum length.
func ValidateKey(key string) error {
	if len(key) < 16 {
		return ErrKeyTooShort
	}
	return nil
}

// GenerateKey returns a fresh random API key.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashKey produces an argon2id hash in PHC format:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
func HashKey(key string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(key), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory, argonTime, argonThreads, b64Salt, b64Hash), nil
}

// VerifyKey checks a key against an argon2id hash in constant time.
func VerifyKey(key, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrInvalidHash
	}

	var memory uint32
	var time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, fmt.Errorf("parsing hash params: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("decoding salt: %w", err)
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("decoding hash: %w", err)
	}

	computed := argon2.IDKey([]byte(key), salt, time, memory, threads, uint32(len(expected)))

	return subtle.ConstantTimeCompare(expected, computed) == 1, nil
}
