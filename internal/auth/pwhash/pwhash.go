// Package pwhash hashes passwords with PBKDF2-SHA256 and a random salt.
package pwhash

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const keyLength = 32

// PasswordHasher derives and checks password hashes. The encoded form is
// "salt$key", both base64.
type PasswordHasher struct {
	saltSize   int
	iterations int
}

func New(saltSize, iterations int) (*PasswordHasher, error) {
	if saltSize < 8 {
		return nil, fmt.Errorf("salt size %d is too small", saltSize)
	}
	if iterations < 1000 {
		return nil, fmt.Errorf("iteration count %d is too small", iterations)
	}
	return &PasswordHasher{
		saltSize:   saltSize,
		iterations: iterations,
	}, nil
}

func (ph *PasswordHasher) HashPassword(password string) (string, error) {
	salt := make([]byte, ph.saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("can't read salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, ph.iterations, keyLength, sha256.New)
	return base64.RawStdEncoding.EncodeToString(salt) + "$" +
		base64.RawStdEncoding.EncodeToString(key), nil
}

func (ph *PasswordHasher) Validate(password, hash string) error {
	saltPart, keyPart, ok := strings.Cut(hash, "$")
	if !ok {
		return fmt.Errorf("malformed password hash")
	}
	salt, err := base64.RawStdEncoding.DecodeString(saltPart)
	if err != nil {
		return fmt.Errorf("malformed salt: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(keyPart)
	if err != nil {
		return fmt.Errorf("malformed key: %w", err)
	}
	derived := pbkdf2.Key([]byte(password), salt, ph.iterations, len(key), sha256.New)
	if subtle.ConstantTimeCompare(derived, key) != 1 {
		return fmt.Errorf("password mismatch")
	}
	return nil
}
