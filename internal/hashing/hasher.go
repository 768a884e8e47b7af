package hashing

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"admin-service/internal/config"
)

// ErrCredentialTooLong rejects plaintexts beyond what bcrypt can digest.
var ErrCredentialTooLong = errors.New("credential exceeds 72 bytes")

// Hasher applies the credential hashing policy: bcrypt with a configured
// work factor, producing printable encoded hashes safe for row storage.
// Passwords and security-question answers share the same policy.
type Hasher struct {
	cost int
}

func NewHasher(cfg *config.Config) *Hasher {
	cost := cfg.Hashing.BcryptCost
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// HashPassword hashes a plaintext password for storage.
func (h *Hasher) HashPassword(password string) (string, error) {
	return h.hash(password)
}

// HashAnswer hashes a security-question answer. Same policy as passwords.
func (h *Hasher) HashAnswer(answer string) (string, error) {
	return h.hash(answer)
}

func (h *Hasher) hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", ErrCredentialTooLong
	}
	encoded, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash credential: %w", err)
	}
	return string(encoded), nil
}

// Verify reports whether the plaintext matches the stored encoded hash.
func (h *Hasher) Verify(plaintext, encoded string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plaintext)) == nil
}

// Cost returns the configured work factor.
func (h *Hasher) Cost() int {
	return h.cost
}
