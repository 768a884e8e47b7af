package hashing

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"admin-service/internal/config"
)

func testHasher(t *testing.T) *Hasher {
	t.Helper()
	cfg := &config.Config{}
	cfg.Hashing.BcryptCost = bcrypt.MinCost // keep tests fast
	return NewHasher(cfg)
}

func TestHashPassword(t *testing.T) {
	h := testHasher(t)

	encoded, err := h.HashPassword("Secret123")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if encoded == "Secret123" {
		t.Fatal("HashPassword() returned the plaintext")
	}
	if !strings.HasPrefix(encoded, "$2") {
		t.Errorf("HashPassword() = %q, want bcrypt encoded form", encoded)
	}
	if !h.Verify("Secret123", encoded) {
		t.Error("Verify() should accept the original plaintext")
	}
	if h.Verify("secret123", encoded) {
		t.Error("Verify() should reject a different plaintext")
	}
}

func TestHashAnswerSamePolicy(t *testing.T) {
	h := testHasher(t)

	encoded, err := h.HashAnswer("fluffy")
	if err != nil {
		t.Fatalf("HashAnswer() error = %v", err)
	}
	if encoded == "fluffy" {
		t.Fatal("HashAnswer() returned the plaintext")
	}
	if !h.Verify("fluffy", encoded) {
		t.Error("Verify() should accept the original answer")
	}
}

func TestHashRejectsOverlongCredential(t *testing.T) {
	h := testHasher(t)

	if _, err := h.HashPassword(strings.Repeat("a", 73)); err != ErrCredentialTooLong {
		t.Errorf("HashPassword(73 bytes) error = %v, want ErrCredentialTooLong", err)
	}
}

func TestNewHasherClampsCost(t *testing.T) {
	cfg := &config.Config{}
	cfg.Hashing.BcryptCost = 0
	if got := NewHasher(cfg).Cost(); got != bcrypt.DefaultCost {
		t.Errorf("Cost() = %d, want default %d for unset config", got, bcrypt.DefaultCost)
	}

	cfg.Hashing.BcryptCost = 99
	if got := NewHasher(cfg).Cost(); got != bcrypt.MaxCost {
		t.Errorf("Cost() = %d, want clamp to %d", got, bcrypt.MaxCost)
	}
}
