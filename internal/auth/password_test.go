package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Errorf("expected PHC argon2id prefix, got %q", hash)
	}

	if err := VerifyPassword("hunter2", hash); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}

	if err := VerifyPassword("wrong", hash); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestHashesAreSalted(t *testing.T) {
	t.Parallel()

	h1, err := HashPassword("same")
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}

	h2, err := HashPassword("same")
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}

	if h1 == h2 {
		t.Error("two hashes of the same password must differ by salt")
	}
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=19456,t=2,p=1$short",
		"$bcrypt$whatever",
	} {
		if err := VerifyPassword("x", bad); err == nil {
			t.Errorf("expected error for malformed hash %q", bad)
		}
	}
}

func TestNewToken(t *testing.T) {
	t.Parallel()

	token, err := NewToken()
	if err != nil {
		t.Fatalf("minting token: %v", err)
	}

	if len(token) != TokenLength {
		t.Fatalf("expected %d characters, got %d", TokenLength, len(token))
	}

	for _, r := range token {
		if !strings.ContainsRune(alphanumeric, r) {
			t.Fatalf("token contains non-alphanumeric rune %q", r)
		}
	}

	other, err := NewToken()
	if err != nil {
		t.Fatalf("minting token: %v", err)
	}

	if token == other {
		t.Error("two minted tokens must differ")
	}
}
