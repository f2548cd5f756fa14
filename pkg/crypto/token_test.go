package crypto

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("token is not url-safe base64: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("expected 32 random bytes, got %d", len(raw))
	}

	other, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if token == other {
		t.Fatal("expected successive tokens to differ")
	}
}

func TestGenerateTokenRejectsNonPositiveLength(t *testing.T) {
	for _, n := range []int{0, -4} {
		if _, err := GenerateToken(n); !errors.Is(err, ErrTokenLength) {
			t.Fatalf("length %d: expected ErrTokenLength, got %v", n, err)
		}
	}
}

func TestFingerprintToken(t *testing.T) {
	a := FingerprintToken("token-a")
	if len(a) != 64 {
		t.Fatalf("expected hex sha256 digest, got %q", a)
	}
	if a != FingerprintToken("token-a") {
		t.Fatal("expected fingerprint to be deterministic")
	}
	if a == FingerprintToken("token-b") {
		t.Fatal("expected different tokens to yield different fingerprints")
	}
}
