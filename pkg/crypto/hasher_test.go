package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func fastScrypt() ScryptParameters {
	return ScryptParameters{N: 1024, R: 8, P: 1, KeyLength: 64}
}

func fastArgon2() Argon2Parameters {
	return Argon2Parameters{Time: 1, Memory: 1024, Threads: 1, KeyLength: 32}
}

func TestCredentialHasherRoundTrip(t *testing.T) {
	hasher, err := NewCredentialHasher(WithScryptParams(fastScrypt()))
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

	for _, secret := range []string{"a", "correct horse battery staple", strings.Repeat("x", 256)} {
		record, err := hasher.Hash(secret)
		if err != nil {
			t.Fatalf("hash %q: %v", secret, err)
		}

		ok, err := hasher.Verify(secret, record)
		if err != nil || !ok {
			t.Fatalf("expected %q to verify (ok=%v, err=%v)", secret, ok, err)
		}

		ok, err = hasher.Verify(secret+"x", record)
		if err != nil || ok {
			t.Fatalf("expected %q+x to be rejected (ok=%v, err=%v)", secret, ok, err)
		}
	}
}

func TestCredentialHasherScryptRecordShape(t *testing.T) {
	hasher, err := NewCredentialHasher(WithScryptParams(fastScrypt()))
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

	record, err := hasher.Hash("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	salt, key, ok := strings.Cut(record, ":")
	if !ok {
		t.Fatalf("expected salt:key record, got %q", record)
	}
	if len(salt) != MinSaltLength*2 {
		t.Fatalf("expected %d hex salt chars, got %d", MinSaltLength*2, len(salt))
	}
	if len(key) != 128 {
		t.Fatalf("expected 128 hex key chars, got %d", len(key))
	}

	again, err := hasher.Hash("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if record == again {
		t.Fatal("expected a fresh salt per hash")
	}
}

func TestCredentialHasherDeterministicWithFixedRandom(t *testing.T) {
	newHasher := func() *CredentialHasher {
		h, err := NewCredentialHasher(
			WithScryptParams(fastScrypt()),
			WithRandom(bytes.NewReader(bytes.Repeat([]byte{0x42}, MinSaltLength))),
		)
		if err != nil {
			t.Fatalf("new hasher: %v", err)
		}
		return h
	}

	a, err := newHasher().Hash("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := newHasher().Hash("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a != b {
		t.Fatal("expected identical records for identical salt")
	}
}

func TestCredentialHasherArgon2id(t *testing.T) {
	hasher, err := NewCredentialHasher(
		WithAlgorithm(AlgorithmArgon2id),
		WithArgon2Params(fastArgon2()),
		WithScryptParams(fastScrypt()),
	)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

	record, err := hasher.Hash("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(record, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected argon2 record %q", record)
	}

	ok, err := hasher.Verify("secret", record)
	if err != nil || !ok {
		t.Fatalf("expected argon2 record to verify (ok=%v, err=%v)", ok, err)
	}
	if ok, _ := hasher.Verify("secretx", record); ok {
		t.Fatal("expected wrong secret to fail")
	}

	// A scrypt hasher still verifies records produced with argon2id.
	scryptHasher, err := NewCredentialHasher(WithScryptParams(fastScrypt()))
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	if ok, _ := scryptHasher.Verify("secret", record); !ok {
		t.Fatal("expected cross-algorithm verification to succeed")
	}
}

func TestCredentialHasherMalformedRecords(t *testing.T) {
	hasher, err := NewCredentialHasher(WithScryptParams(fastScrypt()))
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

	for _, record := range []string{
		"no-separator",
		"zz:zz",
		"00112233445566778899aabbccddeeff:",
		"0011:aabb",
		"$argon2id$v=19$garbage",
		"$argon2id$v=18$m=1024,t=1,p=1$AAAA$AAAA",
	} {
		ok, err := hasher.Verify("secret", record)
		if err != nil {
			t.Fatalf("record %q: expected no error, got %v", record, err)
		}
		if ok {
			t.Fatalf("record %q: expected verification to fail", record)
		}
	}
}

func TestCredentialHasherMissingRecord(t *testing.T) {
	hasher, err := NewCredentialHasher(WithScryptParams(fastScrypt()))
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

	ok, err := hasher.Verify("secret", "  ")
	if ok {
		t.Fatal("expected verification to fail")
	}
	if !errors.Is(err, ErrMissingHash) {
		t.Fatalf("expected ErrMissingHash, got %v", err)
	}
}

func TestNewCredentialHasherRejectsUnknownAlgorithm(t *testing.T) {
	if _, err := NewCredentialHasher(WithAlgorithm("md5")); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
	if _, err := NewCredentialHasher(WithScryptParams(ScryptParameters{N: 3, R: 8, P: 1, KeyLength: 64})); err == nil {
		t.Fatal("expected error for invalid scrypt params")
	}
}
