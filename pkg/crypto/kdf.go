package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"
)

var (
	// ErrEmptySecret is returned when a key is derived from an empty secret.
	ErrEmptySecret = errors.New("crypto: secret is required")
	// ErrShortSalt is returned for salts below MinSaltLength.
	ErrShortSalt = fmt.Errorf("crypto: salt must be at least %d bytes", MinSaltLength)
	// ErrWeakParameters wraps every rejected cost parameter set.
	ErrWeakParameters = errors.New("crypto: invalid kdf parameters")
)

// ScryptParameters holds the scrypt cost factors. N must be a power of two.
type ScryptParameters struct {
	N         int
	R         int
	P         int
	KeyLength int
}

// DefaultScryptParams is N=2^14, r=8, p=1 with a 64 byte key.
func DefaultScryptParams() ScryptParameters {
	return ScryptParameters{N: 1 << 14, R: 8, P: 1, KeyLength: 64}
}

// Validate rejects parameters scrypt would refuse or that yield short keys.
func (p ScryptParameters) Validate() error {
	switch {
	case p.N <= 1 || p.N&(p.N-1) != 0:
		return fmt.Errorf("%w: scrypt N=%d is not a power of two above one", ErrWeakParameters, p.N)
	case p.R <= 0:
		return fmt.Errorf("%w: scrypt r=%d", ErrWeakParameters, p.R)
	case p.P <= 0:
		return fmt.Errorf("%w: scrypt p=%d", ErrWeakParameters, p.P)
	case p.KeyLength < 16:
		return fmt.Errorf("%w: scrypt key length %d is below 16 bytes", ErrWeakParameters, p.KeyLength)
	}
	return nil
}

// DeriveKeyScrypt stretches secret with scrypt.
func DeriveKeyScrypt(secret, salt []byte, params ScryptParameters) ([]byte, error) {
	if err := checkInputs(secret, salt); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return scrypt.Key(secret, salt, params.N, params.R, params.P, params.KeyLength)
}

// Argon2Parameters holds the Argon2id cost factors. Memory is in KiB.
type Argon2Parameters struct {
	Time      uint32
	Memory    uint32
	Threads   uint8
	KeyLength uint32
}

// DefaultArgon2Params is t=2, m=64MiB, p=4 with a 32 byte key.
func DefaultArgon2Params() Argon2Parameters {
	return Argon2Parameters{Time: 2, Memory: 64 * 1024, Threads: 4, KeyLength: 32}
}

// Validate rejects parameters Argon2id cannot use.
func (p Argon2Parameters) Validate() error {
	switch {
	case p.Time == 0:
		return fmt.Errorf("%w: argon2 time cost is zero", ErrWeakParameters)
	case p.Threads == 0:
		return fmt.Errorf("%w: argon2 parallelism is zero", ErrWeakParameters)
	case p.Memory < 8*uint32(p.Threads):
		return fmt.Errorf("%w: argon2 memory %dKiB is below 8KiB per thread", ErrWeakParameters, p.Memory)
	}
	switch p.KeyLength {
	case 16, 24, 32, 64:
		return nil
	default:
		return fmt.Errorf("%w: argon2 key length %d", ErrWeakParameters, p.KeyLength)
	}
}

// DeriveKeyArgon2id stretches secret with Argon2id.
func DeriveKeyArgon2id(secret, salt []byte, params Argon2Parameters) ([]byte, error) {
	if err := checkInputs(secret, salt); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return argon2.IDKey(secret, salt, params.Time, params.Memory, params.Threads, params.KeyLength), nil
}

func checkInputs(secret, salt []byte) error {
	if len(secret) == 0 {
		return ErrEmptySecret
	}
	if len(salt) < MinSaltLength {
		return fmt.Errorf("%w: got %d", ErrShortSalt, len(salt))
	}
	return nil
}
