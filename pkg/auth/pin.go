package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	PINLength  = 4
	SaltLength = 16 // 128 bits

	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"

	// OWASP argon2id baseline (m=19MiB, t=2, p=1)
	argonTime    = 2
	argonMemory  = 19 * 1024
	argonThreads = 1
	argonKeyLen  = 32

	BcryptCost = 12
)

var (
	ErrInvalidPIN         = errors.New("pin must be exactly 4 digits")
	ErrInvalidSalt        = errors.New("invalid pin salt")
	ErrUnsupportedHash    = errors.New("unsupported pin hash algorithm")
	ErrHashingUnavailable = errors.New("pin hashing unavailable")
)

// PINHasher derives and compares salted PIN digests
type PINHasher interface {
	Algorithm() string
	Hash(pin, salt string) (string, error)
	// Compare reports whether pin matches digest. A mismatch is (false, nil);
	// a non-nil error means the comparison itself could not run.
	Compare(pin, salt, digest string) (bool, error)
}

// ValidatePIN checks that pin is exactly four ASCII digits
func ValidatePIN(pin string) error {
	if len(pin) != PINLength {
		return ErrInvalidPIN
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return ErrInvalidPIN
		}
	}
	return nil
}

// GenerateSalt returns a random base64-encoded salt
func GenerateSalt() (string, error) {
	bytes := make([]byte, SaltLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("%w: failed to generate salt: %v", ErrHashingUnavailable, err)
	}
	return base64.StdEncoding.EncodeToString(bytes), nil
}

// HasherFor returns the hasher registered for algorithm.
// An empty algorithm selects argon2id.
func HasherFor(algorithm string) (PINHasher, error) {
	switch algorithm {
	case "", AlgorithmArgon2id:
		return Argon2idHasher{}, nil
	case AlgorithmBcrypt:
		return BcryptHasher{Cost: BcryptCost}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedHash, algorithm)
	}
}

// Argon2idHasher produces a stable digest, so equality is checked in constant time
type Argon2idHasher struct{}

func (Argon2idHasher) Algorithm() string { return AlgorithmArgon2id }

func (h Argon2idHasher) Hash(pin, salt string) (string, error) {
	if err := ValidatePIN(pin); err != nil {
		return "", err
	}
	key, err := h.derive(pin, salt)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func (h Argon2idHasher) Compare(pin, salt, digest string) (bool, error) {
	if err := ValidatePIN(pin); err != nil {
		return false, err
	}
	want, err := base64.StdEncoding.DecodeString(digest)
	if err != nil {
		return false, fmt.Errorf("%w: malformed digest: %v", ErrHashingUnavailable, err)
	}
	got, err := h.derive(pin, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func (Argon2idHasher) derive(pin, salt string) ([]byte, error) {
	saltBytes, err := base64.StdEncoding.DecodeString(salt)
	if err != nil || len(saltBytes) == 0 {
		return nil, ErrInvalidSalt
	}
	return argon2.IDKey([]byte(pin), saltBytes, argonTime, argonMemory, argonThreads, argonKeyLen), nil
}

// BcryptHasher supports credentials enrolled before argon2id became the default.
// bcrypt embeds its own salt; the stored salt is mixed in as a prefix.
type BcryptHasher struct {
	Cost int
}

func (BcryptHasher) Algorithm() string { return AlgorithmBcrypt }

func (h BcryptHasher) Hash(pin, salt string) (string, error) {
	if err := ValidatePIN(pin); err != nil {
		return "", err
	}
	if salt == "" {
		return "", ErrInvalidSalt
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(salt+pin), h.Cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashingUnavailable, err)
	}
	return string(hashed), nil
}

func (h BcryptHasher) Compare(pin, salt, digest string) (bool, error) {
	if err := ValidatePIN(pin); err != nil {
		return false, err
	}
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(salt+pin))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrHashingUnavailable, err)
	}
}
