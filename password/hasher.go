package password

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCredential means the account has no usable password hash, for
	// example a guest account.
	ErrNoCredential = errors.New("no password credential")
	// ErrMismatch means a hash is present but the password does not match it.
	ErrMismatch = errors.New("password mismatch")
	// ErrUnsupportedHash means no configured hasher recognizes the encoding.
	ErrUnsupportedHash = errors.New("unsupported password hash")
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password must not be empty")
)

// Hasher is one password hashing algorithm.
//
// NewSalt returns a fresh per-credential salt, or nil for algorithms that
// embed their own salt in the encoded hash.
type Hasher interface {
	NewSalt() ([]byte, error)
	Hash(password string, salt []byte) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
	Supports(encodedHash string) bool
}

// Credential is a stored password hash and the salt it was produced with.
type Credential struct {
	Hash string
	Salt []byte
}

// Verifier hashes new passwords with a primary [Hasher] and verifies stored
// hashes against whichever configured hasher recognizes them.
type Verifier struct {
	primary Hasher
	legacy  []Hasher
}

// NewVerifier returns a Verifier. New credentials always use primary.
func NewVerifier(primary Hasher, legacy ...Hasher) (*Verifier, error) {
	if primary == nil {
		return nil, errors.New("primary hasher required")
	}
	return &Verifier{primary: primary, legacy: legacy}, nil
}

// Credential generates a salt and hashes password with the primary hasher.
func (v *Verifier) Credential(password string) (Credential, error) {
	salt, err := v.primary.NewSalt()
	if err != nil {
		return Credential{}, fmt.Errorf("generate salt: %w", err)
	}
	hash, err := v.primary.Hash(password, salt)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Hash: hash, Salt: salt}, nil
}

// Check verifies password against encodedHash. It returns ErrNoCredential
// for an empty hash and ErrMismatch for a wrong password, so callers can tell
// the two apart internally while answering both the same way.
func (v *Verifier) Check(password, encodedHash string) error {
	if encodedHash == "" {
		return ErrNoCredential
	}
	h := v.hasherFor(encodedHash)
	if h == nil {
		return ErrUnsupportedHash
	}
	ok, err := h.Verify(password, encodedHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMismatch
	}
	return nil
}

// NeedsRehash reports whether encodedHash was produced by a legacy hasher or
// with weaker parameters than the primary hasher's.
func (v *Verifier) NeedsRehash(encodedHash string) bool {
	if !v.primary.Supports(encodedHash) {
		return v.hasherFor(encodedHash) != nil
	}
	upgrade, err := v.primary.NeedsUpgrade(encodedHash)
	return err == nil && upgrade
}

func (v *Verifier) hasherFor(encodedHash string) Hasher {
	if v.primary.Supports(encodedHash) {
		return v.primary
	}
	for _, h := range v.legacy {
		if h.Supports(encodedHash) {
			return h
		}
	}
	return nil
}
