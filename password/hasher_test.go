package password

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestVerifier(t *testing.T) (*Verifier, *Bcrypt) {
	t.Helper()
	primary := newArgon(t, secureConfig())
	legacy, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	v, err := NewVerifier(primary, legacy)
	if err != nil {
		t.Fatalf("NewVerifier error: %v", err)
	}
	return v, legacy
}

func TestVerifierCredentialRoundTrip(t *testing.T) {
	v, _ := newTestVerifier(t)

	cred, err := v.Credential("correct horse battery")
	if err != nil {
		t.Fatalf("Credential error: %v", err)
	}
	if len(cred.Salt) != 16 {
		t.Fatalf("expected 16-byte salt, got %d", len(cred.Salt))
	}
	if err := v.Check("correct horse battery", cred.Hash); err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if v.NeedsRehash(cred.Hash) {
		t.Fatal("fresh primary hash must not need rehash")
	}
}

func TestVerifierDistinguishesMissingFromMismatch(t *testing.T) {
	v, _ := newTestVerifier(t)

	if err := v.Check("anything", ""); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}

	cred, err := v.Credential("correct horse battery")
	if err != nil {
		t.Fatalf("Credential error: %v", err)
	}
	if err := v.Check("wrong horse battery", cred.Hash); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
	if err := v.Check("x", "$unknown$abc"); !errors.Is(err, ErrUnsupportedHash) {
		t.Fatalf("expected ErrUnsupportedHash, got %v", err)
	}
}

func TestVerifierAcceptsLegacyBcryptAndFlagsRehash(t *testing.T) {
	v, legacy := newTestVerifier(t)

	hash, err := legacy.Hash("legacy-password", nil)
	if err != nil {
		t.Fatalf("bcrypt hash: %v", err)
	}
	if err := v.Check("legacy-password", hash); err != nil {
		t.Fatalf("expected legacy hash to verify: %v", err)
	}
	if err := v.Check("other-password", hash); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch for legacy hash, got %v", err)
	}
	if !v.NeedsRehash(hash) {
		t.Fatal("legacy hash should be flagged for rehash")
	}
}

func TestBcryptSaltIsEmbedded(t *testing.T) {
	b, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	salt, err := b.NewSalt()
	if err != nil || salt != nil {
		t.Fatalf("expected nil salt, got %v (%v)", salt, err)
	}
	first, _ := b.Hash("same-password", nil)
	second, _ := b.Hash("same-password", nil)
	if first == second {
		t.Fatal("expected bcrypt to embed a random salt per hash")
	}
	if _, err := NewBcrypt(99); err == nil {
		t.Fatal("expected out-of-range cost to be rejected")
	}
}
