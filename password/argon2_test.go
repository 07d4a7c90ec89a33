package password

import (
	"bytes"
	"strings"
	"testing"
)

func secureConfig() Config {
	return Config{
		Memory:      65536,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newArgon(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	hasher, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return hasher
}

func hashWithFreshSalt(t *testing.T, h Hasher, pw string) string {
	t.Helper()
	salt, err := h.NewSalt()
	if err != nil {
		t.Fatalf("NewSalt error: %v", err)
	}
	hash, err := h.Hash(pw, salt)
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	return hash
}

func TestHashAndVerify(t *testing.T) {
	hasher := newArgon(t, secureConfig())

	hash := hashWithFreshSalt(t, hasher, "P@ssw0rd-Ascii")
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}
}

func TestHashIsDeterministicForSameSalt(t *testing.T) {
	hasher := newArgon(t, secureConfig())
	salt := bytes.Repeat([]byte{7}, 16)

	first, err := hasher.Hash("correct-password", salt)
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	second, err := hasher.Hash("correct-password", salt)
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if first != second {
		t.Fatal("expected identical hashes for identical salt")
	}

	other, err := hasher.Hash("correct-password", bytes.Repeat([]byte{8}, 16))
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if other == first {
		t.Fatal("expected different salt to change the hash")
	}
}

func TestNewSaltIsRandom(t *testing.T) {
	hasher := newArgon(t, secureConfig())
	a, err := hasher.NewSalt()
	if err != nil {
		t.Fatalf("NewSalt error: %v", err)
	}
	b, err := hasher.NewSalt()
	if err != nil {
		t.Fatalf("NewSalt error: %v", err)
	}
	if len(a) != 16 || bytes.Equal(a, b) {
		t.Fatalf("expected two distinct 16-byte salts, got %x and %x", a, b)
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	hasher := newArgon(t, secureConfig())
	hash := hashWithFreshSalt(t, hasher, "correct-password")

	ok, err := hasher.Verify("wrong-password", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	oldHasher := newArgon(t, Config{
		Memory:      32768,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	hash := hashWithFreshSalt(t, oldHasher, "test-password")

	newHasher := newArgon(t, secureConfig())
	needsUpgrade, err := newHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if !needsUpgrade {
		t.Fatal("expected NeedsUpgrade to return true for weaker hash parameters")
	}

	needsUpgrade, err = oldHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if needsUpgrade {
		t.Fatal("expected NeedsUpgrade to return false for current parameters")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher := newArgon(t, secureConfig())

	if _, err := hasher.Verify("password", "not-a-phc-hash"); err == nil {
		t.Fatal("expected malformed hash verification to fail")
	}
}

func TestVerifyWrongVersion(t *testing.T) {
	hasher := newArgon(t, secureConfig())
	hash := hashWithFreshSalt(t, hasher, "version-test")

	wrongVersion := strings.Replace(hash, "$v=19$", "$v=18$", 1)
	if _, err := hasher.Verify("version-test", wrongVersion); err == nil {
		t.Fatal("expected unsupported version verification to fail")
	}
}

func TestHashRejectsEmptyPasswordAndShortSalt(t *testing.T) {
	hasher := newArgon(t, secureConfig())

	if _, err := hasher.Hash("", bytes.Repeat([]byte{1}, 16)); err == nil {
		t.Fatal("expected empty password hash to fail")
	}
	if _, err := hasher.Hash("long-enough-pw", []byte{1, 2, 3}); err == nil {
		t.Fatal("expected short salt to fail")
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cfg := secureConfig()
	cfg.Memory = 1024
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected low memory config to be rejected")
	}
}
