//go:build integration
// +build integration

package test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/swipewise/authsession"
	"github.com/swipewise/authsession/account"
)

const testSecret = "integration-secret-0123456789abcdef"

func testConfig() authsession.Config {
	cfg := authsession.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(testSecret)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.LegacyBcryptCost = bcrypt.MinCost
	return cfg
}

// newIntegrationEngine builds an engine over rdb and an in-memory account
// store. Pass a nil rdb to get a fresh miniredis instance.
func newIntegrationEngine(t *testing.T, rdb redis.UniversalClient, mutate ...func(*authsession.Config)) (*authsession.Engine, *account.MemoryStore) {
	t.Helper()

	if rdb == nil {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("miniredis run failed: %v", err)
		}
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() {
			_ = client.Close()
			mr.Close()
		})
		rdb = client
	}

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	accounts := account.NewMemoryStore()
	engine, err := authsession.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccounts(accounts).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, accounts
}

// activeSubject stores an enabled account and returns its id.
func activeSubject(accounts *account.MemoryStore, email string) string {
	return accounts.Put(authsession.Account{Name: "member", Email: email}).ID
}
