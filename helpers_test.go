package authsession

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fakeAccounts is an in-test AccountStore with call counting.
type fakeAccounts struct {
	mu       sync.Mutex
	byID     map[string]*Account
	devices  map[string]Device
	nextID   int
	calls    int
	touched  map[string]time.Time
	failNext error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		byID:    map[string]*Account{},
		devices: map[string]Device{},
		touched: map[string]time.Time{},
		nextID:  41,
	}
}

func (f *fakeAccounts) enter() error {
	f.calls++
	if err := f.failNext; err != nil {
		f.failNext = nil
		return err
	}
	return nil
}

func (f *fakeAccounts) resetCalls() {
	f.mu.Lock()
	f.calls = 0
	f.mu.Unlock()
}

func (f *fakeAccounts) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAccounts) newIDLocked() string {
	f.nextID++
	return strconv.Itoa(f.nextID)
}

func (f *fakeAccounts) put(a Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := a
	f.byID[a.ID] = &cp
}

func (f *fakeAccounts) get(id string) Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.byID[id]; ok {
		return *a
	}
	return Account{}
}

func (f *fakeAccounts) AccountByEmail(_ context.Context, email string) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return Account{}, err
	}
	for _, a := range f.byID {
		if a.Email != "" && strings.EqualFold(a.Email, email) {
			return *a, nil
		}
	}
	return Account{}, ErrNotFound
}

func (f *fakeAccounts) AccountByID(_ context.Context, id string) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return Account{}, err
	}
	if a, ok := f.byID[id]; ok {
		return *a, nil
	}
	return Account{}, ErrNotFound
}

func (f *fakeAccounts) GuestAccount(_ context.Context, deviceID string) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return Account{}, err
	}
	for _, a := range f.byID {
		if a.GuestID == deviceID {
			return *a, nil
		}
	}
	a := &Account{ID: f.newIDLocked(), Name: "guest", GuestID: deviceID}
	f.byID[a.ID] = a
	return *a, nil
}

func (f *fakeAccounts) CreateAccount(_ context.Context, in NewAccount) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return Account{}, err
	}
	for _, a := range f.byID {
		if strings.EqualFold(a.Email, in.Email) {
			return Account{}, ErrAccountExists
		}
	}
	for _, a := range f.byID {
		if a.GuestID == in.DeviceID && a.Email == "" {
			a.Name, a.Email, a.PasswordHash, a.Salt = in.Name, in.Email, in.PasswordHash, in.Salt
			return *a, nil
		}
	}
	a := &Account{
		ID:           f.newIDLocked(),
		Name:         in.Name,
		Email:        in.Email,
		GuestID:      in.DeviceID,
		PasswordHash: in.PasswordHash,
		Salt:         in.Salt,
	}
	f.byID[a.ID] = a
	return *a, nil
}

func (f *fakeAccounts) UpdateCredential(_ context.Context, id, hash string, salt []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return err
	}
	a, ok := f.byID[id]
	if !ok {
		return ErrNotFound
	}
	a.PasswordHash, a.Salt = hash, salt
	return nil
}

func (f *fakeAccounts) TouchLogin(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return err
	}
	f.touched[id] = at
	return nil
}

func (f *fakeAccounts) UpsertDevice(_ context.Context, d Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return err
	}
	f.devices[d.AccountID+"/"+d.DeviceID] = d
	return nil
}

func (f *fakeAccounts) DeleteDevice(_ context.Context, accountID, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return err
	}
	key := accountID + "/" + deviceID
	if _, ok := f.devices[key]; !ok {
		return ErrNotFound
	}
	delete(f.devices, key)
	return nil
}

func (f *fakeAccounts) hasDevice(accountID, deviceID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.devices[accountID+"/"+deviceID]
	return ok
}

func (f *fakeAccounts) failWith(err error) {
	f.mu.Lock()
	f.failNext = err
	f.mu.Unlock()
}

type engineHarness struct {
	engine   *Engine
	accounts *fakeAccounts
	mr       *miniredis.Miniredis
	rdb      *redis.Client
}

// testConfig keeps argon2 at its floor so tests stay fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte(testSecret)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.LegacyBcryptCost = bcrypt.MinCost
	return cfg
}

func newEngineHarness(t *testing.T, mutate ...func(*Config)) *engineHarness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	accounts := newFakeAccounts()
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccounts(accounts).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return &engineHarness{engine: engine, accounts: accounts, mr: mr, rdb: rdb}
}

// addUser stores a password account hashed with the engine's primary hasher.
func (h *engineHarness) addUser(t *testing.T, id, email, pw string, status AccountStatus) {
	t.Helper()
	cred, err := h.engine.passwords.Credential(pw)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	h.accounts.put(Account{
		ID:           id,
		Name:         "user " + id,
		Email:        email,
		PasswordHash: cred.Hash,
		Salt:         cred.Salt,
		Status:       status,
	})
}
