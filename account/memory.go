package account

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/swipewise/authsession"
)

// MemoryStore is a process-local AccountStore. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[string]*authsession.Account
	byEmail map[string]string
	byGuest map[string]string
	devices map[deviceKey]authsession.Device
}

type deviceKey struct {
	accountID string
	deviceID  string
}

var _ authsession.AccountStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*authsession.Account),
		byEmail: make(map[string]string),
		byGuest: make(map[string]string),
		devices: make(map[deviceKey]authsession.Device),
	}
}

// Put inserts or replaces a, assigning an id when a.ID is empty. It returns
// the stored copy.
func (m *MemoryStore) Put(a authsession.Account) authsession.Account {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == "" {
		a.ID = m.newIDLocked()
	}
	if old, ok := m.byID[a.ID]; ok {
		m.unindexLocked(old)
	}
	cp := a
	cp.Salt = append([]byte(nil), a.Salt...)
	m.byID[cp.ID] = &cp
	m.indexLocked(&cp)
	return cp
}

// SetStatus changes the status of an existing account.
func (m *MemoryStore) SetStatus(id string, status authsession.AccountStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return authsession.ErrNotFound
	}
	a.Status = status
	return nil
}

// Devices lists the devices registered to accountID.
func (m *MemoryStore) Devices(accountID string) []authsession.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []authsession.Device
	for k, d := range m.devices {
		if k.accountID == accountID {
			out = append(out, d)
		}
	}
	return out
}

func (m *MemoryStore) AccountByEmail(ctx context.Context, email string) (authsession.Account, error) {
	if err := ctx.Err(); err != nil {
		return authsession.Account{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[normEmail(email)]
	if !ok {
		return authsession.Account{}, authsession.ErrNotFound
	}
	return copyAccount(m.byID[id]), nil
}

func (m *MemoryStore) AccountByID(ctx context.Context, id string) (authsession.Account, error) {
	if err := ctx.Err(); err != nil {
		return authsession.Account{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byID[id]
	if !ok {
		return authsession.Account{}, authsession.ErrNotFound
	}
	return copyAccount(a), nil
}

func (m *MemoryStore) GuestAccount(ctx context.Context, deviceID string) (authsession.Account, error) {
	if err := ctx.Err(); err != nil {
		return authsession.Account{}, err
	}
	if strings.TrimSpace(deviceID) == "" {
		return authsession.Account{}, authsession.ErrInvalidRequest
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byGuest[deviceID]; ok {
		return copyAccount(m.byID[id]), nil
	}
	a := &authsession.Account{ID: m.newIDLocked(), Name: "guest", GuestID: deviceID}
	m.byID[a.ID] = a
	m.indexLocked(a)
	return copyAccount(a), nil
}

func (m *MemoryStore) CreateAccount(ctx context.Context, in authsession.NewAccount) (authsession.Account, error) {
	if err := ctx.Err(); err != nil {
		return authsession.Account{}, err
	}
	email := normEmail(in.Email)
	if email == "" {
		return authsession.Account{}, authsession.ErrInvalidRequest
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byEmail[email]; taken {
		return authsession.Account{}, authsession.ErrAccountExists
	}

	guestID := in.DeviceID
	if id, ok := m.byGuest[in.DeviceID]; ok && in.DeviceID != "" {
		if a := m.byID[id]; a.Email == "" {
			a.Name = in.Name
			a.Email = in.Email
			a.PasswordHash = in.PasswordHash
			a.Salt = append([]byte(nil), in.Salt...)
			m.byEmail[email] = a.ID
			return copyAccount(a), nil
		}
		// The device already belongs to a registered account.
		guestID = ""
	}

	a := &authsession.Account{
		ID:           m.newIDLocked(),
		Name:         in.Name,
		Email:        in.Email,
		GuestID:      guestID,
		PasswordHash: in.PasswordHash,
		Salt:         append([]byte(nil), in.Salt...),
	}
	m.byID[a.ID] = a
	m.indexLocked(a)
	return copyAccount(a), nil
}

func (m *MemoryStore) UpdateCredential(ctx context.Context, id, passwordHash string, salt []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return authsession.ErrNotFound
	}
	a.PasswordHash = passwordHash
	a.Salt = append([]byte(nil), salt...)
	return nil
}

func (m *MemoryStore) TouchLogin(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return authsession.ErrNotFound
	}
	a.LastLoginAt = at
	return nil
}

func (m *MemoryStore) UpsertDevice(ctx context.Context, d authsession.Device) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[d.AccountID]; !ok {
		return authsession.ErrNotFound
	}
	m.devices[deviceKey{accountID: d.AccountID, deviceID: d.DeviceID}] = d
	return nil
}

func (m *MemoryStore) DeleteDevice(ctx context.Context, accountID, deviceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := deviceKey{accountID: accountID, deviceID: deviceID}
	if _, ok := m.devices[key]; !ok {
		return authsession.ErrNotFound
	}
	delete(m.devices, key)
	return nil
}

func (m *MemoryStore) newIDLocked() string {
	m.nextID++
	return strconv.FormatInt(m.nextID, 10)
}

func (m *MemoryStore) indexLocked(a *authsession.Account) {
	if e := normEmail(a.Email); e != "" {
		m.byEmail[e] = a.ID
	}
	if a.GuestID != "" {
		m.byGuest[a.GuestID] = a.ID
	}
}

func (m *MemoryStore) unindexLocked(a *authsession.Account) {
	if e := normEmail(a.Email); e != "" && m.byEmail[e] == a.ID {
		delete(m.byEmail, e)
	}
	if a.GuestID != "" && m.byGuest[a.GuestID] == a.ID {
		delete(m.byGuest, a.GuestID)
	}
}

func copyAccount(a *authsession.Account) authsession.Account {
	out := *a
	out.Salt = append([]byte(nil), a.Salt...)
	return out
}

func normEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
