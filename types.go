package authsession

import (
	"context"
	"time"
)

// Principal is the store-validated identity attached to a request.
type Principal struct {
	SubjectID string
	SessionID string
	ExpiresAt time.Time
}

// TokenPair is returned by every issuing operation. The expiry times equal
// the tokens' exp claims.
type TokenPair struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	SessionID             string
}

// AccountStatus is the lifecycle state of an account.
type AccountStatus uint8

const (
	AccountActive AccountStatus = iota
	AccountDisabled
)

func (s AccountStatus) String() string {
	switch s {
	case AccountActive:
		return "active"
	case AccountDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Account owns the credential. PasswordHash and Salt never enter a token. A
// guest account has a GuestID and an empty PasswordHash.
type Account struct {
	ID           string
	Name         string
	Email        string
	GuestID      string
	PasswordHash string
	Salt         []byte
	Status       AccountStatus
	LastLoginAt  time.Time
}

// NewAccount is the input to AccountStore.CreateAccount.
type NewAccount struct {
	Name         string
	Email        string
	DeviceID     string
	PasswordHash string
	Salt         []byte
}

// Device is a client device registered to an account.
type Device struct {
	AccountID  string
	DeviceID   string
	DeviceType string
	LastSeenAt time.Time
}

// AccountStore is the credential store the engine consumes. Missing rows
// return ErrNotFound; a duplicate email returns ErrAccountExists.
type AccountStore interface {
	AccountByEmail(ctx context.Context, email string) (Account, error)
	AccountByID(ctx context.Context, id string) (Account, error)
	// GuestAccount returns the account bound to deviceID, creating a guest
	// account when none exists.
	GuestAccount(ctx context.Context, deviceID string) (Account, error)
	// CreateAccount promotes the guest account bound to in.DeviceID in place
	// when one exists, and inserts a new account otherwise.
	CreateAccount(ctx context.Context, in NewAccount) (Account, error)
	UpdateCredential(ctx context.Context, id, passwordHash string, salt []byte) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
	UpsertDevice(ctx context.Context, d Device) error
	DeleteDevice(ctx context.Context, accountID, deviceID string) error
}

// RegisterInput is the input to Engine.Register.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	DeviceID string
}

// HealthStatus reports session store reachability.
type HealthStatus struct {
	RedisOK      bool
	RedisLatency time.Duration
}
