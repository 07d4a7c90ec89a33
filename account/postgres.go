package account

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swipewise/authsession"
)

// PostgresStore implements AccountStore over PostgreSQL. The pool is owned by
// the caller; the store never closes it.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ authsession.AccountStore = (*PostgresStore)(nil)

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithClock overrides the clock used for created_at and updated_at.
func WithClock(now func() time.Time) PostgresOption {
	return func(s *PostgresStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("account: nil pool")
	}
	s := &PostgresStore{pool: pool, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

const accountColumns = `id, name, COALESCE(email, ''), COALESCE(guest_id, ''), password_hash, salt, status, last_login_at`

func (s *PostgresStore) AccountByEmail(ctx context.Context, email string) (authsession.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email_norm = $1`, normEmail(email))
	return scanAccount(row)
}

func (s *PostgresStore) AccountByID(ctx context.Context, id string) (authsession.Account, error) {
	n, err := parseID(id)
	if err != nil {
		return authsession.Account{}, err
	}
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, n)
	return scanAccount(row)
}

// GuestAccount inserts the guest row if missing. ON CONFLICT keeps two
// concurrent first logins from the same device on one account.
func (s *PostgresStore) GuestAccount(ctx context.Context, deviceID string) (authsession.Account, error) {
	if strings.TrimSpace(deviceID) == "" {
		return authsession.Account{}, authsession.ErrInvalidRequest
	}
	now := s.now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (name, guest_id, created_at, updated_at)
		 VALUES ('guest', $1, $2, $2)
		 ON CONFLICT (guest_id) DO NOTHING`,
		deviceID, now,
	)
	if err != nil {
		return authsession.Account{}, fmt.Errorf("account: insert guest: %w", err)
	}
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE guest_id = $1`, deviceID)
	return scanAccount(row)
}

// CreateAccount promotes the guest row bound to in.DeviceID when it has no
// email yet, and inserts a new row otherwise. Both paths run in one
// transaction with the guest row locked.
func (s *PostgresStore) CreateAccount(ctx context.Context, in authsession.NewAccount) (authsession.Account, error) {
	email := normEmail(in.Email)
	if email == "" {
		return authsession.Account{}, authsession.ErrInvalidRequest
	}
	now := s.now().UTC()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return authsession.Account{}, fmt.Errorf("account: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		guestID  int64
		promote  bool
		deviceID any
	)
	if in.DeviceID != "" {
		var unclaimed bool
		err := tx.QueryRow(ctx,
			`SELECT id, email_norm IS NULL FROM accounts WHERE guest_id = $1 FOR UPDATE`,
			in.DeviceID,
		).Scan(&guestID, &unclaimed)
		switch {
		case err == nil:
			promote = unclaimed
		case errors.Is(err, pgx.ErrNoRows):
			deviceID = in.DeviceID
		default:
			return authsession.Account{}, fmt.Errorf("account: lookup guest: %w", err)
		}
	}

	var row pgx.Row
	if promote {
		row = tx.QueryRow(ctx,
			`UPDATE accounts
			    SET name = $2, email = $3, email_norm = $4, password_hash = $5, salt = $6, updated_at = $7
			  WHERE id = $1
			 RETURNING `+accountColumns,
			guestID, in.Name, in.Email, email, in.PasswordHash, in.Salt, now,
		)
	} else {
		row = tx.QueryRow(ctx,
			`INSERT INTO accounts (name, email, email_norm, guest_id, password_hash, salt, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			 RETURNING `+accountColumns,
			in.Name, in.Email, email, deviceID, in.PasswordHash, in.Salt, now,
		)
	}
	a, err := scanAccount(row)
	if err != nil {
		return authsession.Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return authsession.Account{}, classify(fmt.Errorf("account: commit: %w", err))
	}
	return a, nil
}

func (s *PostgresStore) UpdateCredential(ctx context.Context, id, passwordHash string, salt []byte) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $2, salt = $3, updated_at = $4 WHERE id = $1`,
		n, passwordHash, salt, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("account: update credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authsession.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TouchLogin(ctx context.Context, id string, at time.Time) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE accounts SET last_login_at = $2 WHERE id = $1`, n, at.UTC())
	if err != nil {
		return fmt.Errorf("account: touch login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authsession.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpsertDevice(ctx context.Context, d authsession.Device) error {
	n, err := parseID(d.AccountID)
	if err != nil {
		return err
	}
	seen := d.LastSeenAt
	if seen.IsZero() {
		seen = s.now()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO devices (account_id, device_id, device_type, last_seen_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (account_id, device_id)
		 DO UPDATE SET device_type = EXCLUDED.device_type, last_seen_at = EXCLUDED.last_seen_at`,
		n, d.DeviceID, d.DeviceType, seen.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
			return authsession.ErrNotFound
		}
		return fmt.Errorf("account: upsert device: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteDevice(ctx context.Context, accountID, deviceID string) error {
	n, err := parseID(accountID)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM devices WHERE account_id = $1 AND device_id = $2`, n, deviceID)
	if err != nil {
		return fmt.Errorf("account: delete device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authsession.ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (authsession.Account, error) {
	var (
		a         authsession.Account
		id        int64
		status    int16
		lastLogin *time.Time
	)
	err := row.Scan(&id, &a.Name, &a.Email, &a.GuestID, &a.PasswordHash, &a.Salt, &status, &lastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authsession.Account{}, authsession.ErrNotFound
		}
		return authsession.Account{}, classify(err)
	}
	a.ID = strconv.FormatInt(id, 10)
	a.Status = authsession.AccountStatus(status)
	if lastLogin != nil {
		a.LastLoginAt = *lastLogin
	}
	return a, nil
}

// classify maps a unique violation on the email index to ErrAccountExists.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		if strings.Contains(strings.ToLower(pgErr.ConstraintName), "email") {
			return authsession.ErrAccountExists
		}
	}
	return err
}

// parseID rejects ids that cannot name a row, so a garbage subject claim
// reads as a missing account rather than a driver error.
func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, authsession.ErrNotFound
	}
	return n, nil
}
