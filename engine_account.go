package authsession

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/swipewise/authsession/password"
)

// Login authenticates email and password and issues a token pair.
//
// A missing account is ErrNotFound and a wrong or absent password is
// ErrCredentialInvalid; both count against the login budget. A disabled
// account is ErrAccountDisabled, reported only after the password matched.
func (e *Engine) Login(ctx context.Context, email, pw string) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	email = normalizeEmail(email)
	if email == "" || pw == "" {
		return TokenPair{}, ErrInvalidRequest
	}
	ip := clientIPFromContext(ctx)

	if err := e.rateLimiter.CheckLogin(ctx, email, ip); err != nil {
		err = limiterErr(ErrLoginRateLimited, err)
		if errors.Is(err, ErrLoginRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", err, map[string]string{"email": email})
		}
		return TokenPair{}, err
	}

	acct, err := e.accounts.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.loginFailed(ctx, email, ip, "", ErrNotFound)
			return TokenPair{}, ErrNotFound
		}
		return TokenPair{}, fmt.Errorf("account lookup: %w", err)
	}

	if err := e.passwords.Check(pw, acct.PasswordHash); err != nil {
		if !errors.Is(err, password.ErrNoCredential) && !errors.Is(err, password.ErrMismatch) {
			e.logger.Warn(ctx, "stored password hash unusable", "subject_id", acct.ID, "error", err)
		}
		e.loginFailed(ctx, email, ip, acct.ID, ErrCredentialInvalid)
		return TokenPair{}, ErrCredentialInvalid
	}

	if acct.Status == AccountDisabled {
		e.metricInc(MetricAccountDisabled)
		e.emitAudit(ctx, auditEventAccountDisabledLogin, false, acct.ID, "", ErrAccountDisabled, nil)
		return TokenPair{}, ErrAccountDisabled
	}

	if e.config.Password.UpgradeOnLogin && e.passwords.NeedsRehash(acct.PasswordHash) {
		e.rehash(ctx, acct.ID, pw)
	}

	if err := e.accounts.TouchLogin(ctx, acct.ID, e.now()); err != nil {
		e.logger.Warn(ctx, "update last login failed", "subject_id", acct.ID, "error", err)
	}
	if err := e.rateLimiter.ResetLogin(ctx, email); err != nil {
		e.logger.Warn(ctx, "reset login limiter failed", "error", err)
	}

	extra := map[string]string{"method": "password"}
	if ip != "" {
		extra["ip"] = ip
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		extra["user_agent"] = ua
	}
	pair, err := e.Issue(ctx, acct.ID, extra)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return TokenPair{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, acct.ID, pair.SessionID, nil, nil)
	return pair, nil
}

func (e *Engine) loginFailed(ctx context.Context, email, ip, subjectID string, cause error) {
	e.metricInc(MetricLoginFailure)
	if err := e.rateLimiter.RecordLoginFailure(ctx, email, ip); err != nil {
		e.logger.Warn(ctx, "record login failure failed", "error", err)
	}
	e.emitAudit(ctx, auditEventLoginFailure, false, subjectID, "", cause, nil)
}

// rehash replaces a legacy or weaker hash after a successful login. Failure
// is logged and the login proceeds.
func (e *Engine) rehash(ctx context.Context, subjectID, pw string) {
	cred, err := e.passwords.Credential(pw)
	if err != nil {
		e.logger.Warn(ctx, "password rehash failed", "subject_id", subjectID, "error", err)
		return
	}
	if err := e.accounts.UpdateCredential(ctx, subjectID, cred.Hash, cred.Salt); err != nil {
		e.logger.Warn(ctx, "password rehash failed", "subject_id", subjectID, "error", err)
		return
	}
	e.metricInc(MetricPasswordRehashed)
	e.emitAudit(ctx, auditEventPasswordRehashed, true, subjectID, "", nil, nil)
}

// GuestLogin issues a token pair for the guest account bound to deviceID,
// creating the account on first use.
func (e *Engine) GuestLogin(ctx context.Context, deviceID, deviceType string) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return TokenPair{}, ErrInvalidRequest
	}

	acct, err := e.accounts.GuestAccount(ctx, deviceID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("guest account: %w", err)
	}
	if err := e.accounts.UpsertDevice(ctx, Device{
		AccountID:  acct.ID,
		DeviceID:   deviceID,
		DeviceType: deviceType,
		LastSeenAt: e.now(),
	}); err != nil {
		return TokenPair{}, fmt.Errorf("upsert device: %w", err)
	}
	if acct.Status == AccountDisabled {
		e.metricInc(MetricAccountDisabled)
		e.emitAudit(ctx, auditEventAccountDisabledLogin, false, acct.ID, "", ErrAccountDisabled, nil)
		return TokenPair{}, ErrAccountDisabled
	}
	if err := e.accounts.TouchLogin(ctx, acct.ID, e.now()); err != nil {
		e.logger.Warn(ctx, "update last login failed", "subject_id", acct.ID, "error", err)
	}

	pair, err := e.Issue(ctx, acct.ID, map[string]string{"method": "guest", "device_id": deviceID})
	if err != nil {
		return TokenPair{}, err
	}
	e.metricInc(MetricGuestLogin)
	e.emitAudit(ctx, auditEventGuestLogin, true, acct.ID, pair.SessionID, nil, map[string]string{"device_id": deviceID})
	return pair, nil
}

// Register creates a password account, promoting the guest account bound to
// in.DeviceID when there is one, and issues a token pair.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	email := normalizeEmail(in.Email)
	deviceID := strings.TrimSpace(in.DeviceID)
	if email == "" || deviceID == "" {
		return TokenPair{}, ErrInvalidRequest
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return TokenPair{}, fmt.Errorf("%w: malformed email", ErrInvalidRequest)
	}
	if len(in.Password) < e.config.Password.MinLength {
		return TokenPair{}, ErrPasswordPolicy
	}

	_, err := e.accounts.AccountByEmail(ctx, email)
	switch {
	case err == nil:
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrAccountExists, nil)
		return TokenPair{}, ErrAccountExists
	case !errors.Is(err, ErrNotFound):
		return TokenPair{}, fmt.Errorf("account lookup: %w", err)
	}

	cred, err := e.passwords.Credential(in.Password)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}
	acct, err := e.accounts.CreateAccount(ctx, NewAccount{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		DeviceID:     deviceID,
		PasswordHash: cred.Hash,
		Salt:         cred.Salt,
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			return TokenPair{}, ErrAccountExists
		}
		return TokenPair{}, fmt.Errorf("create account: %w", err)
	}

	pair, err := e.Issue(ctx, acct.ID, map[string]string{"method": "register", "device_id": deviceID})
	if err != nil {
		return TokenPair{}, err
	}
	e.metricInc(MetricRegister)
	e.emitAudit(ctx, auditEventRegister, true, acct.ID, pair.SessionID, nil, nil)
	return pair, nil
}

// SetPassword replaces the subject's credential with a freshly salted hash
// and revokes every session it has.
func (e *Engine) SetPassword(ctx context.Context, subjectID, pw string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if len(pw) < e.config.Password.MinLength {
		return ErrPasswordPolicy
	}
	cred, err := e.passwords.Credential(pw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}
	if err := e.accounts.UpdateCredential(ctx, subjectID, cred.Hash, cred.Salt); err != nil {
		return err
	}
	e.metricInc(MetricPasswordSet)
	e.emitAudit(ctx, auditEventPasswordSet, true, subjectID, "", nil, nil)

	_, err = e.LogoutAll(ctx, subjectID)
	return err
}

// Logout removes the device row and then revokes the presented session and
// refresh token. If the device delete fails nothing is revoked. An empty
// deviceID skips the device step.
func (e *Engine) Logout(ctx context.Context, p Principal, refreshToken, deviceID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if deviceID = strings.TrimSpace(deviceID); deviceID != "" {
		if err := e.accounts.DeleteDevice(ctx, p.SubjectID, deviceID); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete device: %w", err)
		}
	}
	if err := e.Revoke(ctx, p.SubjectID, p.SessionID, refreshToken); err != nil {
		return err
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, p.SubjectID, p.SessionID, nil, nil)
	return nil
}

// LogoutAll deletes every access and refresh record of subjectID and returns
// the number of keys removed. Sessions issued while the scan runs may survive.
func (e *Engine) LogoutAll(ctx context.Context, subjectID string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.sessionStore.DeleteSubject(ctx, subjectID)
	if err != nil {
		return n, storeErr(err)
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, subjectID, "", nil, nil)
	return n, nil
}

// Profile returns the account behind a verified principal with its credential
// fields cleared.
func (e *Engine) Profile(ctx context.Context, p Principal) (Account, error) {
	if e == nil {
		return Account{}, ErrEngineNotReady
	}
	acct, err := e.accounts.AccountByID(ctx, p.SubjectID)
	if err != nil {
		return Account{}, err
	}
	acct.PasswordHash = ""
	acct.Salt = nil
	return acct, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
