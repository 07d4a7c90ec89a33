package authsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/swipewise/authsession/internal/audit"
	"github.com/swipewise/authsession/internal/flows"
	"github.com/swipewise/authsession/internal/rate"
	"github.com/swipewise/authsession/jwt"
	"github.com/swipewise/authsession/password"
	"github.com/swipewise/authsession/session"
)

// Engine issues, verifies and revokes session tokens.
//
// An Engine is built once by [Builder.Build] and is safe for concurrent use.
// It holds no process-wide state; handlers receive it by reference.
type Engine struct {
	config       Config
	sessionStore *session.Store
	rateLimiter  *rate.Limiter
	jwtManager   *jwt.Manager
	passwords    *password.Verifier
	accounts     AccountStore
	audit        *audit.Dispatcher
	metrics      *Metrics
	logger       Logger
	now          func() time.Time
	flows        flows.Deps
}

// Close stops the audit dispatcher after draining queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of every counter and the verify latency
// histogram.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Issue mints a token pair for subjectID and persists its session and
// refresh records. extra is stored as the session's extra-info record when
// non-empty.
func (e *Engine) Issue(ctx context.Context, subjectID string, extra map[string]string) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	blob, err := encodeExtra(extra)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	res := flows.RunIssue(ctx, subjectID, blob, e.flows.Issue)
	if res.Failure != flows.FailureNone {
		err := e.mapFailure(ctx, res.Failure, res.Err)
		e.emitAudit(ctx, auditEventSessionCreateFailed, false, subjectID, "", err, nil)
		return TokenPair{}, err
	}

	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, true, subjectID, res.SessionID, nil, extra)
	return pairFrom(res), nil
}

// Verify decodes an access token and checks it against its session record.
// Every rejection is ErrTokenInvalid except a store outage, which is
// ErrStoreUnavailable.
func (e *Engine) Verify(ctx context.Context, token string) (Principal, error) {
	if e == nil {
		return Principal{}, ErrEngineNotReady
	}

	start := time.Now()
	res := flows.RunVerify(ctx, token, e.flows.Verify)
	e.metrics.Observe(MetricVerifyLatency, time.Since(start))

	if res.Failure != flows.FailureNone {
		e.metricInc(MetricVerifyFailure)
		return Principal{}, e.mapFailure(ctx, res.Failure, res.Err)
	}

	e.metricInc(MetricVerifySuccess)
	return Principal{
		SubjectID: res.SubjectID,
		SessionID: res.SessionID,
		ExpiresAt: res.ExpiresAt,
	}, nil
}

// Refresh mints a new access token for a stored refresh token. The refresh
// token is not rotated: the returned pair carries the presented refresh token
// and its original expiry, and it stays usable until then or until logout.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	extra := map[string]string{"method": "refresh"}
	if ip := clientIPFromContext(ctx); ip != "" {
		extra["ip"] = ip
	}
	blob, _ := encodeExtra(extra)

	res := flows.RunReissue(ctx, refreshToken, blob, e.flows.Reissue)
	if res.Failure != flows.FailureNone {
		err := e.mapFailure(ctx, res.Failure, res.Err)
		switch {
		case errors.Is(err, ErrRefreshRateLimited):
			e.metricInc(MetricRefreshRateLimited)
			e.emitAudit(ctx, auditEventRefreshRateLimited, false, res.SubjectID, "", err, nil)
		default:
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, res.SubjectID, "", err, nil)
		}
		return TokenPair{}, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.SubjectID, res.SessionID, nil, nil)
	return pairFrom(res), nil
}

// authorizeRefresh runs between parsing a refresh token and consulting its
// record. The account must still exist and be enabled.
func (e *Engine) authorizeRefresh(ctx context.Context, subjectID string) error {
	acct, err := e.accounts.AccountByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("account lookup: %w", err)
	}
	if acct.Status == AccountDisabled {
		e.metricInc(MetricAccountDisabled)
		return ErrAccountDisabled
	}
	if err := e.rateLimiter.CheckRefresh(ctx, subjectID); err != nil {
		return limiterErr(ErrRefreshRateLimited, err)
	}
	return nil
}

// Revoke deletes one session's access record and one refresh record. Both
// deletes are attempted even when the first fails; they are idempotent.
func (e *Engine) Revoke(ctx context.Context, subjectID, sessionID, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	res := flows.RunRevoke(ctx, subjectID, sessionID, refreshToken, e.flows.Revoke)
	if res.Failure != flows.FailureNone {
		return e.mapFailure(ctx, res.Failure, res.Err)
	}
	e.metricInc(MetricSessionRevoked)
	return nil
}

// SessionExtra returns the issuance metadata recorded for sessionID. A
// session issued without metadata, or whose record expired, is ErrNotFound.
func (e *Engine) SessionExtra(ctx context.Context, sessionID string) (map[string]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	raw, err := e.sessionStore.Extra(ctx, sessionID)
	if err != nil {
		return nil, storeErr(err)
	}
	out := map[string]string{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode extra info: %v", ErrServerInvariant, err)
	}
	return out, nil
}

// ActiveSessions lists the session ids of subjectID that still have a live
// access record.
func (e *Engine) ActiveSessions(ctx context.Context, subjectID string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	ids, err := e.sessionStore.ActiveSessions(ctx, subjectID)
	if err != nil {
		return nil, storeErr(err)
	}
	return ids, nil
}

// Health pings Redis.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil {
		return HealthStatus{}
	}
	latency, err := e.sessionStore.Ping(ctx)
	if err != nil {
		e.logger.Warn(ctx, "redis health check failed", "error", err)
		return HealthStatus{}
	}
	return HealthStatus{RedisOK: true, RedisLatency: latency}
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

// mapFailure turns a flow failure into the root error taxonomy.
func (e *Engine) mapFailure(ctx context.Context, kind flows.FailureKind, err error) error {
	switch kind {
	case flows.FailureNone:
		return nil
	case flows.FailureTokenInvalid:
		return ErrTokenInvalid
	case flows.FailureStoreUnavailable:
		e.metricInc(MetricStoreUnavailable)
		e.logger.Error(ctx, "session store unavailable", "error", err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	case flows.FailureInvalidInput:
		return ErrInvalidRequest
	case flows.FailureRejected:
		return err
	default:
		e.metricInc(MetricServerInvariant)
		e.logger.Error(ctx, "session invariant violated", "error", err)
		return ErrServerInvariant
	}
}

func storeErr(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, session.ErrInvalidKey):
		return ErrInvalidRequest
	case errors.Is(err, session.ErrRedisUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrServerInvariant, err)
	}
}

// limiterErr converts a limiter failure into sentinel, keeping the retry
// hint. Backend failures become ErrStoreUnavailable.
func limiterErr(sentinel, err error) error {
	var le *rate.LimitError
	if errors.As(err, &le) {
		return &RateLimitError{Err: sentinel, RetryAfter: le.RetryAfter}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func encodeExtra(extra map[string]string) ([]byte, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	return json.Marshal(extra)
}

func pairFrom(res flows.IssueResult) TokenPair {
	return TokenPair{
		AccessToken:           res.AccessToken,
		AccessTokenExpiresAt:  res.AccessExpiresAt,
		RefreshToken:          res.RefreshToken,
		RefreshTokenExpiresAt: res.RefreshExpiresAt,
		SessionID:             res.SessionID,
	}
}
