package authsession

import (
	"context"
	"time"

	"github.com/swipewise/authsession/internal/audit"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginRateLimited     = "login_rate_limited"
	auditEventGuestLogin           = "guest_login"
	auditEventRegister             = "account_created"
	auditEventRegisterFailure      = "account_creation_failure"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventRefreshRateLimited   = "refresh_rate_limited"
	auditEventSessionCreated       = "session_created"
	auditEventSessionCreateFailed  = "session_creation_failed"
	auditEventLogoutSession        = "logout_session"
	auditEventLogoutAll            = "logout_all"
	auditEventPasswordSet          = "password_set"
	auditEventPasswordRehashed     = "password_rehashed"
	auditEventAccountDisabledLogin = "account_disabled_login"
)

// emitAudit queues an event. It never blocks longer than the dispatcher's
// buffer policy allows and is a no-op when auditing is disabled.
func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, subjectID, sessionID string, err error, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	ev := audit.Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		SubjectID: subjectID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		ev.Error = KindOf(err).String()
	}
	e.audit.Emit(ctx, ev)
}
