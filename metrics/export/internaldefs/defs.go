package internaldefs

import (
	"github.com/swipewise/authsession"
)

type CounterDef struct {
	ID   authsession.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   authsession.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authsession.MetricLoginSuccess, Name: "authsession_login_success_total", Help: "Successful password logins."},
	{ID: authsession.MetricLoginFailure, Name: "authsession_login_failure_total", Help: "Failed password logins."},
	{ID: authsession.MetricLoginRateLimited, Name: "authsession_login_rate_limited_total", Help: "Logins refused by the login limiter."},
	{ID: authsession.MetricGuestLogin, Name: "authsession_guest_login_total", Help: "Successful guest logins."},
	{ID: authsession.MetricRegister, Name: "authsession_register_total", Help: "Accounts registered."},
	{ID: authsession.MetricRefreshSuccess, Name: "authsession_refresh_success_total", Help: "Access tokens reissued from a refresh token."},
	{ID: authsession.MetricRefreshFailure, Name: "authsession_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: authsession.MetricRefreshRateLimited, Name: "authsession_refresh_rate_limited_total", Help: "Refreshes refused by the refresh throttle."},
	{ID: authsession.MetricVerifySuccess, Name: "authsession_verify_success_total", Help: "Access tokens verified."},
	{ID: authsession.MetricVerifyFailure, Name: "authsession_verify_failure_total", Help: "Access tokens rejected."},
	{ID: authsession.MetricSessionCreated, Name: "authsession_session_created_total", Help: "Session records written."},
	{ID: authsession.MetricSessionRevoked, Name: "authsession_session_revoked_total", Help: "Sessions revoked individually."},
	{ID: authsession.MetricLogout, Name: "authsession_logout_total", Help: "Single-session logouts."},
	{ID: authsession.MetricLogoutAll, Name: "authsession_logout_all_total", Help: "Logout-all operations."},
	{ID: authsession.MetricPasswordSet, Name: "authsession_password_set_total", Help: "Passwords set."},
	{ID: authsession.MetricPasswordRehashed, Name: "authsession_password_rehashed_total", Help: "Legacy or weak hashes upgraded on login."},
	{ID: authsession.MetricAccountDisabled, Name: "authsession_account_disabled_total", Help: "Authentications refused for a disabled account."},
	{ID: authsession.MetricStoreUnavailable, Name: "authsession_store_unavailable_total", Help: "Session store outages seen by the engine."},
	{ID: authsession.MetricServerInvariant, Name: "authsession_server_invariant_total", Help: "Invariant violations such as a failed read-back."},
}

var HistogramDefs = []HistogramDef{
	{ID: authsession.MetricVerifyLatency, Name: "authsession_verify_latency_seconds", Help: "Verify latency."},
}

// UpperBounds are the finite bucket bounds in seconds; the last bucket is +Inf.
var UpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

const (
	AuditDroppedName = "authsession_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped on a full dispatcher buffer."
)

// NormalizeBuckets copies raw into a fixed eight-bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
