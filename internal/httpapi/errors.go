package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/swipewise/authsession"
)

// writeError maps an engine error onto the envelope. Unknown accounts and
// wrong passwords share one 401 so the response does not reveal which
// emails are registered.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch authsession.KindOf(err) {
	case authsession.KindCredentialInvalid, authsession.KindNotFound:
		writeJSON(w, http.StatusUnauthorized, "Incorrect email or password", nil)
	case authsession.KindTokenInvalid:
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeJSON(w, http.StatusUnauthorized, "Invalid token", nil)
	case authsession.KindAccountDisabled:
		writeJSON(w, http.StatusForbidden, "Your account has been disabled. Please contact the administrator", nil)
	case authsession.KindRateLimited:
		retry, _ := authsession.RetryAfter(err)
		w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(retry.Seconds())))
		writeJSON(w, http.StatusTooManyRequests, "Too many requests", nil)
	case authsession.KindInvalidInput:
		switch {
		case errors.Is(err, authsession.ErrAccountExists):
			writeJSON(w, http.StatusConflict, "User already exists", nil)
		case errors.Is(err, authsession.ErrPasswordPolicy):
			writeJSON(w, http.StatusBadRequest, "Password does not meet the policy", nil)
		default:
			writeJSON(w, http.StatusBadRequest, "Invalid request", nil)
		}
	default:
		if errors.Is(err, authsession.ErrStoreUnavailable) {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusServiceUnavailable, "Service unavailable", nil)
			return
		}
		h.logger.Error(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func retrySeconds(s float64) int {
	if s <= 1 {
		return 1
	}
	return int(math.Ceil(s))
}
