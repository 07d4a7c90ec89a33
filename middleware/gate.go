package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/swipewise/authsession"
)

// Verifier is the part of *authsession.Engine the gate needs.
type Verifier interface {
	Verify(ctx context.Context, token string) (authsession.Principal, error)
}

// AuthError is the rejection produced by the gate. Headers are copied onto
// the response as given.
type AuthError struct {
	Status  int
	Message string
	Headers http.Header
}

func (e *AuthError) Error() string {
	return e.Message
}

// ErrorWriter renders an AuthError.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err *AuthError)

// Gate is the request-boundary authenticator.
type Gate struct {
	verifier   Verifier
	exclusions map[string]struct{}
	writeError ErrorWriter
}

// GateOption customizes a [Gate].
type GateOption func(*Gate)

// WithExclusions adds exact request paths that bypass verification.
func WithExclusions(paths ...string) GateOption {
	return func(g *Gate) {
		for _, p := range paths {
			g.exclusions[p] = struct{}{}
		}
	}
}

// WithErrorWriter replaces the default JSON envelope writer.
func WithErrorWriter(fn ErrorWriter) GateOption {
	return func(g *Gate) {
		if fn != nil {
			g.writeError = fn
		}
	}
}

// NewGate returns a Gate that checks bearer tokens with v.
func NewGate(v Verifier, opts ...GateOption) *Gate {
	g := &Gate{
		verifier:   v,
		exclusions: map[string]struct{}{},
		writeError: WriteEnvelopeError,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Excluded reports whether path bypasses the gate.
func (g *Gate) Excluded(path string) bool {
	_, ok := g.exclusions[path]
	return ok
}

// Authenticate applies the gate rules to r. It returns ok=false with a nil
// error when the request proceeds unauthenticated.
func (g *Gate) Authenticate(r *http.Request) (authsession.Principal, bool, *AuthError) {
	if g.Excluded(r.URL.Path) {
		return authsession.Principal{}, false, nil
	}
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return authsession.Principal{}, false, nil
	}
	if g.verifier == nil {
		return authsession.Principal{}, false, errorFor(authsession.ErrEngineNotReady)
	}

	p, err := g.verifier.Verify(r.Context(), token)
	if err != nil {
		return authsession.Principal{}, false, errorFor(err)
	}
	return p, true, nil
}

// Middleware wraps next with the gate.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok, authErr := g.Authenticate(r)
		if authErr != nil {
			g.writeError(w, r, authErr)
			return
		}
		if ok {
			r = r.WithContext(authsession.WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// Require rejects a request that carries no principal with 401.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authsession.PrincipalFromContext(r.Context()); !ok {
			WriteEnvelopeError(w, r, &AuthError{
				Status:  http.StatusUnauthorized,
				Message: "Not authenticated",
				Headers: http.Header{"WWW-Authenticate": []string{"Bearer"}},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WriteEnvelopeError writes {"code":status,"msg":message,"data":null}.
func WriteEnvelopeError(w http.ResponseWriter, _ *http.Request, e *AuthError) {
	for k, vs := range e.Headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data any    `json:"data"`
	}{Code: e.Status, Msg: e.Message})
}

func errorFor(err error) *AuthError {
	switch {
	case errors.Is(err, authsession.ErrTokenInvalid):
		return &AuthError{
			Status:  http.StatusUnauthorized,
			Message: "Invalid token",
			Headers: http.Header{"WWW-Authenticate": []string{`Bearer error="invalid_token"`}},
		}
	case errors.Is(err, authsession.ErrStoreUnavailable):
		return &AuthError{
			Status:  http.StatusServiceUnavailable,
			Message: "Service unavailable",
			Headers: http.Header{"Retry-After": []string{"1"}},
		}
	default:
		return &AuthError{Status: http.StatusInternalServerError, Message: "Internal server error"}
	}
}

// bearerToken extracts the token from an Authorization value. The scheme is
// matched case-insensitively.
func bearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
