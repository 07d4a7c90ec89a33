package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/swipewise/authsession"
)

type fakeVerifier struct {
	valid map[string]authsession.Principal
	err   error
	calls int
}

func (f *fakeVerifier) Verify(_ context.Context, token string) (authsession.Principal, error) {
	f.calls++
	if f.err != nil {
		return authsession.Principal{}, f.err
	}
	p, ok := f.valid[token]
	if !ok {
		return authsession.Principal{}, authsession.ErrTokenInvalid
	}
	return p, nil
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{valid: map[string]authsession.Principal{
		"good": {SubjectID: "42", SessionID: "s1"},
	}}
}

// principalEcho answers 200 with the subject id, or "anonymous".
func principalEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := authsession.PrincipalFromContext(r.Context())
		if !ok {
			_, _ = w.Write([]byte("anonymous"))
			return
		}
		_, _ = w.Write([]byte(p.SubjectID))
	})
}

func serve(h http.Handler, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGateExcludedPathWithoutHeaderPasses(t *testing.T) {
	v := newFakeVerifier()
	gate := NewGate(v, WithExclusions("/api/v1/auth/login"))
	mux := http.NewServeMux()
	mux.Handle("/api/v1/auth/login", principalEcho())
	mux.Handle("/api/v1/user/profile", Require(principalEcho()))
	h := gate.Middleware(mux)

	rec := serve(h, "/api/v1/auth/login", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Fatalf("excluded path: got %d %q", rec.Code, rec.Body.String())
	}

	rec = serve(h, "/api/v1/user/profile", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("protected path without header: expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatalf("expected WWW-Authenticate header, got %q", rec.Header().Get("WWW-Authenticate"))
	}
	if v.calls != 0 {
		t.Fatalf("expected no verification calls, got %d", v.calls)
	}
}

func TestGateExcludedPathIgnoresBadToken(t *testing.T) {
	v := newFakeVerifier()
	h := NewGate(v, WithExclusions("/login")).Middleware(principalEcho())

	rec := serve(h, "/login", "Bearer forged")
	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
	if v.calls != 0 {
		t.Fatal("excluded path must not be verified")
	}
}

func TestGateAttachesPrincipal(t *testing.T) {
	h := NewGate(newFakeVerifier()).Middleware(principalEcho())

	for _, header := range []string{"Bearer good", "bearer good", "BEARER   good"} {
		rec := serve(h, "/anything", header)
		if rec.Code != http.StatusOK || rec.Body.String() != "42" {
			t.Fatalf("%q: got %d %q", header, rec.Code, rec.Body.String())
		}
	}
}

func TestGateOtherSchemesPassUnauthenticated(t *testing.T) {
	v := newFakeVerifier()
	h := NewGate(v).Middleware(principalEcho())

	for _, header := range []string{"Basic dXNlcjpwYXNz", "Bearer", "Token good"} {
		rec := serve(h, "/anything", header)
		if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
			t.Fatalf("%q: got %d %q", header, rec.Code, rec.Body.String())
		}
	}
	if v.calls != 0 {
		t.Fatalf("expected no verification calls, got %d", v.calls)
	}
}

func TestGateRejectsInvalidToken(t *testing.T) {
	h := NewGate(newFakeVerifier()).Middleware(principalEcho())

	rec := serve(h, "/anything", "Bearer forged")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got != `Bearer error="invalid_token"` {
		t.Fatalf("unexpected WWW-Authenticate %q", got)
	}

	var body struct {
		Code int     `json:"code"`
		Msg  string  `json:"msg"`
		Data *string `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != http.StatusUnauthorized || body.Msg != "Invalid token" || body.Data != nil {
		t.Fatalf("unexpected envelope %+v", body)
	}
}

func TestGateStoreOutage(t *testing.T) {
	v := newFakeVerifier()
	v.err = fmt.Errorf("%w: connection refused", authsession.ErrStoreUnavailable)
	h := NewGate(v).Middleware(principalEcho())

	rec := serve(h, "/anything", "Bearer good")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestGateCustomErrorWriter(t *testing.T) {
	var seen *AuthError
	h := NewGate(newFakeVerifier(), WithErrorWriter(func(w http.ResponseWriter, _ *http.Request, e *AuthError) {
		seen = e
		w.WriteHeader(http.StatusTeapot)
	})).Middleware(principalEcho())

	rec := serve(h, "/anything", "Bearer forged")
	if rec.Code != http.StatusTeapot || seen == nil || seen.Status != http.StatusUnauthorized {
		t.Fatalf("custom writer not used: code=%d err=%+v", rec.Code, seen)
	}
}

func TestGateWithoutVerifier(t *testing.T) {
	h := NewGate(nil).Middleware(principalEcho())
	if rec := serve(h, "/anything", "Bearer good"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if rec := serve(h, "/anything", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected anonymous pass-through, got %d", rec.Code)
	}
}
