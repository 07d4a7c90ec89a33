package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/swipewise/authsession"
	"github.com/swipewise/authsession/internal/observability"
	"github.com/swipewise/authsession/middleware"
)

// Service is the part of *authsession.Engine the handlers call.
type Service interface {
	Login(ctx context.Context, email, password string) (authsession.TokenPair, error)
	GuestLogin(ctx context.Context, deviceID, deviceType string) (authsession.TokenPair, error)
	Register(ctx context.Context, in authsession.RegisterInput) (authsession.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (authsession.TokenPair, error)
	Logout(ctx context.Context, p authsession.Principal, refreshToken, deviceID string) error
	Profile(ctx context.Context, p authsession.Principal) (authsession.Account, error)
	SessionExtra(ctx context.Context, sessionID string) (map[string]string, error)
	Health(ctx context.Context) authsession.HealthStatus
}

// Logger receives unexpected handler errors.
type Logger interface {
	Error(ctx context.Context, msg string, args ...any)
}

// Handler serves the auth and profile routes.
type Handler struct {
	svc          Service
	logger       Logger
	basePath     string
	maxBodyBytes int64
}

// Option customizes a [Handler].
type Option func(*Handler)

// WithLogger sets the logger for 500 responses; nil keeps the discard logger.
func WithLogger(l Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMaxBodyBytes caps request bodies; the default is 64 KiB.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// NewHandler serves svc under basePath, e.g. "/api/v1".
func NewHandler(svc Service, basePath string, opts ...Option) *Handler {
	h := &Handler{
		svc:          svc,
		logger:       observability.Discard(),
		basePath:     strings.TrimRight(basePath, "/"),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	p := h.basePath
	mux.HandleFunc("POST "+p+"/auth/login", h.handleLogin)
	mux.HandleFunc("POST "+p+"/auth/guest_login", h.handleGuestLogin)
	mux.HandleFunc("POST "+p+"/auth/register", h.handleRegister)
	mux.HandleFunc("POST "+p+"/auth/refresh_token", h.handleRefresh)
	mux.Handle("POST "+p+"/auth/logout", middleware.Require(http.HandlerFunc(h.handleLogout)))
	mux.Handle("GET "+p+"/auth/session", middleware.Require(http.HandlerFunc(h.handleSession)))
	mux.Handle("GET "+p+"/user/profile", middleware.Require(http.HandlerFunc(h.handleProfile)))
	mux.HandleFunc("GET "+p+"/health", h.handleHealth)
}

// Routes returns a mux with every route registered, wrapped so the engine
// sees the caller's IP and user agent.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	return ClientContext(mux)
}

// ClientContext copies the client IP and User-Agent into the request context.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := authsession.WithClientIP(r.Context(), observability.ClientIP(r))
		ctx = authsession.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type guestLoginRequest struct {
	DeviceID   string `json:"device_id"`
	DeviceType string `json:"device_type"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"device_id"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
	DeviceID     string `json:"device_id"`
}

type tokenResponse struct {
	AccessToken            string `json:"access_token"`
	AccessTokenExpireTime  string `json:"access_token_expire_time"`
	RefreshToken           string `json:"refresh_token"`
	RefreshTokenExpireTime string `json:"refresh_token_expire_time"`
}

type profileResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type sessionResponse struct {
	SubjectID string            `json:"subject_id"`
	SessionID string            `json:"session_id"`
	ExpiresAt string            `json:"expires_at"`
	Extra     map[string]string `json:"extra"`
}

type healthResponse struct {
	Redis          string `json:"redis"`
	RedisLatencyMS int64  `json:"redis_latency_ms"`
}

func toTokenResponse(p authsession.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:            p.AccessToken,
		AccessTokenExpireTime:  p.AccessTokenExpiresAt.UTC().Format(time.RFC3339),
		RefreshToken:           p.RefreshToken,
		RefreshTokenExpireTime: p.RefreshTokenExpiresAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, "Email and password are required.", nil)
		return
	}

	pair, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, toTokenResponse(pair))
}

func (h *Handler) handleGuestLogin(w http.ResponseWriter, r *http.Request) {
	var req guestLoginRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.DeviceID) == "" {
		writeJSON(w, http.StatusBadRequest, "Device id is required.", nil)
		return
	}

	pair, err := h.svc.GuestLogin(r.Context(), req.DeviceID, req.DeviceType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, toTokenResponse(pair))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	switch {
	case req.Password == "":
		writeJSON(w, http.StatusBadRequest, "Password is required.", nil)
		return
	case strings.TrimSpace(req.DeviceID) == "":
		writeJSON(w, http.StatusBadRequest, "Device id is required.", nil)
		return
	case strings.TrimSpace(req.Email) == "":
		writeJSON(w, http.StatusBadRequest, "Email is required.", nil)
		return
	}

	pair, err := h.svc.Register(r.Context(), authsession.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		DeviceID: req.DeviceID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, toTokenResponse(pair))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		writeJSON(w, http.StatusBadRequest, "Refresh token is required.", nil)
		return
	}

	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, toTokenResponse(pair))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	p, _ := authsession.PrincipalFromContext(r.Context())

	var req logoutRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		writeJSON(w, http.StatusBadRequest, "Refresh token is required.", nil)
		return
	}

	if err := h.svc.Logout(r.Context(), p, req.RefreshToken, req.DeviceID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := authsession.PrincipalFromContext(r.Context())

	acct, err := h.svc.Profile(r.Context(), p)
	if err != nil {
		if authsession.KindOf(err) == authsession.KindNotFound {
			writeJSON(w, http.StatusNotFound, "User not found", nil)
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeOK(w, profileResponse{ID: acct.ID, Name: acct.Name, Email: acct.Email})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	p, _ := authsession.PrincipalFromContext(r.Context())

	extra, err := h.svc.SessionExtra(r.Context(), p.SessionID)
	if err != nil && authsession.KindOf(err) != authsession.KindNotFound {
		h.writeError(w, r, err)
		return
	}
	if extra == nil {
		extra = map[string]string{}
	}
	writeOK(w, sessionResponse{
		SubjectID: p.SubjectID,
		SessionID: p.SessionID,
		ExpiresAt: p.ExpiresAt.UTC().Format(time.RFC3339),
		Extra:     extra,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := h.svc.Health(r.Context())
	if !status.RedisOK {
		writeJSON(w, http.StatusServiceUnavailable, "Service unavailable", healthResponse{Redis: "down"})
		return
	}
	writeOK(w, healthResponse{Redis: "up", RedisLatencyMS: status.RedisLatency.Milliseconds()})
}
