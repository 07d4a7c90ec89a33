package authsession

import (
	"errors"
	"strings"
	"time"
)

// Config holds every tunable of the engine and its reference HTTP surface.
//
// A Config is copied into the Engine at Build time and treated as immutable
// afterwards.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Password PasswordConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	HTTP     HTTPConfig

	// Infrastructure used by the binaries; the Engine itself ignores these.
	Redis         RedisConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig selects the signing algorithm and token lifetimes.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the Redis key layout and write semantics.
type SessionConfig struct {
	// Namespace optionally prefixes every session key, e.g. "swipewise".
	Namespace string
	// Record prefixes, placed after Namespace: {access}:{sub}:{sid},
	// {extra}:{sid} and {refresh}:{sub}:{token}.
	AccessPrefix  string
	ExtraPrefix   string
	RefreshPrefix string
	// AtomicWrites groups issuance writes and revocation deletes in MULTI/EXEC.
	AtomicWrites bool
	// VerifyWrites re-reads the access record after issuance.
	VerifyWrites bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters and the registration policy.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
	// UpgradeOnLogin rehashes legacy bcrypt or weaker argon2 hashes after a
	// successful login.
	UpgradeOnLogin bool
	// LegacyBcryptCost is the cost below which bcrypt hashes count as weak.
	LegacyBcryptCost int
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds rate limit budgets.
type SecurityConfig struct {
	LimiterPrefix       string
	EnableIPThrottle    bool
	MaxLoginAttempts    int
	LoginWindow         time.Duration
	MaxRefreshPerWindow int // 0 disables the refresh throttle
	RefreshWindow       time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
HTTP CONFIG
====================================
*/

// HTTPConfig configures the reference HTTP surface and the gate.
type HTTPConfig struct {
	Addr     string
	BasePath string
	// Exclusions are exact request paths that bypass the authentication gate.
	Exclusions []string
}

/*
====================================
INFRASTRUCTURE CONFIG
====================================
*/

// RedisConfig locates the Redis server shared by sessions and limiters.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig locates the Postgres account database.
type DatabaseConfig struct {
	URL             string
	MaxConnections  int
	MinConnections  int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// ObservabilityConfig configures logging, error reporting and audit streaming.
type ObservabilityConfig struct {
	LogLevel     string // debug, info, warn, error
	LogFormat    string // json or text
	SentryDSN    string
	Environment  string
	KafkaBrokers []string
	KafkaTopic   string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production defaults. JWT.PrivateKey must still be set.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     24 * time.Hour,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
		},
		Session: SessionConfig{
			AccessPrefix:  "access",
			ExtraPrefix:   "access-extra",
			RefreshPrefix: "refresh",
			VerifyWrites:  true,
		},
		Password: PasswordConfig{
			Memory:           64 * 1024,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MinLength:        8,
			UpgradeOnLogin:   true,
			LegacyBcryptCost: 10,
		},
		Security: SecurityConfig{
			LimiterPrefix:    "limiter",
			EnableIPThrottle: true,
			MaxLoginAttempts: 5,
			LoginWindow:      15 * time.Minute,
			RefreshWindow:    time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		HTTP: HTTPConfig{
			Addr:     ":8080",
			BasePath: "/api/v1",
			Exclusions: []string{
				"/api/v1/auth/login",
				"/api/v1/auth/guest_login",
				"/api/v1/auth/register",
				"/api/v1/auth/forgot_password",
				"/api/v1/card/search",
			},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Database: DatabaseConfig{
			MaxConnections:  10,
			MinConnections:  1,
			ConnMaxLifetime: 30 * time.Minute,
			AutoMigrate:     true,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			Environment: "development",
			KafkaTopic:  "authsession.audit",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.HTTP.Exclusions = append([]string(nil), cfg.HTTP.Exclusions...)
	out.Observability.KafkaBrokers = append([]string(nil), cfg.Observability.KafkaBrokers...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// keyUnsafeChars may not appear in any key segment taken from config.
const keyUnsafeChars = ":*?[]\\ "

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	// Session
	if strings.ContainsAny(c.Session.Namespace, keyUnsafeChars) {
		return errors.New("Session Namespace must not contain ':', spaces or glob characters")
	}
	recordPrefixes := []string{c.Session.AccessPrefix, c.Session.ExtraPrefix, c.Session.RefreshPrefix}
	for i, p := range recordPrefixes {
		if p == "" || strings.ContainsAny(p, keyUnsafeChars) {
			return errors.New("Session prefixes must be non-empty and contain no ':', spaces or glob characters")
		}
		for _, other := range recordPrefixes[:i] {
			if p == other {
				return errors.New("Session prefixes must be distinct")
			}
		}
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	// Security
	prefix := c.Security.LimiterPrefix
	if prefix == "" || strings.ContainsAny(prefix, keyUnsafeChars) {
		return errors.New("Security LimiterPrefix must be non-empty and contain no ':', spaces or glob characters")
	}
	for _, p := range recordPrefixes {
		if prefix == p {
			return errors.New("Security LimiterPrefix must not collide with session prefixes")
		}
	}
	if c.Security.MaxLoginAttempts < 0 {
		return errors.New("Security MaxLoginAttempts must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginWindow <= 0 {
		return errors.New("Security LoginWindow must be > 0 when login throttling is on")
	}
	if c.Security.MaxRefreshPerWindow < 0 {
		return errors.New("Security MaxRefreshPerWindow must be >= 0")
	}
	if c.Security.MaxRefreshPerWindow > 0 && c.Security.RefreshWindow <= 0 {
		return errors.New("Security RefreshWindow must be > 0 when refresh throttling is on")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	// HTTP
	if c.HTTP.BasePath != "" && !strings.HasPrefix(c.HTTP.BasePath, "/") {
		return errors.New("HTTP BasePath must start with '/'")
	}
	for _, p := range c.HTTP.Exclusions {
		if strings.TrimSpace(p) == "" {
			return errors.New("HTTP Exclusions must not contain blank entries")
		}
	}

	// Observability
	if len(c.Observability.KafkaBrokers) > 0 && c.Observability.KafkaTopic == "" {
		return errors.New("Observability KafkaTopic is required when KafkaBrokers are set")
	}

	return nil
}
