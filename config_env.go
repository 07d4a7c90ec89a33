package authsession

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "AUTHSESSION_"

// LoadConfig loads an optional dotenv file, then overlays AUTHSESSION_*
// environment variables on DefaultConfig and validates the result. An empty
// path tries ".env" and ignores its absence; an explicit path must exist.
// Variables already set in the process environment win over the file.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(path); err != nil {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}

	cfg := DefaultConfig()

	cfg.JWT.AccessTTL = envDuration("JWT_ACCESS_TTL", cfg.JWT.AccessTTL)
	cfg.JWT.RefreshTTL = envDuration("JWT_REFRESH_TTL", cfg.JWT.RefreshTTL)
	cfg.JWT.SigningMethod = strings.ToLower(envString("JWT_SIGNING_METHOD", cfg.JWT.SigningMethod))
	if v := envString("JWT_SECRET", ""); v != "" {
		cfg.JWT.PrivateKey = []byte(v)
	}
	if v := envString("JWT_PRIVATE_KEY", ""); v != "" {
		cfg.JWT.PrivateKey = []byte(v)
	}
	if v := envString("JWT_PUBLIC_KEY", ""); v != "" {
		cfg.JWT.PublicKey = []byte(v)
	}
	cfg.JWT.Issuer = envString("JWT_ISSUER", cfg.JWT.Issuer)
	cfg.JWT.Audience = envString("JWT_AUDIENCE", cfg.JWT.Audience)
	cfg.JWT.Leeway = envDuration("JWT_LEEWAY", cfg.JWT.Leeway)
	cfg.JWT.KeyID = envString("JWT_KEY_ID", cfg.JWT.KeyID)

	cfg.Session.Namespace = envString("SESSION_NAMESPACE", cfg.Session.Namespace)
	cfg.Session.AccessPrefix = envString("SESSION_ACCESS_PREFIX", cfg.Session.AccessPrefix)
	cfg.Session.ExtraPrefix = envString("SESSION_EXTRA_PREFIX", cfg.Session.ExtraPrefix)
	cfg.Session.RefreshPrefix = envString("SESSION_REFRESH_PREFIX", cfg.Session.RefreshPrefix)
	cfg.Session.AtomicWrites = envBool("SESSION_ATOMIC_WRITES", cfg.Session.AtomicWrites)
	cfg.Session.VerifyWrites = envBool("SESSION_VERIFY_WRITES", cfg.Session.VerifyWrites)

	cfg.Password.MinLength = envInt("PASSWORD_MIN_LENGTH", cfg.Password.MinLength)
	cfg.Password.UpgradeOnLogin = envBool("PASSWORD_UPGRADE_ON_LOGIN", cfg.Password.UpgradeOnLogin)

	cfg.Security.LimiterPrefix = envString("LIMITER_PREFIX", cfg.Security.LimiterPrefix)
	cfg.Security.EnableIPThrottle = envBool("LOGIN_IP_THROTTLE", cfg.Security.EnableIPThrottle)
	cfg.Security.MaxLoginAttempts = envInt("LOGIN_MAX_ATTEMPTS", cfg.Security.MaxLoginAttempts)
	cfg.Security.LoginWindow = envDuration("LOGIN_WINDOW", cfg.Security.LoginWindow)
	cfg.Security.MaxRefreshPerWindow = envInt("REFRESH_MAX_PER_WINDOW", cfg.Security.MaxRefreshPerWindow)
	cfg.Security.RefreshWindow = envDuration("REFRESH_WINDOW", cfg.Security.RefreshWindow)

	cfg.Audit.Enabled = envBool("AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Audit.BufferSize = envInt("AUDIT_BUFFER_SIZE", cfg.Audit.BufferSize)
	cfg.Metrics.Enabled = envBool("METRICS_ENABLED", cfg.Metrics.Enabled)

	cfg.HTTP.Addr = envString("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.BasePath = envString("HTTP_BASE_PATH", cfg.HTTP.BasePath)
	cfg.HTTP.Exclusions = envList("HTTP_EXCLUSIONS", cfg.HTTP.Exclusions)

	cfg.Redis.Addr = envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envInt("REDIS_DB", cfg.Redis.DB)

	cfg.Database.URL = envString("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxConnections = envInt("DATABASE_MAX_CONNS", cfg.Database.MaxConnections)
	cfg.Database.AutoMigrate = envBool("DATABASE_AUTO_MIGRATE", cfg.Database.AutoMigrate)

	cfg.Observability.LogLevel = envString("LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.LogFormat = envString("LOG_FORMAT", cfg.Observability.LogFormat)
	cfg.Observability.SentryDSN = envString("SENTRY_DSN", cfg.Observability.SentryDSN)
	cfg.Observability.Environment = envString("ENVIRONMENT", cfg.Observability.Environment)
	cfg.Observability.KafkaBrokers = envList("KAFKA_BROKERS", cfg.Observability.KafkaBrokers)
	cfg.Observability.KafkaTopic = envString("KAFKA_TOPIC", cfg.Observability.KafkaTopic)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// envList splits a comma-separated value; an unset variable keeps def.
func envList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
