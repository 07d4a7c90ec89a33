package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters. A zero MaxRefreshPerWindow
// disables the refresh throttle.
type Config struct {
	Prefix              string
	EnableIPThrottle    bool
	MaxLoginAttempts    int
	LoginWindow         time.Duration
	MaxRefreshPerWindow int
	RefreshWindow       time.Duration
}

// Limiter enforces failed-login budgets per email and per client IP, and an
// optional refresh budget per subject, using Redis fixed-window counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "limiter"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin returns a *LimitError when the email or IP has used up its
// failed-login budget for the current window. It does not count an attempt.
func (l *Limiter) CheckLogin(ctx context.Context, email, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if err := l.checkCounter(ctx, l.loginKey(email), l.config.MaxLoginAttempts, "login"); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, l.loginIPKey(ip), l.config.MaxLoginAttempts, "login-ip"); err != nil {
			return err
		}
	}
	return nil
}

// RecordLoginFailure counts one failed attempt against the email and IP.
func (l *Limiter) RecordLoginFailure(ctx context.Context, email, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if _, err := l.incrementWithTTL(ctx, l.loginKey(email), l.config.LoginWindow); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if _, err := l.incrementWithTTL(ctx, l.loginIPKey(ip), l.config.LoginWindow); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the email counter after a successful login. The IP
// counter is left to expire on its own.
func (l *Limiter) ResetLogin(ctx context.Context, email string) error {
	if err := l.redis.Del(ctx, l.loginKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// LoginAttempts returns the failed attempts counted for email in the current window.
func (l *Limiter) LoginAttempts(ctx context.Context, email string) (int, error) {
	count, err := l.redis.Get(ctx, l.loginKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// CheckRefresh counts one refresh for subjectID and fails once the window
// budget is exceeded.
func (l *Limiter) CheckRefresh(ctx context.Context, subjectID string) error {
	if l.config.MaxRefreshPerWindow <= 0 {
		return nil
	}
	key := l.refreshKey(subjectID)
	count, err := l.incrementWithTTL(ctx, key, l.config.RefreshWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshPerWindow) {
		return &LimitError{Scope: "refresh", RetryAfter: l.retryAfter(ctx, key, l.config.RefreshWindow)}
	}
	return nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int, scope string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(maxAttempts) {
		return &LimitError{Scope: scope, RetryAfter: l.retryAfter(ctx, key, l.config.LoginWindow)}
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: the TTL is set only by the first hit.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func (l *Limiter) retryAfter(ctx context.Context, key string, fallback time.Duration) time.Duration {
	ttl, err := l.redis.PTTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		return fallback
	}
	return ttl
}

func (l *Limiter) loginKey(email string) string {
	return l.config.Prefix + ":login:" + normalizeEmail(email)
}

func (l *Limiter) loginIPKey(ip string) string {
	return l.config.Prefix + ":login-ip:" + ip
}

func (l *Limiter) refreshKey(subjectID string) string {
	return l.config.Prefix + ":refresh:" + subjectID
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
