package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps any transport or server error from Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrNotFound is returned when a record is absent or has expired.
	ErrNotFound = errors.New("session record not found")
	// ErrInvalidKey is returned for key segments that would break the key schema.
	ErrInvalidKey = errors.New("invalid session key segment")
)

const scanBatch = 256

// Keyspace holds the key prefixes used by a [Store].
type Keyspace struct {
	Namespace     string
	AccessPrefix  string
	ExtraPrefix   string
	RefreshPrefix string
}

// DefaultKeyspace returns the unprefixed access, access-extra and refresh layout.
func DefaultKeyspace() Keyspace {
	return Keyspace{
		AccessPrefix:  "access",
		ExtraPrefix:   "access-extra",
		RefreshPrefix: "refresh",
	}
}

// AccessRecord is one issued access token plus its optional metadata blob.
type AccessRecord struct {
	SubjectID string
	SessionID string
	Token     string
	Extra     []byte
	TTL       time.Duration
}

// Store persists session records in Redis. Every record is a plain string
// key with its own TTL; Redis eviction is the only expiry mechanism.
type Store struct {
	redis        redis.UniversalClient
	keys         Keyspace
	atomicWrites bool
}

// Option customizes a [Store].
type Option func(*Store)

// WithKeyspace overrides the key prefixes.
func WithKeyspace(ks Keyspace) Option {
	return func(s *Store) {
		s.keys = ks
	}
}

// WithAtomicWrites groups the access and extra-info writes of one issuance,
// and the access and refresh deletes of one revocation, into MULTI/EXEC.
func WithAtomicWrites(enabled bool) Option {
	return func(s *Store) {
		s.atomicWrites = enabled
	}
}

// NewStore returns a Store backed by redisClient.
func NewStore(redisClient redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		redis: redisClient,
		keys:  DefaultKeyspace(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveAccess writes the access record and, when rec.Extra is non-empty, its
// extra-info record. Without atomic writes the two SETs are independent and
// a failure between them leaves the access record in place.
func (s *Store) SaveAccess(ctx context.Context, rec AccessRecord) error {
	if err := validSegments(rec.SubjectID, rec.SessionID); err != nil {
		return err
	}
	if rec.Token == "" || rec.TTL <= 0 {
		return errors.New("access record requires token and ttl")
	}

	accessKey := s.accessKey(rec.SubjectID, rec.SessionID)
	extraKey := s.extraKey(rec.SessionID)

	if s.atomicWrites {
		_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, accessKey, rec.Token, rec.TTL)
			if len(rec.Extra) > 0 {
				pipe.Set(ctx, extraKey, rec.Extra, rec.TTL)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	if err := s.redis.Set(ctx, accessKey, rec.Token, rec.TTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(rec.Extra) > 0 {
		if err := s.redis.Set(ctx, extraKey, rec.Extra, rec.TTL).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}

// AccessToken returns the token stored for (subjectID, sessionID).
func (s *Store) AccessToken(ctx context.Context, subjectID, sessionID string) (string, error) {
	if err := validSegments(subjectID, sessionID); err != nil {
		return "", err
	}
	return s.get(ctx, s.accessKey(subjectID, sessionID))
}

// DeleteAccess removes the access record. It reports whether a key existed.
func (s *Store) DeleteAccess(ctx context.Context, subjectID, sessionID string) (bool, error) {
	if err := validSegments(subjectID, sessionID); err != nil {
		return false, err
	}
	return s.del(ctx, s.accessKey(subjectID, sessionID))
}

// Extra returns the raw extra-info blob for sessionID.
func (s *Store) Extra(ctx context.Context, sessionID string) ([]byte, error) {
	if err := validSegments(sessionID); err != nil {
		return nil, err
	}
	raw, err := s.redis.Get(ctx, s.extraKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return raw, nil
}

// SaveRefresh writes the refresh membership record. The token is both part of
// the key and the stored value.
func (s *Store) SaveRefresh(ctx context.Context, subjectID, token string, ttl time.Duration) error {
	if err := validSegments(subjectID, token); err != nil {
		return err
	}
	if ttl <= 0 {
		return errors.New("refresh record requires ttl")
	}
	if err := s.redis.Set(ctx, s.refreshKey(subjectID, token), token, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RefreshToken returns the stored value of the refresh record.
func (s *Store) RefreshToken(ctx context.Context, subjectID, token string) (string, error) {
	if err := validSegments(subjectID, token); err != nil {
		return "", err
	}
	return s.get(ctx, s.refreshKey(subjectID, token))
}

// DeleteRefresh removes the refresh record. It reports whether a key existed.
func (s *Store) DeleteRefresh(ctx context.Context, subjectID, token string) (bool, error) {
	if err := validSegments(subjectID, token); err != nil {
		return false, err
	}
	return s.del(ctx, s.refreshKey(subjectID, token))
}

// DeletePair removes one access record and one refresh record. With atomic
// writes both DELs run in one transaction; otherwise both are attempted and
// their errors joined.
//
// A refresh token that is not a valid key segment cannot have a record, since
// SaveRefresh rejects it, so only the access record is deleted.
func (s *Store) DeletePair(ctx context.Context, subjectID, sessionID, refreshToken string) error {
	if err := validSegments(subjectID, sessionID); err != nil {
		return err
	}
	keys := []string{s.accessKey(subjectID, sessionID)}
	if validSegments(refreshToken) == nil {
		keys = append(keys, s.refreshKey(subjectID, refreshToken))
	}

	if s.atomicWrites {
		_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, key := range keys {
				pipe.Del(ctx, key)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	var errs []error
	for _, key := range keys {
		if _, err := s.del(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DeleteSubject removes every access and refresh record of subjectID and
// returns the number of keys deleted.
//
// ATOMICITY NOTE: keys are found with SCAN and deleted batch by batch. A login
// that lands mid-scan may survive.
func (s *Store) DeleteSubject(ctx context.Context, subjectID string) (int, error) {
	if err := validSegments(subjectID); err != nil {
		return 0, err
	}

	total := 0
	for _, pattern := range []string{
		s.accessKey(subjectID, "*"),
		s.refreshKey(subjectID, "*"),
	} {
		n, err := s.deleteMatching(ctx, pattern)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ActiveSessions lists the session ids that still have a live access record.
func (s *Store) ActiveSessions(ctx context.Context, subjectID string) ([]string, error) {
	if err := validSegments(subjectID); err != nil {
		return nil, err
	}

	prefix := s.accessKey(subjectID, "")
	var (
		cursor uint64
		out    []string
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		for _, key := range keys {
			out = append(out, strings.TrimPrefix(key, prefix))
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

// Ping checks Redis connectivity and returns the round-trip latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

// AccessKey exposes the access key layout for diagnostics and tests.
func (s *Store) AccessKey(subjectID, sessionID string) string {
	return s.accessKey(subjectID, sessionID)
}

// RefreshKey exposes the refresh key layout for diagnostics and tests.
func (s *Store) RefreshKey(subjectID, token string) string {
	return s.refreshKey(subjectID, token)
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	val, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return val, nil
}

func (s *Store) del(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

func (s *Store) deleteMatching(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if len(keys) > 0 {
			n, err := s.redis.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (s *Store) prefix(p string) string {
	if s.keys.Namespace == "" {
		return p
	}
	return s.keys.Namespace + ":" + p
}

func (s *Store) accessKey(subjectID, sessionID string) string {
	return s.prefix(s.keys.AccessPrefix) + ":" + subjectID + ":" + sessionID
}

func (s *Store) extraKey(sessionID string) string {
	return s.prefix(s.keys.ExtraPrefix) + ":" + sessionID
}

func (s *Store) refreshKey(subjectID, token string) string {
	return s.prefix(s.keys.RefreshPrefix) + ":" + subjectID + ":" + token
}

func validSegments(segments ...string) error {
	for _, seg := range segments {
		if seg == "" || strings.ContainsAny(seg, ":*?[]\\ ") {
			return ErrInvalidKey
		}
	}
	return nil
}
