package authsession

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/swipewise/authsession/internal"
	"github.com/swipewise/authsession/internal/audit"
	"github.com/swipewise/authsession/internal/flows"
	"github.com/swipewise/authsession/internal/rate"
	"github.com/swipewise/authsession/jwt"
	"github.com/swipewise/authsession/password"
	"github.com/swipewise/authsession/session"
)

// Builder assembles an Engine once. Every collaborator is created in Build
// and shared by reference afterwards; nothing is kept in package globals.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts  AccountStore
	auditSink audit.Sink
	logger    Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client shared by the session store and the limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAccounts(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithAuditSink sets where audit events go when Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(l Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides time.Now for token expiry. Tests only.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine. A Builder can be
// used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = discardLogger()
	}

	// -------- SESSION STORE --------
	keys := session.Keyspace{
		Namespace:     cfg.Session.Namespace,
		AccessPrefix:  cfg.Session.AccessPrefix,
		ExtraPrefix:   cfg.Session.ExtraPrefix,
		RefreshPrefix: cfg.Session.RefreshPrefix,
	}
	store := session.NewStore(b.redis,
		session.WithKeyspace(keys),
		session.WithAtomicWrites(cfg.Session.AtomicWrites),
	)

	// -------- TOKEN CODEC --------
	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	primary, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	legacy, err := password.NewBcrypt(cfg.Password.LegacyBcryptCost)
	if err != nil {
		return nil, err
	}
	verifier, err := password.NewVerifier(primary, legacy)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		sessionStore: store,
		jwtManager:   jm,
		passwords:    verifier,
		accounts:     b.accounts,
		logger:       logger,
		metrics:      NewMetrics(cfg.Metrics),
		now:          now,
	}
	limiterPrefix := cfg.Security.LimiterPrefix
	if cfg.Session.Namespace != "" {
		limiterPrefix = cfg.Session.Namespace + ":" + limiterPrefix
	}
	engine.rateLimiter = rate.New(b.redis, rate.Config{
		Prefix:              limiterPrefix,
		EnableIPThrottle:    cfg.Security.EnableIPThrottle,
		MaxLoginAttempts:    cfg.Security.MaxLoginAttempts,
		LoginWindow:         cfg.Security.LoginWindow,
		MaxRefreshPerWindow: cfg.Security.MaxRefreshPerWindow,
		RefreshWindow:       cfg.Security.RefreshWindow,
	})
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnError: func(ev audit.Event, err error) {
			logger.Warn(context.Background(), "audit sink failed", "event_type", ev.EventType, "error", err)
		},
	}, b.auditSink)

	issue := flows.IssueDeps{
		Sign:         jm.Sign,
		NewSessionID: internal.NewSessionID,
		Now:          now,
		AccessTTL:    cfg.JWT.AccessTTL,
		RefreshTTL:   cfg.JWT.RefreshTTL,
		VerifyWrites: cfg.Session.VerifyWrites,
		Store:        store,
	}
	engine.flows = flows.Deps{
		Issue:  issue,
		Verify: flows.VerifyDeps{Parse: jm.Parse, Store: store},
		Reissue: flows.ReissueDeps{
			Parse:     jm.Parse,
			Authorize: engine.authorizeRefresh,
			Issue:     issue,
			Store:     store,
		},
		Revoke: flows.RevokeDeps{Store: store},
	}

	b.built = true

	return engine, nil
}
