package goContacts

import (
	"errors"
	"fmt"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/goContacts/internal/audit"
	"github.com/MrEthical07/goContacts/internal/logging"
	"github.com/MrEthical07/goContacts/internal/rate"
	"github.com/MrEthical07/goContacts/jwt"
	"github.com/MrEthical07/goContacts/password"
	"github.com/MrEthical07/goContacts/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder can be built only once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users    UserStore
	contacts ContactStore
	avatars  AvatarStore
	mailer   Mailer

	auditSink     AuditSink
	log           logging.Logger
	defaultAvatar func(email string) string
	now           func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables the principal cache and the rate limiters. Without it
// both are disabled.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(s UserStore) *Builder {
	b.users = s
	return b
}

func (b *Builder) WithContactStore(s ContactStore) *Builder {
	b.contacts = s
	return b
}

func (b *Builder) WithAvatarStore(s AvatarStore) *Builder {
	b.avatars = s
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink replaces the default sink, which logs events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(log logging.Logger) *Builder {
	b.log = log
	return b
}

// WithDefaultAvatar sets the avatar URL assigned at signup.
func (b *Builder) WithDefaultAvatar(fn func(email string) string) *Builder {
	b.defaultAvatar = fn
	return b
}

// WithClock overrides time.Now, mostly for birthday tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.contacts == nil {
		return nil, errors.New("contact store required")
	}

	tokens, err := jwt.NewManager(jwtManagerConfig(cfg.JWT))
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	argon, err := password.NewArgon2(cfg.Password.argon2())
	if err != nil {
		return nil, err
	}
	legacy, err := password.NewBcrypt(cfg.Password.BcryptCost)
	if err != nil {
		return nil, err
	}

	log := b.log
	if log == nil {
		log = logging.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		config:        cfg,
		tokens:        tokens,
		redis:         b.redis,
		hasher:        password.NewChain(argon, legacy),
		users:         b.users,
		contacts:      b.contacts,
		avatars:       b.avatars,
		mailer:        b.mailer,
		metrics:       NewMetrics(cfg.Metrics),
		log:           log.With("component", "engine"),
		now:           now,
		defaultAvatar: b.defaultAvatar,
	}

	var cache session.Cache = session.NopCache{}
	if b.redis != nil && cfg.Cache.Enabled {
		cache = session.NewRedisCache(b.redis)
	}
	e.resolver = session.NewResolver(tokens, cache, b.users,
		session.WithKeyPrefix(cfg.Cache.KeyPrefix),
		session.WithCacheTTL(cfg.Cache.TTL),
		session.WithHooks(e.resolverHooks()),
	)

	var limiterClient redis.UniversalClient
	if cfg.RateLimit.Enabled {
		limiterClient = b.redis
	}
	e.limiter = rate.New(limiterClient, rate.Config{
		EnableIPThrottle: cfg.RateLimit.EnableIPThrottle,
		MaxLoginAttempts: cfg.RateLimit.MaxLoginAttempts,
		LoginCooldown:    cfg.RateLimit.LoginCooldown,
	})

	sink := b.auditSink
	if sink == nil {
		sink = NewLoggerSink(log)
	}
	e.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		MaxBatch:   cfg.Audit.MaxBatch,
	}, sink)

	b.built = true
	return e, nil
}

func jwtManagerConfig(c JWTConfig) jwt.Config {
	out := jwt.Config{
		AccessTTL:                 c.AccessTTL,
		RefreshTTL:                c.RefreshTTL,
		EmailTTL:                  c.EmailTTL,
		SigningMethod:             jwt.SigningMethod(strings.ToLower(c.SigningMethod)),
		Issuer:                    c.Issuer,
		Audience:                  c.Audience,
		Leeway:                    c.Leeway,
		KeyID:                     c.KeyID,
		AcceptUnscopedEmailTokens: c.AcceptUnscopedEmailTokens,
	}
	if out.SigningMethod == jwt.MethodEd25519 {
		out.PrivateKey = []byte(c.PrivateKeyPEM)
		out.PublicKey = []byte(c.PublicKeyPEM)
	} else {
		out.PrivateKey = []byte(c.SecretKey)
	}
	return out
}
