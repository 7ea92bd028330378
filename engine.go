package goContacts

import (
	"context"
	"errors"
	"fmt"
	"time"

	internalaudit "github.com/MrEthical07/goContacts/internal/audit"
	"github.com/MrEthical07/goContacts/internal/logging"
	"github.com/MrEthical07/goContacts/internal/rate"
	"github.com/MrEthical07/goContacts/jwt"
	"github.com/MrEthical07/goContacts/password"
	"github.com/MrEthical07/goContacts/session"
	"github.com/redis/go-redis/v9"
)

// Engine runs every account and contact operation. It is safe for
// concurrent use once built.
type Engine struct {
	config   Config
	tokens   *jwt.Manager
	resolver *session.Resolver
	redis    redis.UniversalClient
	limiter  *rate.Limiter
	hasher   password.Hasher

	users    UserStore
	contacts ContactStore
	avatars  AvatarStore
	mailer   Mailer

	audit   *internalaudit.Dispatcher
	metrics *Metrics
	log     logging.Logger

	now           func() time.Time
	defaultAvatar func(email string) string
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Tokens exposes the token service, e.g. for tooling that mints test tokens.
func (e *Engine) Tokens() *jwt.Manager {
	return e.tokens
}

// AuditDropped reports events discarded because the audit buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current counters and resolve latency histogram.
// The maps are empty when metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) resolverHooks() session.Hooks {
	return session.Hooks{
		OnCacheHit:  func() { e.metricInc(MetricCacheHit) },
		OnCacheMiss: func() { e.metricInc(MetricCacheMiss) },
		OnCacheError: func(op string, err error) {
			e.metricInc(MetricCacheError)
			e.log.Warn(context.Background(), "principal cache degraded", "op", op, "error", err)
		},
	}
}

// invalidate drops the cached principal after a write. A failure is logged;
// the entry then expires on its own.
func (e *Engine) invalidate(ctx context.Context, email string) {
	if err := e.resolver.Invalidate(ctx, email); err != nil {
		e.metricInc(MetricCacheError)
		e.log.Warn(ctx, "principal cache invalidation failed", "email", email, "error", err)
	}
}

// Health pings the user store and, when configured, Redis.
func (e *Engine) Health(ctx context.Context) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}
	if err := e.users.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUserStoreUnavailable, err)
	}
	if e.redis != nil {
		if err := e.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("%w: %v", rate.ErrRedisUnavailable, err)
		}
	}
	return nil
}

func storeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUserStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUserStoreUnavailable, err)
}
