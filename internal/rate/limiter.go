package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	loginPrefix   = "rl:login:"
	loginIPPrefix = "rl:login-ip:"
	requestPrefix = "rl:req:"
)

// Config holds login throttle parameters.
type Config struct {
	EnableIPThrottle bool
	MaxLoginAttempts int
	LoginCooldown    time.Duration
}

// Limiter owns every Redis-backed counter used by the engine.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter]. A nil client disables every check.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin fails with [ErrRateLimited] once the email (or IP, when enabled)
// has used up its failed-login budget. It does not count the attempt.
func (l *Limiter) CheckLogin(ctx context.Context, email, ip string) error {
	if l.disabled() || l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	for _, key := range l.loginKeys(email, ip) {
		count, err := l.redis.Get(ctx, key).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if count >= int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// RecordLoginFailure counts one failed attempt against the email and IP.
func (l *Limiter) RecordLoginFailure(ctx context.Context, email, ip string) error {
	if l.disabled() || l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	for _, key := range l.loginKeys(email, ip) {
		if _, err := l.incrementWithTTL(ctx, key, l.config.LoginCooldown); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the failed-login counters after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, email, ip string) error {
	if l.disabled() {
		return nil
	}
	if err := l.redis.Del(ctx, l.loginKeys(email, ip)...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Allow counts one request for id in bucket and fails with [ErrRateLimited]
// when more than limit requests arrived in the current window.
func (l *Limiter) Allow(ctx context.Context, bucket, id string, limit int, window time.Duration) error {
	if l.disabled() || limit <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, requestPrefix+bucket+":"+id, window)
	if err != nil {
		return err
	}
	if count > int64(limit) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) disabled() bool {
	return l == nil || l.redis == nil
}

func (l *Limiter) loginKeys(email, ip string) []string {
	keys := []string{loginPrefix + strings.ToLower(email)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, loginIPPrefix+ip)
	}
	return keys
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	// Fixed window: EXPIRE NX only arms the TTL on a key that has none, and
	// MULTI/EXEC keeps a counter from ever being left without one.
	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return incr.Val(), nil
}
