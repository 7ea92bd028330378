package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultKeyPrefix prefixes every cache key, giving "user:<email>".
	DefaultKeyPrefix = "user:"
	// DefaultCacheTTL bounds how stale a cached principal can be.
	DefaultCacheTTL = 900 * time.Second
)

// TokenValidator extracts the subject email from an access token.
type TokenValidator interface {
	ValidateAccess(token string) (string, error)
}

// PrincipalFinder loads a principal from the persistent store. It returns
// [ErrPrincipalNotFound] when no user has the email.
type PrincipalFinder interface {
	FindByEmail(ctx context.Context, email string) (*Principal, error)
}

// PrincipalFinderFunc adapts a function to [PrincipalFinder].
type PrincipalFinderFunc func(ctx context.Context, email string) (*Principal, error)

// FindByEmail implements [PrincipalFinder].
func (f PrincipalFinderFunc) FindByEmail(ctx context.Context, email string) (*Principal, error) {
	return f(ctx, email)
}

// Hooks receives cache outcomes. Nil fields are skipped.
type Hooks struct {
	OnCacheHit   func()
	OnCacheMiss  func()
	OnCacheError func(op string, err error)
}

// ResolverOption configures a [Resolver].
type ResolverOption func(*Resolver)

// WithKeyPrefix overrides [DefaultKeyPrefix].
func WithKeyPrefix(prefix string) ResolverOption {
	return func(r *Resolver) { r.prefix = prefix }
}

// WithCacheTTL overrides [DefaultCacheTTL]. Non-positive values are ignored.
func WithCacheTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithHooks installs cache outcome callbacks.
func WithHooks(h Hooks) ResolverOption {
	return func(r *Resolver) { r.hooks = h }
}

// Resolver maps an access token to its [Principal].
//
// Concurrent Resolve calls for the same uncached user may each hit the store
// and each write the cache; the last write wins and all writes carry the same
// data. Resolver holds no locks.
type Resolver struct {
	tokens TokenValidator
	cache  Cache
	users  PrincipalFinder
	prefix string
	ttl    time.Duration
	hooks  Hooks
}

// NewResolver builds a Resolver. A nil cache disables caching.
func NewResolver(tokens TokenValidator, cache Cache, users PrincipalFinder, opts ...ResolverOption) *Resolver {
	if cache == nil {
		cache = NopCache{}
	}
	r := &Resolver{
		tokens: tokens,
		cache:  cache,
		users:  users,
		prefix: DefaultKeyPrefix,
		ttl:    DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Key returns the cache key for email.
func (r *Resolver) Key(email string) string {
	return r.prefix + email
}

// TTL returns the cache entry lifetime.
func (r *Resolver) TTL() time.Duration {
	return r.ttl
}

// Resolve validates token and returns the principal it names.
//
// Every token failure and an unknown subject both yield [ErrUnauthenticated].
// Cache failures degrade to store reads. Store failures other than
// [ErrPrincipalNotFound] are wrapped in [ErrUserStoreUnavailable].
func (r *Resolver) Resolve(ctx context.Context, token string) (*Principal, error) {
	email, err := r.tokens.ValidateAccess(token)
	if err != nil || email == "" {
		return nil, ErrUnauthenticated
	}

	key := r.Key(email)
	data, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		p, decErr := Decode(data)
		if decErr == nil && p.Email == email {
			r.hit()
			return p, nil
		}
		if decErr == nil {
			decErr = errors.New("cached principal email mismatch")
		}
		r.cacheError("decode", decErr)
		if delErr := r.cache.Delete(ctx, key); delErr != nil {
			r.cacheError("delete", delErr)
		}
	case !errors.Is(err, ErrCacheMiss):
		r.cacheError("get", err)
	}
	r.miss()

	p, err := r.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("%w: %v", ErrUserStoreUnavailable, err)
	}
	if p == nil {
		return nil, ErrUnauthenticated
	}

	snap := p.Snapshot()
	encoded, err := Encode(snap)
	if err != nil {
		r.cacheError("encode", err)
		return snap, nil
	}
	if err := r.cache.Set(ctx, key, encoded, r.ttl); err != nil {
		r.cacheError("set", err)
	}
	return snap, nil
}

// Invalidate drops the cached principal for email. Callers invoke it after
// any write to the user record.
func (r *Resolver) Invalidate(ctx context.Context, email string) error {
	if email == "" {
		return nil
	}
	return r.cache.Delete(ctx, r.Key(email))
}

func (r *Resolver) hit() {
	if r.hooks.OnCacheHit != nil {
		r.hooks.OnCacheHit()
	}
}

func (r *Resolver) miss() {
	if r.hooks.OnCacheMiss != nil {
		r.hooks.OnCacheMiss()
	}
}

func (r *Resolver) cacheError(op string, err error) {
	if r.hooks.OnCacheError != nil {
		r.hooks.OnCacheError(op, err)
	}
}
