package session

import "errors"

var (
	// ErrUnauthenticated is the only credential failure surfaced by [Resolver].
	ErrUnauthenticated = errors.New("could not validate credentials")
	// ErrPrincipalNotFound is returned by a [PrincipalFinder] for an unknown email.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrUserStoreUnavailable wraps backend failures of the persistent store.
	ErrUserStoreUnavailable = errors.New("user store unavailable")
	// ErrCacheMiss is returned by [Cache.Get] when the key is absent.
	ErrCacheMiss = errors.New("cache miss")
	// ErrRedisUnavailable wraps transport failures of [RedisCache].
	ErrRedisUnavailable = errors.New("redis unavailable")
)
