package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	goContacts "github.com/MrEthical07/goContacts"
)

// Limiter counts one request for key. It returns an error wrapping
// goContacts.ErrRateLimited when the budget is spent. Other errors let the
// request through.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// KeyFunc picks the budget a request is charged to. Returning false skips
// limiting.
type KeyFunc func(r *http.Request) (string, bool)

// PrincipalKey charges the authenticated principal. Use it behind
// [RequireUser].
func PrincipalKey(r *http.Request) (string, bool) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		return "", false
	}
	return strconv.FormatInt(p.ID, 10), true
}

// RateLimit answers 429 once limiter reports the key's budget spent.
func RateLimit(limiter Limiter, key KeyFunc) func(http.Handler) http.Handler {
	if key == nil {
		key = PrincipalKey
	}
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k, ok := key(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			if err := limiter.Allow(r.Context(), k); errors.Is(err, goContacts.ErrRateLimited) {
				writeDetail(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
