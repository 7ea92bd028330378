package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	goContacts "github.com/MrEthical07/goContacts"
	"github.com/MrEthical07/goContacts/session"
)

// PrincipalResolver turns an access token into the calling principal.
// *goContacts.Engine satisfies it.
type PrincipalResolver interface {
	CurrentUser(ctx context.Context, accessToken string) (*session.Principal, error)
}

type principalContextKey struct{}

// PrincipalFromContext returns the principal stored by [RequireUser].
func PrincipalFromContext(ctx context.Context) (*session.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*session.Principal)
	return p, ok && p != nil
}

// WithPrincipal stores p in ctx the way [RequireUser] does.
func WithPrincipal(ctx context.Context, p *session.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// RequireUser rejects requests without a resolvable bearer token. Token
// failures answer 401 with a Bearer challenge; a user store outage
// answers 503.
func RequireUser(resolver PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil {
				unauthorized(w)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			p, err := resolver.CurrentUser(r.Context(), token)
			if err != nil {
				if errors.Is(err, goContacts.ErrUserStoreUnavailable) {
					writeDetail(w, http.StatusServiceUnavailable, "service unavailable")
					return
				}
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeDetail(w, http.StatusUnauthorized, goContacts.ErrUnauthenticated.Error())
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
