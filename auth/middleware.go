package auth

import (
	"context"
	"groupchat/domain"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

type contextKey string

const identityKey contextKey = "identity"

// FailureWriter renders an authentication failure.
type FailureWriter func(w http.ResponseWriter, r *http.Request, err error)

// TokenFromRequest reads the bearer token from the Authorization header.
// Browsers cannot set headers on a websocket handshake, so the token query
// parameter is accepted as well.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects the request before any handler runs unless it carries a
// valid bearer token, and injects the resulting identity into the context.
func (t *TokenIssuer) Middleware(fail FailureWriter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := t.Verify(TokenFromRequest(r))
			if err != nil {
				fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom returns the identity injected by Middleware.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	return identity, ok
}
