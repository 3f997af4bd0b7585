package middleware

import (
	"context"
	"net/http"
	"strings"

	"clinical-consent/internal/ports/auth"
)

type ctxKey string

const claimsKey ctxKey = "claims"

const (
	DebugUserHeader = "X-Debug-User-ID"
	DebugRoleHeader = "X-Debug-Role"
)

// AuthContext:
// - Si verifier != nil y viene Bearer token => Verify() y setea claims.
// - Si verifier == nil => modo dev: X-Debug-User-ID + X-Debug-Role.
// - Sin claims el request sigue; cada handler decide 401/403.
func AuthContext(verifier auth.AuthVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				uid := strings.TrimSpace(r.Header.Get(DebugUserHeader))
				if uid == "" {
					next.ServeHTTP(w, r)
					return
				}
				claims := auth.Claims{
					UserID: uid,
					Role:   auth.ParseRole(r.Header.Get(DebugRoleHeader)),
				}
				next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
				return
			}

			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func WithClaims(ctx context.Context, c auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func GetClaims(ctx context.Context) (auth.Claims, bool) {
	v := ctx.Value(claimsKey)
	if v == nil {
		return auth.Claims{}, false
	}
	c, ok := v.(auth.Claims)
	return c, ok
}

func bearerToken(authHeader string) string {
	if strings.TrimSpace(authHeader) == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
