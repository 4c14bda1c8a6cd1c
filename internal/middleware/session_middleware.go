package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Phannhothinh/chatbot-op/internal/auth"
	"github.com/Phannhothinh/chatbot-op/internal/utils"
)

// ContextKey defines the type for context keys to avoid conflicts
type ContextKey string

const (
	// SessionClaimsKey is the context key for the verified session
	SessionClaimsKey ContextKey = "sessionClaims"

	// SessionTokenKey is the context key for the raw session token
	SessionTokenKey ContextKey = "sessionToken"
)

// SessionVerifier validates a raw session token
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (*auth.SessionClaims, error)
}

// TokensFromRequest returns the candidate session tokens in the order they
// are tried: the named cookie, then an "Authorization: Bearer" header.
func TokensFromRequest(r *http.Request, cookieName string) []string {
	var tokens []string
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		tokens = append(tokens, cookie.Value)
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		bearer := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if bearer != "" && (len(tokens) == 0 || tokens[0] != bearer) {
			tokens = append(tokens, bearer)
		}
	}
	return tokens
}

// SessionMiddleware rejects requests without a valid session with 401 and
// places the session claims in the request context. A stale cookie does not
// shadow a valid bearer token.
func SessionMiddleware(verifier SessionVerifier, cookieName string) func(http.Handler) http.Handler {
	logger := utils.NewLogger("session")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, token := range TokensFromRequest(r, cookieName) {
				claims, err := verifier.Verify(r.Context(), token)
				if err != nil {
					if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrSessionRevoked) {
						logger.Error("Session verification failed", "path", r.URL.Path, "error", err)
					}
					continue
				}

				ctx := WithSession(r.Context(), claims, token)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		})
	}
}

// WithSession stores the session in ctx
func WithSession(ctx context.Context, claims *auth.SessionClaims, token string) context.Context {
	ctx = context.WithValue(ctx, SessionClaimsKey, claims)
	return context.WithValue(ctx, SessionTokenKey, token)
}

// GetSession retrieves the session claims from the request context
func GetSession(ctx context.Context) (*auth.SessionClaims, bool) {
	claims, ok := ctx.Value(SessionClaimsKey).(*auth.SessionClaims)
	return claims, ok && claims != nil
}
