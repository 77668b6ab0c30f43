package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/natours/natours-api/internal/apperror"
	"github.com/natours/natours-api/internal/httputil"
	"github.com/natours/natours-api/internal/user"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const principalContextKey ContextKey = "principal"

// Middleware guards protected routes: it resolves a session token to a
// principal and authorizes by role.
type Middleware struct {
	tokens TokenService
	users  UserStore
}

func NewMiddleware(tokens TokenService, users UserStore) *Middleware {
	return &Middleware{tokens: tokens, users: users}
}

// Protect rejects the request unless a valid session token resolves to an
// existing user whose password has not changed since the token was issued.
// The principal is attached to the request context on success.
func (m *Middleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := m.resolvePrincipal(r)
		if err != nil {
			httputil.RespondError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
	})
}

// IsLoggedIn is the soft variant of Protect: the same chain, but every
// failure is a silent no-op and the request continues anonymously.
func (m *Middleware) IsLoggedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := m.resolvePrincipal(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
	})
}

// RestrictTo authorizes the already-attached principal against an allowed
// role set. Must run after Protect.
func (m *Middleware) RestrictTo(roles ...string) func(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httputil.RespondError(w, apperror.Unauthorized("You are not logged in! Please log in to get access."))
				return
			}
			if !allowed[principal.Role] {
				httputil.RespondError(w, apperror.Forbidden("You do not have permission to perform this action"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// resolvePrincipal runs the extract -> verify -> resolve -> freshness chain.
func (m *Middleware) resolvePrincipal(r *http.Request) (*user.User, error) {
	token := extractToken(r)
	if token == "" {
		return nil, apperror.Unauthorized("You are not logged in! Please log in to get access.")
	}

	claims, err := m.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return nil, apperror.Unauthorized("Your token has expired! Please log in again.")
		}
		return nil, apperror.Unauthorized("Invalid token. Please log in again!")
	}

	principal, err := m.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, apperror.Unauthorized("The user belonging to this token no longer exists.")
		}
		return nil, err
	}

	if principal.ChangedPasswordAfter(claims.IssuedAt) {
		return nil, apperror.Unauthorized("User recently changed password! Please log in again.")
	}

	return principal, nil
}

// extractToken looks for a bearer token in the Authorization header first,
// then falls back to the session cookie.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	token, err := GetTokenFromCookie(r)
	if err != nil {
		return ""
	}
	return token
}

func withPrincipal(ctx context.Context, principal *user.User) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated user from the request context.
func PrincipalFromContext(ctx context.Context) (*user.User, bool) {
	principal, ok := ctx.Value(principalContextKey).(*user.User)
	return principal, ok
}
