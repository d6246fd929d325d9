// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"inkpost/internal/authz"
	"inkpost/internal/models"
	"inkpost/internal/session"
	"inkpost/internal/token"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// PrincipalKey is the context key for the authenticated principal.
	PrincipalKey contextKey = "principal"
)

// Principal is the caller behind a verified bearer credential.
type Principal struct {
	User   *models.User
	Claims *token.Claims
}

// TokenParser verifies a bearer credential.
type TokenParser interface {
	Parse(tokenStr string) (*token.Claims, error)
}

// Ledger reports whether a credential is still live.
type Ledger interface {
	Get(ctx context.Context, id string) (*session.Data, error)
}

// UserFinder loads the account a credential was issued to.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// Authenticate resolves the bearer credential into a Principal stored in
// the request context. Requests without a credential pass through as
// guests. A credential that fails verification, was revoked, or belongs
// to a deleted account is answered with 401 so clients drop it.
func Authenticate(tokens TokenParser, ledger Ledger, users UserFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.Parse(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}

			live, err := ledger.Get(r.Context(), claims.ID)
			if err != nil {
				slog.Error("session lookup failed", "error", err)
				writeError(w, http.StatusInternalServerError, "Server error.")
				return
			}
			if live == nil {
				writeError(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}

			uid, err := uuid.Parse(claims.UserID)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}
			user, err := users.FindByID(r.Context(), uid)
			if err != nil {
				slog.Error("principal lookup failed", "error", err, "user_id", uid)
				writeError(w, http.StatusInternalServerError, "Server error.")
				return
			}
			if user == nil {
				writeError(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}

			ctx := WithPrincipal(r.Context(), &Principal{User: user, Claims: claims})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth answers 401 for guests.
// Must be applied after Authenticate in the middleware chain.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromCtx(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole answers 401 for guests and 403 for principals whose role is
// not among roles.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromCtx(r.Context())
			if p == nil {
				writeError(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}
			if !authz.Allows(p.User.Role, roles) {
				writeError(w, http.StatusForbidden, "This action is unauthorized.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFromCtx extracts the principal from the request context.
// Returns nil for guests.
func PrincipalFromCtx(ctx context.Context) *Principal {
	p, _ := ctx.Value(PrincipalKey).(*Principal)
	return p
}

// UserFromCtx returns the authenticated user, or nil for guests.
func UserFromCtx(ctx context.Context) *models.User {
	if p := PrincipalFromCtx(ctx); p != nil {
		return p.User
	}
	return nil
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}
