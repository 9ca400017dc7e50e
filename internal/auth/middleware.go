package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bher20/fuelkl/internal/logger"
	"github.com/bher20/fuelkl/internal/storage"
)

type contextKey string

const TokenContextKey contextKey = "token"

// TokenFromContext returns the token Middleware attached to ctx.
func TokenFromContext(ctx context.Context) (*storage.APIToken, bool) {
	t, ok := ctx.Value(TokenContextKey).(*storage.APIToken)
	return t, ok && t != nil
}

// Middleware validates an `Authorization: Bearer` header when present.
// Requests without the header pass through unauthenticated; RequirePermission
// rejects them where a token is needed.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		scheme, value, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || value == "" {
			http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
			return
		}

		token, err := s.ValidateToken(r.Context(), strings.TrimSpace(value))
		if err != nil {
			if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrTokenExpired) {
				logger.WithModule("auth").Errorf("validate token: %v", err)
			}
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), TokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission lets the request through only when the token's role
// may perform act on obj.
func (s *Service) RequirePermission(obj, act string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := TokenFromContext(r.Context())
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="fuelkl"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		allowed, err := s.Enforce(token.Role, obj, act)
		if err != nil {
			logger.WithModule("auth").Errorf("enforce %s %s/%s: %v", token.Role, obj, act, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if !allowed {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Guard is Middleware followed by RequirePermission.
func (s *Service) Guard(obj, act string, next http.Handler) http.Handler {
	return s.Middleware(s.RequirePermission(obj, act, next))
}
