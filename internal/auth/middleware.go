package auth

import (
	"context"
	"errors"
	"net/http"

	"wifihub/internal/logger"
	"wifihub/internal/utils"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	claimsKey contextKey = "claims"
)

const MsgUnauthorized = "Sesi tidak valid, silakan login kembali"

// Middleware attaches the authenticated user to the request context when a
// valid token is present. Requests without a token pass through; requests
// with a bad token are rejected.
func Middleware(tm *TokenManager, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := ExtractTokenFromRequest(r)
			if errors.Is(err, ErrMissingToken) {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				unauthorized(w)
				return
			}

			claims, err := tm.Parse(r.Context(), raw)
			if err != nil {
				log.LogSecurity("AUTH", err.Error())
				unauthorized(w)
				return
			}

			id, _ := claims.UserID()
			ctx := context.WithValue(r.Context(), userIDKey, id)
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests that Middleware did not authenticate.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserID(r.Context()); !ok {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	_ = utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse(MsgUnauthorized))
}

// UserID returns the authenticated user id, if any.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

// ClaimsFrom returns the verified token claims, if any.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

// WithUserID is used by tests and internal callers to impersonate a user.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}
