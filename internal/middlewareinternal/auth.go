package middlewareinternal

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Evgen-Mutagen/payments-backend/internal/core"
	"github.com/Evgen-Mutagen/payments-backend/internal/types"
	"github.com/Evgen-Mutagen/payments-backend/internal/util/logger"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

var errNoBearer = errors.New("missing bearer token")

// JWTAuthMiddleware rejects requests without a valid bearer token and puts
// the caller id into the request context.
func JWTAuthMiddleware(tokens core.TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := extractToken(r)
			if err != nil {
				logger.Log.Debug("Failed to extract token",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				unauthorized(w, r)
				return
			}

			userID, err := tokens.ValidateToken(tokenString)
			if err != nil {
				logger.Log.Warn("Invalid token",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				unauthorized(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), types.UserIDKey, userID)
			logger.Log.Debug("User authenticated",
				zap.String("user_id", userID),
				zap.String("path", r.URL.Path))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errNoBearer
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", errNoBearer
	}

	return token, nil
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, map[string]string{"message": "Unauthorized"})
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(types.UserIDKey).(string)
	return userID, ok && userID != ""
}
