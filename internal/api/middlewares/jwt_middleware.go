package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/markdave123-py/docingest/internal/models"
	"github.com/markdave123-py/docingest/pkg/logger"
)

var log = logger.NewLogger("middleware")

type ownerKey struct{}

// OwnerFromContext returns the authenticated owner, or the anonymous owner.
func OwnerFromContext(ctx context.Context) models.Owner {
	o, _ := ctx.Value(ownerKey{}).(models.Owner)
	return o
}

func WithOwner(ctx context.Context, o models.Owner) context.Context {
	return context.WithValue(ctx, ownerKey{}, o)
}

// OptionalJWT attaches the token's user_id and email claims as the request
// owner. Requests without a token go through anonymously; a token that is
// present but invalid is rejected. With an empty secret every request is
// anonymous.
func OptionalJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if secret == "" || auth == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing or invalid token", http.StatusUnauthorized)
				return
			}

			owner, err := parseOwner(strings.TrimPrefix(auth, "Bearer "), secret)
			if err != nil {
				log.Warn("rejected token", "error", err, "remote", r.RemoteAddr)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
		})
	}
}

func parseOwner(tokenStr, secret string) (models.Owner, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Owner{}, err
	}
	if !token.Valid {
		return models.Owner{}, fmt.Errorf("token not valid")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return models.Owner{}, fmt.Errorf("invalid token claims")
	}
	email, _ := claims["email"].(string)
	return models.Owner{ID: userID, Email: email}, nil
}
