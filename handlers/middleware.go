package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campusface/enrollbackend/repository"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// UserContextKey is the key used to store the authenticated operator in the
// request context
const UserContextKey ContextKey = "user"

// AuthMiddleware verifies the bearer token and, if valid, fetches the
// operator and adds them to the request context
func AuthMiddleware(userRepo repository.UserRepositoryInterface, jwtSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "authorization header required")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "authorization header format must be Bearer {token}")
				return
			}

			claims := &jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return jwtSecret, nil
			})
			if err != nil || !token.Valid {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			var userID uint
			if _, err := fmt.Sscan(claims.Subject, &userID); err != nil {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "invalid token subject")
				return
			}

			user, err := userRepo.GetByID(userID)
			if err != nil {
				// the account may have been deleted after the token was issued
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "user not found")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
