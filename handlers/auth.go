package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campusface/enrollbackend/models"
	"github.com/campusface/enrollbackend/repository"
)

const jwtExpirationHours = 24

// AuthHandler issues and validates operator sessions. Operator accounts gate
// everything except login and first-run setup.
type AuthHandler struct {
	UserRepo  repository.UserRepositoryInterface
	JWTSecret []byte
}

func NewAuthHandler(userRepo repository.UserRepositoryInterface, jwtSecret []byte) *AuthHandler {
	return &AuthHandler{UserRepo: userRepo, JWTSecret: jwtSecret}
}

type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"is_admin"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "invalid request payload")
		return
	}

	user, err := h.UserRepo.GetByUsername(payload.Username)
	if err != nil {
		WriteAPIError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
		return
	}
	if !user.CheckPassword(payload.Password) {
		WriteAPIError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
		return
	}

	expirationTime := time.Now().Add(jwtExpirationHours * time.Hour)
	claims := &jwt.RegisteredClaims{
		Subject:   fmt.Sprint(user.ID),
		ExpiresAt: jwt.NewNumericDate(expirationTime),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		Issuer:    "enrollbackend",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(h.JWTSecret)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "token_error", "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     tokenString,
		Username:  user.Username,
		IsAdmin:   user.IsAdmin,
		ExpiresAt: expirationTime,
	})
}

type SetupPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Setup creates the first admin account. It only works while no operator
// accounts exist; after that, account management is an admin concern.
func (h *AuthHandler) Setup(w http.ResponseWriter, r *http.Request) {
	count, err := h.UserRepo.CountAll()
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "failed to check existing accounts")
		return
	}
	if count > 0 {
		WriteAPIError(w, http.StatusForbidden, "already_configured", "an operator account already exists")
		return
	}

	var payload SetupPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "invalid request payload")
		return
	}
	if payload.Username == "" || len(payload.Password) < 8 {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "username required and password must be at least 8 characters")
		return
	}

	user := &models.User{Username: payload.Username, IsAdmin: true}
	if err := user.SetPassword(payload.Password); err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "hash_error", "failed to hash password")
		return
	}
	if err := h.UserRepo.Create(user); err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "failed to create account")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"username": user.Username,
		"is_admin": user.IsAdmin,
	})
}
