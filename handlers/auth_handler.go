package handlers

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Dosada05/trust-tournament/middleware"
	"github.com/golang-jwt/jwt/v4"
)

const operatorTokenTTL = 12 * time.Hour

type AuthHandler struct {
	jwtSecret   []byte
	operatorKey []byte
	now         func() time.Time
	responder
}

func NewAuthHandler(jwtSecret, operatorKey string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		jwtSecret:   []byte(jwtSecret),
		operatorKey: []byte(operatorKey),
		now:         time.Now,
		responder:   newResponder(logger),
	}
}

type operatorTokenInput struct {
	OperatorKey string `json:"operator_key"`
	Name        string `json:"name"`
}

// OperatorToken обменивает общий ключ оператора на JWT.
func (h *AuthHandler) OperatorToken(w http.ResponseWriter, r *http.Request) {
	var input operatorTokenInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if input.OperatorKey == "" {
		h.badRequestResponse(w, r, errors.New("operator_key is required"))
		return
	}
	if len(h.operatorKey) == 0 || subtle.ConstantTimeCompare([]byte(input.OperatorKey), h.operatorKey) != 1 {
		h.logger.Warn("rejected operator token request", slog.String("remote", r.RemoteAddr))
		h.unauthorizedResponse(w, r, "invalid operator key")
		return
	}

	name := input.Name
	if name == "" {
		name = "operator"
	}
	now := h.now()
	expiresAt := now.Add(operatorTokenTTL)
	claims := jwt.MapClaims{
		"sub":  name,
		"role": middleware.RoleOperator,
		"exp":  expiresAt.Unix(),
		"iat":  now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(h.jwtSecret)
	if err != nil {
		h.serverErrorResponse(w, r, fmt.Errorf("failed to sign token: %w", err))
		return
	}

	h.writeOK(w, r, http.StatusOK, jsonResponse{"token": tokenString, "expires_at": expiresAt.UTC()})
}
