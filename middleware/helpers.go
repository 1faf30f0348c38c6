package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

func GetRoleFromContext(ctx context.Context) (string, error) {
	claims, ok := ctx.Value(claimsContextKey).(jwt.MapClaims)
	if !ok {
		return "", errors.New("claims not found in context or invalid type")
	}

	roleClaim, ok := claims[jwtClaimRole]
	if !ok {
		return "", fmt.Errorf("missing '%s' claim in token", jwtClaimRole)
	}
	role, ok := roleClaim.(string)
	if !ok {
		return "", fmt.Errorf("invalid type for '%s' claim: expected string, got %T", jwtClaimRole, roleClaim)
	}
	return role, nil
}

func GetSubjectFromContext(ctx context.Context) (string, error) {
	claims, ok := ctx.Value(claimsContextKey).(jwt.MapClaims)
	if !ok {
		return "", errors.New("claims not found in context or invalid type")
	}
	sub, ok := claims[jwtClaimSubject].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("missing '%s' claim in token", jwtClaimSubject)
	}
	return sub, nil
}
