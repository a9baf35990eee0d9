// Package auth validates principal credentials. Token issuance lives in the
// external identity service; the sync core only verifies signatures and
// reconstructs the principal from claims. GenerateToken exists for tests
// and local development.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/internhub/internhub/internal/models"
)

// Claims are the JWT claims carrying the principal.
type Claims struct {
	UserID        string `json:"user_id"`
	Role          string `json:"role"`
	InstitutionID string `json:"institution_id,omitempty"`
	DepartmentID  string `json:"department_id,omitempty"`
	jwt.RegisteredClaims
}

// Config holds the verification key and, for locally issued tokens, the TTL.
type Config struct {
	Secret   []byte
	TokenTTL time.Duration
}

// GenerateToken creates a signed token for a principal.
func GenerateToken(cfg Config, principal models.Principal) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID:        principal.UserID,
		Role:          string(principal.Role),
		InstitutionID: principal.InstitutionID,
		DepartmentID:  principal.DepartmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "internhub",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken verifies a token and reconstructs the principal.
func ValidateToken(cfg Config, tokenString string) (models.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.Secret, nil
	})
	if err != nil {
		return models.Principal{}, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return models.Principal{}, fmt.Errorf("invalid token claims")
	}

	principal := models.Principal{
		UserID:        claims.UserID,
		Role:          models.Role(claims.Role),
		InstitutionID: claims.InstitutionID,
		DepartmentID:  claims.DepartmentID,
	}

	switch principal.Role {
	case models.RoleStudent, models.RoleSupervisor, models.RoleInstitutionAdmin, models.RoleSystemAdmin:
	default:
		return models.Principal{}, fmt.Errorf("unknown role %q", claims.Role)
	}

	return principal, nil
}
