package middleware

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// HMACValidator validates HS256 bearer tokens signed with a shared key.
type HMACValidator struct {
	key []byte
}

// NewHMACValidator creates a validator for the given signing key.
func NewHMACValidator(signingKey string) *HMACValidator {
	return &HMACValidator{key: []byte(signingKey)}
}

type tokenClaims struct {
	TenantID string `json:"tenantId,omitempty"`
	jwt.RegisteredClaims
}

// ValidateToken implements JWTValidator. The subject claim is the user id; an
// optional tenantId claim scopes the request to a tenant.
func (v *HMACValidator) ValidateToken(tokenString string) (*JWTClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return &JWTClaims{UserID: claims.Subject, TenantID: claims.TenantID}, nil
}
