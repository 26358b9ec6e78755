package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TenantClaims is the subset of the hosted auth token this service relies on
type TenantClaims struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens issued by the hosted auth service
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for HMAC-signed tokens
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Enabled reports whether a signing secret is configured
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// ValidateToken validates and parses a token, returning its tenant claims
func (v *Verifier) ValidateToken(tokenString string) (*TenantClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TenantClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*TenantClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.CompanyID == "" {
		return nil, errors.New("token carries no company_id")
	}
	return claims, nil
}

// GenerateToken signs a token for the given tenant. Used by tests and local tooling.
func (v *Verifier) GenerateToken(userID, companyID string, ttl time.Duration) (string, error) {
	claims := &TenantClaims{
		UserID:    userID,
		CompanyID: companyID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
