package middleware

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	id "verilink/pkg/domain"
)

// HMACValidator validates HS256 staff tokens minted by the auth collaborator.
type HMACValidator struct {
	signingKey []byte
}

// NewHMACValidator constructs a validator over a shared signing key.
func NewHMACValidator(signingKey string) *HMACValidator {
	return &HMACValidator{signingKey: []byte(signingKey)}
}

type staffTokenClaims struct {
	BusinessID string `json:"business_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// ValidateToken parses and verifies a staff bearer token. The subject claim
// carries the verifier ID.
func (v *HMACValidator) ValidateToken(tokenString string) (*StaffClaims, error) {
	var claims staffTokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}

	verifierID, err := id.ParseVerifierID(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("token subject: %w", err)
	}
	businessID, err := id.ParseBusinessID(claims.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("token business_id: %w", err)
	}

	return &StaffClaims{
		VerifierID: verifierID,
		BusinessID: businessID,
		Role:       claims.Role,
	}, nil
}
