// Package jwttoken verifies bearer tokens for principal resolution. Tokens are
// HS256-signed; issuance belongs to the identity collaborator, and Sign exists
// for that collaborator and for tests.
package jwttoken

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "diyetlenio/pkg/domain-errors"
	"diyetlenio/pkg/requestcontext"
)

// Claims are the access-token claims the gateway relies on.
type Claims struct {
	Scope []string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

type JWTService struct {
	signingKey []byte
	issuer     string
}

// NewJWTService creates a service. An empty issuer accepts any issuer.
func NewJWTService(signingKey, issuer string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// Sign issues a token for subject valid for ttl from the request time.
func (s *JWTService) Sign(ctx context.Context, subject string, ttl time.Duration, scopes ...string) (string, error) {
	now := requestcontext.Now(ctx)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Scope: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken verifies signature, algorithm, expiry and issuer and returns
// the claims. Every failure is an Authentication error.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.Wrap(err, dErrors.KindAuthentication, "Token has expired")
		}
		return nil, dErrors.Wrap(err, dErrors.KindAuthentication, "Invalid token")
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, dErrors.Authentication("Invalid token")
	}
	return claims, nil
}

// Subject validates tokenString and returns its subject.
func (s *JWTService) Subject(tokenString string) (string, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
