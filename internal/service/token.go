package service

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-iot-backend/internal/model"
	"go-iot-backend/pkg/apierror"
)

// TokenTTL is the fixed lifetime of every access token. A role change only
// reaches a user after their current token expires.
const TokenTTL = time.Hour

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (s *AuthService) issueToken(user model.User) (string, time.Time, error) {
	now := s.now().UTC()
	expiresAt := now.Add(TokenTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken checks signature, algorithm and expiry. It never touches the
// database, so it is safe to call on every request in parallel.
func (s *AuthService) ValidateToken(tokenString string) (*model.AuthClaims, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(_ *jwt.Token) (any, error) { return s.jwtSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, apierror.Unauthenticated("token expired")
	}
	if err != nil || !parsed.Valid {
		return nil, apierror.Unauthenticated("invalid token")
	}

	if claims.Subject == "" || claims.Role == "" {
		return nil, apierror.Unauthenticated("invalid token claims")
	}

	out := &model.AuthClaims{
		UserID:  claims.Subject,
		Role:    model.Role(claims.Role),
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// Authorize is the route gate: a missing, forged or expired token is
// Unauthenticated (401); a valid token whose role is outside allowed is
// Forbidden (403).
func (s *AuthService) Authorize(tokenString string, allowed []model.Role) (*model.AuthClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, apierror.Unauthenticated("missing bearer token")
	}

	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	if !claims.Role.Valid() || !slices.Contains(allowed, claims.Role) {
		return nil, apierror.Forbidden("insufficient permissions")
	}

	return claims, nil
}
