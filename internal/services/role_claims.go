package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"storefront/internal/models"
)

// RoleClaims issues short-lived signed {email, role} tokens that let a
// visitor skip the backend role lookup while the claim is fresh.
type RoleClaims struct {
	secretKey []byte
	ttl       time.Duration
	logger    zerolog.Logger
}

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func NewRoleClaims(secretKey []byte, ttl time.Duration, logger zerolog.Logger) *RoleClaims {
	return &RoleClaims{
		secretKey: secretKey,
		ttl:       ttl,
		logger:    logger,
	}
}

func (s *RoleClaims) Issue(email string, role models.Role) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		Role:  string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error signing role claim")
		return "", err
	}
	return tokenString, nil
}

// Verify returns the role carried by tokenString and when it was issued,
// when the token is valid and was issued for email.
func (s *RoleClaims) Verify(tokenString, email string) (models.Role, time.Time, bool) {
	if tokenString == "" || email == "" {
		return "", time.Time{}, false
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secretKey, nil
	})
	if err != nil || !token.Valid {
		return "", time.Time{}, false
	}
	if claims.Email != email || claims.IssuedAt == nil {
		return "", time.Time{}, false
	}
	role := models.Role(claims.Role)
	if !role.Valid() {
		return "", time.Time{}, false
	}
	return role, claims.IssuedAt.Time, true
}
