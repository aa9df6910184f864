package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Operator roles.
const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Token is a signed operator access token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Claims represents the operator JWT payload.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs an operator access token.
func Issue(subject, name, role, issuer, key string, ttl time.Duration) (Token, error) {
	if subject == "" {
		return Token{}, errors.New("subject required")
	}
	if role == "" {
		role = RoleTeacher
	}
	now := time.Now()
	exp := now.Add(ttl)

	claims := Claims{
		Subject: subject,
		Role:    role,
		Name:    name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}
