package jwtverifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clinical-consent/internal/ports/auth"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoSecret      = errors.New("jwt secret required")
	ErrInvalidClaims = errors.New("token claims missing subject or role")
)

type Config struct {
	Secret   string
	Issuer   string // opcional
	Audience string // opcional
}

// tokenClaims: sub = user id, role = patient|doctor.
type tokenClaims struct {
	jwt.RegisteredClaims
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
}

// Verifier implementa auth.AuthVerifier con JWT HS256 firmados por el IAM.
type Verifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

func New(cfg Config) (*Verifier, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, ErrNoSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if iss := strings.TrimSpace(cfg.Issuer); iss != "" {
		opts = append(opts, jwt.WithIssuer(iss))
	}
	if aud := strings.TrimSpace(cfg.Audience); aud != "" {
		opts = append(opts, jwt.WithAudience(aud))
	}

	return &Verifier{secret: []byte(secret), opts: opts}, nil
}

func (v *Verifier) Verify(_ context.Context, token string) (auth.Claims, error) {
	var c tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("jwt verify failed: %w", err)
	}
	if !parsed.Valid {
		return auth.Claims{}, errors.New("jwt verify failed: invalid token")
	}

	sub := strings.TrimSpace(c.Subject)
	role := auth.ParseRole(c.Role)
	if sub == "" || role == "" {
		return auth.Claims{}, ErrInvalidClaims
	}

	return auth.Claims{
		UserID: sub,
		Role:   role,
		Email:  strings.TrimSpace(c.Email),
	}, nil
}
