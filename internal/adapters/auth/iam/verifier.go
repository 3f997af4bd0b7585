package iam

import (
	"context"
	"errors"
	"fmt"

	"clinical-consent/internal/ports/auth"
)

var ErrIncompleteClaims = errors.New("iam claims missing user id or role")

// Verifier implementa auth.AuthVerifier delegando en el IAM.
type Verifier struct {
	client *Client
}

func NewVerifier(client *Client) *Verifier {
	return &Verifier{client: client}
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if v == nil || v.client == nil {
		return auth.Claims{}, ErrNotConfigured
	}

	claims, err := v.client.Introspect(ctx, token)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("iam verify failed: %w", err)
	}
	// Sin rol conocido no se puede decidir nada en este servicio.
	if claims.UserID == "" || claims.Role == "" {
		return auth.Claims{}, ErrIncompleteClaims
	}
	return claims, nil
}
