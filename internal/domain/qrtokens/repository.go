package qrtokens

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("token not found")
	ErrExpired     = errors.New("token expired")
	ErrAlreadyUsed = errors.New("token already used")
	ErrDuplicate   = errors.New("token already exists")
)

// Repository es el TokenStore.
//
// Claim es la única operación con consecuencias de seguridad: en un solo paso
// verifica existe + no vencido + no usado y marca UsedAt/UsedByDoctorID.
// Con N claims concurrentes sobre el mismo token exactamente uno gana.
// Vencido tiene prioridad sobre usado.
type Repository interface {
	Create(ctx context.Context, t Token) error
	Claim(ctx context.Context, value, doctorID string, now time.Time) (Claimed, error)
	Get(ctx context.Context, value string) (Token, error)

	// DeleteExpired borra tokens con ExpiresAt < before (usados o no).
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
