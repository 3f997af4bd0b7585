package authorization

import (
	"errors"
	"fmt"

	"clinical-consent/internal/domain/consent"
	"clinical-consent/internal/domain/qrtokens"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable: falla de infraestructura (storage caído, timeout).
	// Distinto de los errores de dominio: reintentar puede funcionar.
	ErrUnavailable = errors.New("service unavailable")
)

// translate lleva errores de los stores a los errores de dominio.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, consent.ErrNotFound), errors.Is(err, qrtokens.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, qrtokens.ErrExpired):
		return ErrExpired
	case errors.Is(err, qrtokens.ErrAlreadyUsed):
		return ErrAlreadyUsed
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}

// Kind devuelve un nombre estable del error para logs/eventos.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}
