package events

import (
	"context"
	"time"
)

type Type string

const (
	ConsentGranted Type = "consent.granted"
	ConsentRevoked Type = "consent.revoked"
	TokenIssued    Type = "token.issued"
	TokenExchanged Type = "token.exchanged"
	TokenRejected  Type = "token.rejected"
)

// Event es el registro de auditoría de un cambio en el ledger de consentimientos.
// Nunca lleva el valor del token QR.
type Event struct {
	Type       Type       `json:"type"`
	PatientID  string     `json:"patient_id,omitempty"`
	DoctorID   string     `json:"doctor_id,omitempty"`
	Scope      string     `json:"scope,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Discard no publica nada (modo dev / sin broker).
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
