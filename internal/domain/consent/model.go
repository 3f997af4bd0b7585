package consent

import "time"

type Status string

const (
	StatusApproved Status = "approved"
	StatusRevoked  Status = "revoked"
)

// Grant es el único registro vigente por (PatientID, DoctorID, Scope).
// Un grant nuevo para la misma tripleta lo sobrescribe; no se guarda historia.
type Grant struct {
	ID string

	PatientID string
	DoctorID  string
	Scope     string // tag opaco, no se valida contra una lista

	Status    Status
	ExpiresAt *time.Time // nil = aprobación sin vencimiento

	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// ActiveAt indica si el grant habilita acceso en el instante now.
// Vencimiento lazy: un grant vencido sigue "approved" en storage.
func (g Grant) ActiveAt(now time.Time) bool {
	if g.Status != StatusApproved {
		return false
	}
	if g.ExpiresAt == nil {
		return true
	}
	return !now.After(*g.ExpiresAt)
}
