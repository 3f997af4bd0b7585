package consent

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("consent grant not found")

// UpsertInput describe el estado completo que debe quedar para la tripleta.
type UpsertInput struct {
	PatientID string
	DoctorID  string
	Scope     string
	Status    Status
	ExpiresAt *time.Time
	Now       time.Time
}

// Repository es el ConsentStore.
//   - Upsert es create-or-replace atómico sobre (patient, doctor, scope); last-writer-wins.
//   - MarkRevoked no crea filas: ErrNotFound si la tripleta no existe.
type Repository interface {
	Upsert(ctx context.Context, in UpsertInput) (Grant, error)
	Find(ctx context.Context, patientID, doctorID, scope string) (Grant, error)
	MarkRevoked(ctx context.Context, patientID, doctorID, scope string, now time.Time) (Grant, error)

	ListByPatient(ctx context.Context, patientID string) ([]Grant, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]Grant, error)
}
