package records

import "context"

type Repository interface {
	Create(ctx context.Context, rec Record) error
	// ListByPatient con scope "" devuelve todos los scopes.
	ListByPatient(ctx context.Context, patientID, scope string) ([]Record, error)
}
