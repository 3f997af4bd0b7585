package records

import "time"

// Record es un documento de la historia clínica, particionado por scope.
type Record struct {
	ID        string
	PatientID string
	Scope     string

	Title string
	Body  string

	CreatedAt time.Time
}
