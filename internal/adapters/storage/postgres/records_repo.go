package postgres

import (
	"context"
	"database/sql"

	"clinical-consent/internal/domain/records"
)

type RecordsRepo struct {
	db    *sql.DB
	retry Retry
}

func NewRecordsRepo(db *sql.DB, retry Retry) *RecordsRepo {
	return &RecordsRepo{db: db, retry: retry}
}

func (r *RecordsRepo) Create(ctx context.Context, rec records.Record) error {
	return r.retry.do(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO medical_records (id, patient_id, scope, title, body, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, rec.ID, rec.PatientID, rec.Scope, rec.Title, rec.Body, rec.CreatedAt)
		return err
	})
}

func (r *RecordsRepo) ListByPatient(ctx context.Context, patientID, scope string) ([]records.Record, error) {
	var out []records.Record
	err := r.retry.do(ctx, func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, patient_id, scope, title, body, created_at
			FROM medical_records
			WHERE patient_id = $1
			  AND ($2 = '' OR scope = $2)
			ORDER BY created_at ASC
		`, patientID, scope)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]records.Record, 0)
		for rows.Next() {
			var rec records.Record
			if err := rows.Scan(
				&rec.ID,
				&rec.PatientID,
				&rec.Scope,
				&rec.Title,
				&rec.Body,
				&rec.CreatedAt,
			); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
