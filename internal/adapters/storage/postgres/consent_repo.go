package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"clinical-consent/internal/domain/consent"

	"github.com/google/uuid"
)

const grantColumns = `
	id, patient_id, doctor_id, scope, status,
	expires_at, created_at, updated_at, revoked_at`

type ConsentRepo struct {
	db    *sql.DB
	retry Retry
}

func NewConsentRepo(db *sql.DB, retry Retry) *ConsentRepo {
	return &ConsentRepo{db: db, retry: retry}
}

// Upsert es un único INSERT ... ON CONFLICT: sin read-then-write.
// El id y created_at del primer grant sobreviven a los overwrites.
func (r *ConsentRepo) Upsert(ctx context.Context, in consent.UpsertInput) (consent.Grant, error) {
	var revokedAt *time.Time
	if in.Status == consent.StatusRevoked {
		revokedAt = &in.Now
	}
	id := uuid.NewString()

	var g consent.Grant
	err := r.retry.do(ctx, func(ctx context.Context) error {
		row := r.db.QueryRowContext(ctx, `
			INSERT INTO consent_grants (
				id, patient_id, doctor_id, scope, status,
				expires_at, created_at, updated_at, revoked_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$7,$8)
			ON CONFLICT (patient_id, doctor_id, scope) DO UPDATE SET
				status     = EXCLUDED.status,
				expires_at = EXCLUDED.expires_at,
				updated_at = EXCLUDED.updated_at,
				revoked_at = EXCLUDED.revoked_at
			RETURNING`+grantColumns,
			id,
			in.PatientID,
			in.DoctorID,
			in.Scope,
			string(in.Status),
			toNullTime(in.ExpiresAt),
			in.Now,
			toNullTime(revokedAt),
		)
		var err error
		g, err = scanGrant(row)
		return err
	})
	if err != nil {
		return consent.Grant{}, err
	}
	return g, nil
}

func (r *ConsentRepo) Find(ctx context.Context, patientID, doctorID, scope string) (consent.Grant, error) {
	var g consent.Grant
	err := r.retry.do(ctx, func(ctx context.Context) error {
		row := r.db.QueryRowContext(ctx, `
			SELECT`+grantColumns+`
			FROM consent_grants
			WHERE patient_id = $1 AND doctor_id = $2 AND scope = $3
		`, patientID, doctorID, scope)
		var err error
		g, err = scanGrant(row)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return consent.Grant{}, consent.ErrNotFound
	}
	if err != nil {
		return consent.Grant{}, err
	}
	return g, nil
}

func (r *ConsentRepo) MarkRevoked(ctx context.Context, patientID, doctorID, scope string, now time.Time) (consent.Grant, error) {
	var g consent.Grant
	err := r.retry.do(ctx, func(ctx context.Context) error {
		row := r.db.QueryRowContext(ctx, `
			UPDATE consent_grants
			SET
				status = 'revoked',
				updated_at = $4,
				revoked_at = $4
			WHERE patient_id = $1 AND doctor_id = $2 AND scope = $3
			RETURNING`+grantColumns,
			patientID, doctorID, scope, now,
		)
		var err error
		g, err = scanGrant(row)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return consent.Grant{}, consent.ErrNotFound
	}
	if err != nil {
		return consent.Grant{}, err
	}
	return g, nil
}

func (r *ConsentRepo) ListByPatient(ctx context.Context, patientID string) ([]consent.Grant, error) {
	return r.list(ctx, `
		SELECT`+grantColumns+`
		FROM consent_grants
		WHERE patient_id = $1
		ORDER BY updated_at DESC
	`, patientID)
}

func (r *ConsentRepo) ListByDoctor(ctx context.Context, doctorID string) ([]consent.Grant, error) {
	return r.list(ctx, `
		SELECT`+grantColumns+`
		FROM consent_grants
		WHERE doctor_id = $1
		ORDER BY updated_at DESC
	`, doctorID)
}

func (r *ConsentRepo) list(ctx context.Context, query string, arg string) ([]consent.Grant, error) {
	var out []consent.Grant
	err := r.retry.do(ctx, func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx, query, arg)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]consent.Grant, 0)
		for rows.Next() {
			g, err := scanGrant(rows)
			if err != nil {
				return err
			}
			out = append(out, g)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanGrant(s scanner) (consent.Grant, error) {
	var (
		g         consent.Grant
		status    string
		expiresAt sql.NullTime
		revokedAt sql.NullTime
	)
	if err := s.Scan(
		&g.ID,
		&g.PatientID,
		&g.DoctorID,
		&g.Scope,
		&status,
		&expiresAt,
		&g.CreatedAt,
		&g.UpdatedAt,
		&revokedAt,
	); err != nil {
		return consent.Grant{}, err
	}

	g.Status = consent.Status(status)
	g.ExpiresAt = fromNullTime(expiresAt)
	g.RevokedAt = fromNullTime(revokedAt)
	return g, nil
}
