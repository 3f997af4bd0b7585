package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"clinical-consent/internal/domain/qrtokens"
)

type TokenRepo struct {
	db    *sql.DB
	retry Retry
}

func NewTokenRepo(db *sql.DB, retry Retry) *TokenRepo {
	return &TokenRepo{db: db, retry: retry}
}

func (r *TokenRepo) Create(ctx context.Context, t qrtokens.Token) error {
	err := r.retry.do(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO qr_tokens (token, patient_id, created_at, expires_at)
			VALUES ($1,$2,$3,$4)
		`, t.Value, t.PatientID, t.CreatedAt, t.ExpiresAt)
		return err
	})
	if isUniqueViolation(err) {
		return qrtokens.ErrDuplicate
	}
	return err
}

// Claim es un UPDATE condicional de una sola fila: Postgres serializa los
// writers sobre la misma fila, así que solo uno ve RETURNING. Si no hubo fila
// se relee para distinguir NotFound / Expired / AlreadyUsed.
// Un reintento tras un commit cuya respuesta se perdió devuelve AlreadyUsed.
func (r *TokenRepo) Claim(ctx context.Context, value, doctorID string, now time.Time) (qrtokens.Claimed, error) {
	var patientID string
	err := r.retry.do(ctx, func(ctx context.Context) error {
		return r.db.QueryRowContext(ctx, `
			UPDATE qr_tokens
			SET
				used_at = $3,
				used_by_doctor_id = $2
			WHERE token = $1
			  AND used_at IS NULL
			  AND expires_at >= $3
			RETURNING patient_id
		`, value, doctorID, now).Scan(&patientID)
	})
	if err == nil {
		return qrtokens.Claimed{PatientID: patientID, DoctorID: doctorID, UsedAt: now}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return qrtokens.Claimed{}, err
	}

	t, err := r.Get(ctx, value)
	if err != nil {
		return qrtokens.Claimed{}, err
	}
	if t.ExpiredAt(now) {
		return qrtokens.Claimed{}, qrtokens.ErrExpired
	}
	return qrtokens.Claimed{}, qrtokens.ErrAlreadyUsed
}

func (r *TokenRepo) Get(ctx context.Context, value string) (qrtokens.Token, error) {
	var (
		t      qrtokens.Token
		usedAt sql.NullTime
		usedBy sql.NullString
	)
	err := r.retry.do(ctx, func(ctx context.Context) error {
		return r.db.QueryRowContext(ctx, `
			SELECT token, patient_id, created_at, expires_at, used_at, used_by_doctor_id
			FROM qr_tokens
			WHERE token = $1
		`, value).Scan(
			&t.Value,
			&t.PatientID,
			&t.CreatedAt,
			&t.ExpiresAt,
			&usedAt,
			&usedBy,
		)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return qrtokens.Token{}, qrtokens.ErrNotFound
	}
	if err != nil {
		return qrtokens.Token{}, err
	}

	t.UsedAt = fromNullTime(usedAt)
	t.UsedByDoctorID = usedBy.String
	return t, nil
}

func (r *TokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.retry.do(ctx, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM qr_tokens WHERE expires_at < $1`, before)
		if err != nil {
			return err
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}
