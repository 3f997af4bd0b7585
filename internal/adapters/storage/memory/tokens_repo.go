package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"clinical-consent/internal/domain/qrtokens"
)

// tokenRepo serializa los claims con un único mutex: check-and-set atómico.
type tokenRepo struct {
	mu      sync.Mutex
	byValue map[string]qrtokens.Token
}

func NewTokenRepo() qrtokens.Repository {
	return &tokenRepo{
		byValue: make(map[string]qrtokens.Token),
	}
}

func (r *tokenRepo) Create(ctx context.Context, t qrtokens.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.Value == "" {
		return errors.New("token value required")
	}
	if _, exists := r.byValue[t.Value]; exists {
		return qrtokens.ErrDuplicate
	}
	t.UsedAt = nil
	t.UsedByDoctorID = ""
	r.byValue[t.Value] = t
	return nil
}

func (r *tokenRepo) Claim(ctx context.Context, value, doctorID string, now time.Time) (qrtokens.Claimed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byValue[value]
	if !ok {
		return qrtokens.Claimed{}, qrtokens.ErrNotFound
	}
	if t.ExpiredAt(now) {
		return qrtokens.Claimed{}, qrtokens.ErrExpired
	}
	if t.Used() {
		return qrtokens.Claimed{}, qrtokens.ErrAlreadyUsed
	}

	t.UsedAt = copyTime(&now)
	t.UsedByDoctorID = doctorID
	r.byValue[value] = t

	return qrtokens.Claimed{
		PatientID: t.PatientID,
		DoctorID:  doctorID,
		UsedAt:    now,
	}, nil
}

func (r *tokenRepo) Get(ctx context.Context, value string) (qrtokens.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byValue[value]
	if !ok {
		return qrtokens.Token{}, qrtokens.ErrNotFound
	}
	t.UsedAt = copyTime(t.UsedAt)
	return t, nil
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for v, t := range r.byValue {
		if t.ExpiresAt.Before(before) {
			delete(r.byValue, v)
			n++
		}
	}
	return n, nil
}
