package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"clinical-consent/internal/domain/consent"

	"github.com/google/uuid"
)

type tripleKey struct {
	patientID string
	doctorID  string
	scope     string
}

// consentRepo garantiza la unicidad por tripleta usando la tripleta como key.
type consentRepo struct {
	mu       sync.RWMutex
	byTriple map[tripleKey]consent.Grant
}

func NewConsentRepo() consent.Repository {
	return &consentRepo{
		byTriple: make(map[tripleKey]consent.Grant),
	}
}

func (r *consentRepo) Upsert(ctx context.Context, in consent.UpsertInput) (consent.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := tripleKey{in.PatientID, in.DoctorID, in.Scope}
	g, exists := r.byTriple[k]
	if !exists {
		g = consent.Grant{
			ID:        uuid.NewString(),
			PatientID: in.PatientID,
			DoctorID:  in.DoctorID,
			Scope:     in.Scope,
			CreatedAt: in.Now,
		}
	}

	g.Status = in.Status
	g.ExpiresAt = copyTime(in.ExpiresAt)
	g.UpdatedAt = in.Now
	g.RevokedAt = nil
	if in.Status == consent.StatusRevoked {
		g.RevokedAt = copyTime(&in.Now)
	}

	r.byTriple[k] = g
	return cloneGrant(g), nil
}

func (r *consentRepo) Find(ctx context.Context, patientID, doctorID, scope string) (consent.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.byTriple[tripleKey{patientID, doctorID, scope}]
	if !ok {
		return consent.Grant{}, consent.ErrNotFound
	}
	return cloneGrant(g), nil
}

func (r *consentRepo) MarkRevoked(ctx context.Context, patientID, doctorID, scope string, now time.Time) (consent.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := tripleKey{patientID, doctorID, scope}
	g, ok := r.byTriple[k]
	if !ok {
		return consent.Grant{}, consent.ErrNotFound
	}

	g.Status = consent.StatusRevoked
	g.UpdatedAt = now
	g.RevokedAt = copyTime(&now)

	r.byTriple[k] = g
	return cloneGrant(g), nil
}

func (r *consentRepo) ListByPatient(ctx context.Context, patientID string) ([]consent.Grant, error) {
	return r.list(func(g consent.Grant) bool { return g.PatientID == patientID }), nil
}

func (r *consentRepo) ListByDoctor(ctx context.Context, doctorID string) ([]consent.Grant, error) {
	return r.list(func(g consent.Grant) bool { return g.DoctorID == doctorID }), nil
}

// list ordena por UpdatedAt desc, igual que el repo postgres.
func (r *consentRepo) list(match func(consent.Grant) bool) []consent.Grant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]consent.Grant, 0)
	for _, g := range r.byTriple {
		if match(g) {
			out = append(out, cloneGrant(g))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// cloneGrant evita que el caller comparta punteros con el store.
func cloneGrant(g consent.Grant) consent.Grant {
	g.ExpiresAt = copyTime(g.ExpiresAt)
	g.RevokedAt = copyTime(g.RevokedAt)
	return g
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
