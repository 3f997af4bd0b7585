package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"clinical-consent/internal/domain/records"
)

type recordRepo struct {
	mu   sync.RWMutex
	byID map[string]records.Record
}

func NewRecordRepo() records.Repository {
	return &recordRepo{
		byID: make(map[string]records.Record),
	}
}

func (r *recordRepo) Create(ctx context.Context, rec records.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("record id required")
	}
	if _, exists := r.byID[rec.ID]; exists {
		return errors.New("record already exists")
	}
	r.byID[rec.ID] = rec
	return nil
}

func (r *recordRepo) ListByPatient(ctx context.Context, patientID, scope string) ([]records.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]records.Record, 0)
	for _, rec := range r.byID {
		if rec.PatientID != patientID {
			continue
		}
		if scope != "" && rec.Scope != scope {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
