package records

import (
	"context"
	"errors"
	"strings"
	"time"

	"clinical-consent/internal/domain/authorization"
	"clinical-consent/internal/ports/auth"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
)

// AccessGate evita acoplar records al Service completo.
type AccessGate interface {
	Authorize(ctx context.Context, caller auth.Claims, patientID, scope string) (authorization.Decision, error)
}

type Service struct {
	repo Repository
	gate AccessGate
	now  func() time.Time
}

func NewService(repo Repository, gate AccessGate) *Service {
	return &Service{
		repo: repo,
		gate: gate,
		now:  time.Now,
	}
}

type CreateInput struct {
	Scope string
	Title string
	Body  string
}

// Create: solo el propio paciente carga documentos en su historia.
func (s *Service) Create(ctx context.Context, caller auth.Claims, in CreateInput) (Record, error) {
	if caller.Role != auth.RolePatient || strings.TrimSpace(caller.UserID) == "" {
		return Record{}, ErrForbidden
	}
	scope := strings.TrimSpace(in.Scope)
	title := strings.TrimSpace(in.Title)
	if scope == "" || title == "" {
		return Record{}, ErrInvalidInput
	}

	rec := Record{
		ID:        uuid.NewString(),
		PatientID: caller.UserID,
		Scope:     scope,
		Title:     title,
		Body:      in.Body,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Service) ListMine(ctx context.Context, caller auth.Claims, scope string) ([]Record, error) {
	if caller.Role != auth.RolePatient || strings.TrimSpace(caller.UserID) == "" {
		return nil, ErrForbidden
	}
	return s.repo.ListByPatient(ctx, caller.UserID, strings.TrimSpace(scope))
}

// ListForDoctor pasa por el gate; scope es obligatorio porque el consentimiento es por scope.
func (s *Service) ListForDoctor(ctx context.Context, caller auth.Claims, patientID, scope string) ([]Record, error) {
	if caller.Role != auth.RoleDoctor {
		return nil, ErrForbidden
	}
	patientID = strings.TrimSpace(patientID)
	scope = strings.TrimSpace(scope)
	if patientID == "" || scope == "" {
		return nil, ErrInvalidInput
	}

	decision, err := s.gate.Authorize(ctx, caller, patientID, scope)
	if err != nil {
		return nil, err
	}
	if decision != authorization.Allow {
		return nil, ErrForbidden
	}
	return s.repo.ListByPatient(ctx, patientID, scope)
}
