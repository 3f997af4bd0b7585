package authorization

import (
	"context"
	"errors"
	"strings"
	"time"

	"clinical-consent/internal/domain/consent"
	"clinical-consent/internal/domain/qrtokens"
	"clinical-consent/internal/platform/logger"
	"clinical-consent/internal/ports/auth"
	"clinical-consent/internal/ports/events"
)

const (
	DefaultTokenTTL           = 5 * time.Minute
	DefaultMaxConsentDuration = 7 * 24 * time.Hour

	// reintentos si el valor generado choca con uno existente
	tokenCreateAttempts = 3
)

type Options struct {
	TokenTTL           time.Duration
	MaxConsentDuration time.Duration

	Publisher events.Publisher
	Logger    logger.Logger
}

// Service es el único componente con lógica de negocio: grant/revoke/check y
// el protocolo issue/exchange de tokens QR.
type Service struct {
	consents consent.Repository
	tokens   qrtokens.Repository

	events events.Publisher
	log    logger.Logger

	tokenTTL    time.Duration
	maxDuration time.Duration

	now      func() time.Time
	newToken func() (string, error)
}

func NewService(consents consent.Repository, tokens qrtokens.Repository, opts Options) *Service {
	s := &Service{
		consents:    consents,
		tokens:      tokens,
		events:      opts.Publisher,
		log:         opts.Logger,
		tokenTTL:    opts.TokenTTL,
		maxDuration: opts.MaxConsentDuration,
		now:         time.Now,
		newToken:    qrtokens.NewValue,
	}
	if s.events == nil {
		s.events = events.Discard{}
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = DefaultTokenTTL
	}
	if s.maxDuration <= 0 {
		s.maxDuration = DefaultMaxConsentDuration
	}
	return s
}

type GrantInput struct {
	DoctorID        string
	Scope           string
	DurationMinutes int
}

func (s *Service) GrantConsent(ctx context.Context, caller auth.Claims, in GrantInput) (consent.Grant, error) {
	patientID, err := requireRole(caller, auth.RolePatient)
	if err != nil {
		return consent.Grant{}, err
	}
	doctorID := strings.TrimSpace(in.DoctorID)
	scope := strings.TrimSpace(in.Scope)
	if doctorID == "" || scope == "" || doctorID == patientID {
		return consent.Grant{}, ErrInvalidInput
	}
	d, err := s.duration(in.DurationMinutes)
	if err != nil {
		return consent.Grant{}, err
	}

	now := s.now()
	exp := now.Add(d)

	g, err := s.consents.Upsert(ctx, consent.UpsertInput{
		PatientID: patientID,
		DoctorID:  doctorID,
		Scope:     scope,
		Status:    consent.StatusApproved,
		ExpiresAt: &exp,
		Now:       now,
	})
	if err != nil {
		return consent.Grant{}, s.storeFailure("grant consent", err)
	}

	s.log.Info("consent granted", map[string]any{
		"patient_id": patientID,
		"doctor_id":  doctorID,
		"scope":      scope,
		"expires_at": exp,
	})
	s.publish(ctx, events.Event{
		Type:      events.ConsentGranted,
		PatientID: patientID,
		DoctorID:  doctorID,
		Scope:     scope,
		ExpiresAt: &exp,
	})
	return g, nil
}

// RevokeConsent falla con ErrNotFound si no hay grant: revocar "nada" es un error del caller.
func (s *Service) RevokeConsent(ctx context.Context, caller auth.Claims, doctorID, scope string) (consent.Grant, error) {
	patientID, err := requireRole(caller, auth.RolePatient)
	if err != nil {
		return consent.Grant{}, err
	}
	doctorID = strings.TrimSpace(doctorID)
	scope = strings.TrimSpace(scope)
	if doctorID == "" || scope == "" {
		return consent.Grant{}, ErrInvalidInput
	}

	g, err := s.consents.MarkRevoked(ctx, patientID, doctorID, scope, s.now())
	if err != nil {
		if errors.Is(err, consent.ErrNotFound) {
			return consent.Grant{}, ErrNotFound
		}
		return consent.Grant{}, s.storeFailure("revoke consent", err)
	}

	s.log.Info("consent revoked", map[string]any{
		"patient_id": patientID,
		"doctor_id":  doctorID,
		"scope":      scope,
	})
	s.publish(ctx, events.Event{
		Type:      events.ConsentRevoked,
		PatientID: patientID,
		DoctorID:  doctorID,
		Scope:     scope,
	})
	return g, nil
}

// HasActiveConsent es un predicado sin efectos: un grant vencido se trata como
// inactivo pero no se modifica. Solo devuelve error ante fallas de storage.
func (s *Service) HasActiveConsent(ctx context.Context, patientID, doctorID, scope string) (bool, error) {
	patientID = strings.TrimSpace(patientID)
	doctorID = strings.TrimSpace(doctorID)
	scope = strings.TrimSpace(scope)
	if patientID == "" || doctorID == "" || scope == "" {
		return false, nil
	}

	g, err := s.consents.Find(ctx, patientID, doctorID, scope)
	if err != nil {
		if errors.Is(err, consent.ErrNotFound) {
			return false, nil
		}
		return false, s.storeFailure("check consent", err)
	}
	return g.ActiveAt(s.now()), nil
}

// Active evalúa un grant ya leído con el reloj del servicio.
func (s *Service) Active(g consent.Grant) bool {
	return g.ActiveAt(s.now())
}

// ListConsents: el paciente ve los grants que emitió, el médico los que recibió.
func (s *Service) ListConsents(ctx context.Context, caller auth.Claims) ([]consent.Grant, error) {
	id := strings.TrimSpace(caller.UserID)
	if id == "" {
		return nil, ErrUnauthorized
	}

	var (
		items []consent.Grant
		err   error
	)
	switch caller.Role {
	case auth.RolePatient:
		items, err = s.consents.ListByPatient(ctx, id)
	case auth.RoleDoctor:
		items, err = s.consents.ListByDoctor(ctx, id)
	default:
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, s.storeFailure("list consents", err)
	}
	return items, nil
}

type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

func (s *Service) IssueToken(ctx context.Context, caller auth.Claims) (IssuedToken, error) {
	patientID, err := requireRole(caller, auth.RolePatient)
	if err != nil {
		return IssuedToken{}, err
	}

	now := s.now()
	t := qrtokens.Token{
		PatientID: patientID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenTTL),
	}

	for attempt := 1; ; attempt++ {
		t.Value, err = s.newToken()
		if err != nil {
			return IssuedToken{}, s.storeFailure("generate token", err)
		}
		err = s.tokens.Create(ctx, t)
		if err == nil {
			break
		}
		if !errors.Is(err, qrtokens.ErrDuplicate) || attempt >= tokenCreateAttempts {
			return IssuedToken{}, s.storeFailure("issue token", err)
		}
	}

	s.log.Info("token issued", map[string]any{
		"patient_id":  patientID,
		"token":       qrtokens.Fingerprint(t.Value),
		"expires_at":  t.ExpiresAt,
		"ttl_seconds": int(s.tokenTTL.Seconds()),
	})
	exp := t.ExpiresAt
	s.publish(ctx, events.Event{
		Type:      events.TokenIssued,
		PatientID: patientID,
		ExpiresAt: &exp,
	})
	return IssuedToken{Token: t.Value, ExpiresAt: t.ExpiresAt}, nil
}

type ExchangeInput struct {
	Token           string
	Scope           string
	DurationMinutes int
}

type Exchange struct {
	PatientID string
	ExpiresAt time.Time
}

// ExchangeToken: claim primero, grant después. Si el claim falla no se toca el
// ledger; si el grant falla después de un claim exitoso el token queda consumido.
func (s *Service) ExchangeToken(ctx context.Context, caller auth.Claims, in ExchangeInput) (Exchange, error) {
	doctorID, err := requireRole(caller, auth.RoleDoctor)
	if err != nil {
		return Exchange{}, err
	}
	value := strings.TrimSpace(in.Token)
	scope := strings.TrimSpace(in.Scope)
	if value == "" || scope == "" {
		return Exchange{}, ErrInvalidInput
	}
	// Validar antes del claim: un input malo no debe quemar el token.
	d, err := s.duration(in.DurationMinutes)
	if err != nil {
		return Exchange{}, err
	}

	now := s.now()
	claimed, err := s.tokens.Claim(ctx, value, doctorID, now)
	if err != nil {
		err = translate(err)
		if errors.Is(err, ErrUnavailable) {
			return Exchange{}, s.storeFailure("claim token", err)
		}
		s.log.Warn("token exchange rejected", map[string]any{
			"doctor_id": doctorID,
			"token":     qrtokens.Fingerprint(value),
			"reason":    Kind(err),
		})
		s.publish(ctx, events.Event{
			Type:     events.TokenRejected,
			DoctorID: doctorID,
			Scope:    scope,
			Reason:   Kind(err),
		})
		return Exchange{}, err
	}

	exp := now.Add(d)
	if _, err := s.consents.Upsert(ctx, consent.UpsertInput{
		PatientID: claimed.PatientID,
		DoctorID:  doctorID,
		Scope:     scope,
		Status:    consent.StatusApproved,
		ExpiresAt: &exp,
		Now:       now,
	}); err != nil {
		return Exchange{}, s.storeFailure("grant consent after claim", err)
	}

	s.log.Info("token exchanged", map[string]any{
		"patient_id": claimed.PatientID,
		"doctor_id":  doctorID,
		"scope":      scope,
		"token":      qrtokens.Fingerprint(value),
		"expires_at": exp,
	})
	s.publish(ctx, events.Event{
		Type:      events.TokenExchanged,
		PatientID: claimed.PatientID,
		DoctorID:  doctorID,
		Scope:     scope,
		ExpiresAt: &exp,
	})
	return Exchange{PatientID: claimed.PatientID, ExpiresAt: exp}, nil
}

func requireRole(caller auth.Claims, role auth.Role) (string, error) {
	id := strings.TrimSpace(caller.UserID)
	if id == "" || caller.Role != role {
		return "", ErrUnauthorized
	}
	return id, nil
}

func (s *Service) duration(minutes int) (time.Duration, error) {
	// comparar en minutos: multiplicar primero puede desbordar
	if minutes <= 0 || int64(minutes) > int64(s.maxDuration/time.Minute) {
		return 0, ErrInvalidInput
	}
	return time.Duration(minutes) * time.Minute, nil
}

func (s *Service) storeFailure(op string, err error) error {
	if !errors.Is(err, ErrUnavailable) {
		err = translate(err)
	}
	s.log.Error(op+" failed", map[string]any{"error": err})
	return err
}

// publish es best-effort: la auditoría nunca hace fallar la operación.
func (s *Service) publish(ctx context.Context, e events.Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now()
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn("audit event not published", map[string]any{
			"type":  string(e.Type),
			"error": err,
		})
	}
}
