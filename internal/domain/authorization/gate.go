package authorization

import (
	"context"
	"strings"

	"clinical-consent/internal/ports/auth"
)

type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// ConsentChecker es lo único que el gate necesita del Service.
type ConsentChecker interface {
	HasActiveConsent(ctx context.Context, patientID, doctorID, scope string) (bool, error)
}

// Gate responde la pregunta de consentimiento para los endpoints de lectura de
// historias clínicas. El rol del caller lo resuelve la capa de autenticación.
type Gate struct {
	checker ConsentChecker
}

func NewGate(checker ConsentChecker) *Gate {
	return &Gate{checker: checker}
}

// Authorize devuelve Deny (no error) ante cualquier resultado negativo.
// El error solo se usa para fallas de infraestructura, y en ese caso también Deny.
func (g *Gate) Authorize(ctx context.Context, caller auth.Claims, patientID, scope string) (Decision, error) {
	doctorID := strings.TrimSpace(caller.UserID)
	if doctorID == "" {
		return Deny, nil
	}
	ok, err := g.checker.HasActiveConsent(ctx, patientID, doctorID, scope)
	if err != nil {
		return Deny, err
	}
	if !ok {
		return Deny, nil
	}
	return Allow, nil
}
