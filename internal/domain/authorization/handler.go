package authorization

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"clinical-consent/internal/domain/consent"
	"clinical-consent/internal/middleware"
	"clinical-consent/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	// Paciente: grant/revoke directo
	r.Route("/consents", func(cr chi.Router) {
		cr.Post("/", grantConsentHandler(svc))
		cr.Post("/revoke", revokeConsentHandler(svc))
	})

	// Paciente o médico: sus grants
	r.Get("/me/consents", listMyConsentsHandler(svc))

	// Médico: ¿tengo acceso?
	r.Get("/patients/{patientID}/consents", checkConsentHandler(svc))

	// Protocolo QR
	r.Route("/tokens", func(tr chi.Router) {
		tr.Post("/", issueTokenHandler(svc))
		tr.Post("/exchange", exchangeTokenHandler(svc))
	})
}

type grantConsentRequest struct {
	DoctorID        string `json:"doctor_id"`
	Scope           string `json:"scope"`
	DurationMinutes int    `json:"duration_minutes"`
}

type revokeConsentRequest struct {
	DoctorID string `json:"doctor_id"`
	Scope    string `json:"scope"`
}

type exchangeTokenRequest struct {
	Token           string `json:"token"`
	Scope           string `json:"scope"`
	DurationMinutes int    `json:"duration_minutes"`
}

type consentResponse struct {
	ID        string         `json:"id"`
	PatientID string         `json:"patient_id"`
	DoctorID  string         `json:"doctor_id"`
	Scope     string         `json:"scope"`
	Status    consent.Status `json:"status"`
	Active    bool           `json:"active"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	RevokedAt *time.Time     `json:"revoked_at,omitempty"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type exchangeResponse struct {
	PatientID string    `json:"patient_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type checkResponse struct {
	Active bool `json:"active"`
}

// grantConsentHandler
// @Summary  Grant a doctor access to a scope
// @Tags     consents
// @Accept   json
// @Produce  json
// @Param    body body grantConsentRequest true "grant"
// @Success  201 {object} consentResponse
// @Failure  400,401,403,503 {string} string
// @Router   /consents [post]
func grantConsentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		var req grantConsentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		g, err := svc.GrantConsent(r.Context(), claims, GrantInput{
			DoctorID:        req.DoctorID,
			Scope:           req.Scope,
			DurationMinutes: req.DurationMinutes,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toConsentResponse(svc, g))
	}
}

// revokeConsentHandler
// @Summary  Revoke a consent grant
// @Tags     consents
// @Accept   json
// @Produce  json
// @Param    body body revokeConsentRequest true "grant to revoke"
// @Success  200 {object} consentResponse
// @Failure  400,401,403,404,503 {string} string
// @Router   /consents/revoke [post]
func revokeConsentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		var req revokeConsentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		g, err := svc.RevokeConsent(r.Context(), claims, req.DoctorID, req.Scope)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toConsentResponse(svc, g))
	}
}

// listMyConsentsHandler
// @Summary  List grants issued (patient) or received (doctor)
// @Tags     consents
// @Produce  json
// @Param    active query bool false "only currently active grants"
// @Success  200 {array} consentResponse
// @Failure  401,403,503 {string} string
// @Router   /me/consents [get]
func listMyConsentsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		onlyActive := strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("active")), "true")

		items, err := svc.ListConsents(r.Context(), claims)
		if err != nil {
			writeError(w, err)
			return
		}

		out := make([]consentResponse, 0, len(items))
		for _, g := range items {
			resp := toConsentResponse(svc, g)
			if onlyActive && !resp.Active {
				continue
			}
			out = append(out, resp)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// checkConsentHandler
// @Summary  Check whether the calling doctor has active consent
// @Tags     consents
// @Produce  json
// @Param    patientID path string true "patient id"
// @Param    scope     query string true "scope tag"
// @Success  200 {object} checkResponse
// @Failure  400,401,403,503 {string} string
// @Router   /patients/{patientID}/consents [get]
func checkConsentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}
		if claims.Role != auth.RoleDoctor {
			writeError(w, ErrUnauthorized)
			return
		}

		scope := strings.TrimSpace(r.URL.Query().Get("scope"))
		if scope == "" {
			writeError(w, ErrInvalidInput)
			return
		}

		active, err := svc.HasActiveConsent(r.Context(), chi.URLParam(r, "patientID"), claims.UserID, scope)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, checkResponse{Active: active})
	}
}

// issueTokenHandler
// @Summary  Issue a single-use QR token
// @Tags     tokens
// @Produce  json
// @Success  201 {object} tokenResponse
// @Failure  401,403,503 {string} string
// @Router   /tokens [post]
func issueTokenHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		t, err := svc.IssueToken(r.Context(), claims)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusCreated, tokenResponse{Token: t.Token, ExpiresAt: t.ExpiresAt})
	}
}

// exchangeTokenHandler
// @Summary  Redeem a QR token for a consent grant
// @Tags     tokens
// @Accept   json
// @Produce  json
// @Param    body body exchangeTokenRequest true "token exchange"
// @Success  200 {object} exchangeResponse
// @Failure  400,401,403,404,409,410,503 {string} string
// @Router   /tokens/exchange [post]
func exchangeTokenHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		var req exchangeTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		ex, err := svc.ExchangeToken(r.Context(), claims, ExchangeInput{
			Token:           req.Token,
			Scope:           req.Scope,
			DurationMinutes: req.DurationMinutes,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, exchangeResponse{PatientID: ex.PatientID, ExpiresAt: ex.ExpiresAt})
	}
}

func requireClaims(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return auth.Claims{}, false
	}
	return claims, true
}

// StatusFor traduce errores de dominio a HTTP. Lo reusan otros módulos.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyUsed):
		return http.StatusConflict
	case errors.Is(err, ErrExpired):
		return http.StatusGone
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	msg := Kind(err)
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	http.Error(w, msg, status)
}

func toConsentResponse(svc *Service, g consent.Grant) consentResponse {
	return consentResponse{
		ID:        g.ID,
		PatientID: g.PatientID,
		DoctorID:  g.DoctorID,
		Scope:     g.Scope,
		Status:    g.Status,
		Active:    svc.Active(g),
		ExpiresAt: g.ExpiresAt,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
		RevokedAt: g.RevokedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
