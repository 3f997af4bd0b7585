package records

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"clinical-consent/internal/domain/authorization"
	"clinical-consent/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	// Paciente: su propia historia
	r.Route("/me/records", func(mr chi.Router) {
		mr.Post("/", createRecordHandler(svc))
		mr.Get("/", listMyRecordsHandler(svc))
	})

	// Médico: lectura con consentimiento activo
	r.Get("/patients/{patientID}/records", listPatientRecordsHandler(svc))
}

type createRecordRequest struct {
	Scope string `json:"scope"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type recordResponse struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	Scope     string    `json:"scope"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// createRecordHandler
// @Summary  Add a document to the caller's medical record
// @Tags     records
// @Accept   json
// @Produce  json
// @Param    body body createRecordRequest true "record"
// @Success  201 {object} recordResponse
// @Failure  400,401,403 {string} string
// @Router   /me/records [post]
func createRecordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}

		var req createRecordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		rec, err := svc.Create(r.Context(), claims, CreateInput{
			Scope: req.Scope,
			Title: req.Title,
			Body:  req.Body,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toRecordResponse(rec))
	}
}

// listMyRecordsHandler
// @Summary  List the caller's own records
// @Tags     records
// @Produce  json
// @Param    scope query string false "scope tag"
// @Success  200 {array} recordResponse
// @Failure  401,403 {string} string
// @Router   /me/records [get]
func listMyRecordsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListMine(r.Context(), claims, r.URL.Query().Get("scope"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRecordResponses(items))
	}
}

// listPatientRecordsHandler
// @Summary  Read a patient's records for one scope (requires active consent)
// @Tags     records
// @Produce  json
// @Param    patientID path  string true "patient id"
// @Param    scope     query string true "scope tag"
// @Success  200 {array} recordResponse
// @Failure  400,401,403,503 {string} string
// @Router   /patients/{patientID}/records [get]
func listPatientRecordsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListForDoctor(r.Context(), claims, chi.URLParam(r, "patientID"), r.URL.Query().Get("scope"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRecordResponses(items))
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, authorization.ErrUnavailable):
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toRecordResponse(rec Record) recordResponse {
	return recordResponse{
		ID:        rec.ID,
		PatientID: rec.PatientID,
		Scope:     rec.Scope,
		Title:     rec.Title,
		Body:      rec.Body,
		CreatedAt: rec.CreatedAt,
	}
}

func toRecordResponses(items []Record) []recordResponse {
	out := make([]recordResponse, 0, len(items))
	for _, rec := range items {
		out = append(out, toRecordResponse(rec))
	}
	return out
}

// writeJSON duplicado a propósito (ver authorization/handler.go).
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
