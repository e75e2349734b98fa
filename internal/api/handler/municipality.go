package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opsboard/opsboard/internal/api/middleware"
	"github.com/opsboard/opsboard/internal/api/response"
	"github.com/opsboard/opsboard/internal/api/validation"
	"github.com/opsboard/opsboard/internal/audit"
	"github.com/opsboard/opsboard/internal/municipality"
)

type statusUpsertRequest struct {
	Municipality string `json:"municipality"`
	Day          string `json:"day"`
	COCOpen      bool   `json:"cocOpen"`
	Phone        string `json:"phone"`
	Notes        string `json:"notes"`
}

type statusResponse struct {
	ID             int64  `json:"id"`
	Day            string `json:"day"`
	MunicipalityID string `json:"municipalityId"`
	Municipality   string `json:"municipality,omitempty"`
	COCOpen        bool   `json:"cocOpen"`
	Phone          string `json:"phone"`
	Notes          string `json:"notes"`
	UpdatedAt      string `json:"updatedAt"`
}

func toStatusResponse(s *municipality.Status) statusResponse {
	return statusResponse{
		ID:             s.ID,
		Day:            s.Day,
		MunicipalityID: s.MunicipalityID.String(),
		Municipality:   s.Municipality,
		COCOpen:        s.COCOpen,
		Phone:          s.Phone,
		Notes:          s.Notes,
		UpdatedAt:      s.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

type contactEntry struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// MunicipalityHandler handles the municipal status upsert and contact-list
// replacement routes.
type MunicipalityHandler struct {
	repo     municipality.Repository
	recorder audit.Recorder
}

// NewMunicipalityHandler creates a new MunicipalityHandler.
func NewMunicipalityHandler(repo municipality.Repository, recorder audit.Recorder) *MunicipalityHandler {
	return &MunicipalityHandler{repo: repo, recorder: recorder}
}

// ListStatus handles GET /api/municipality-status[?day=].
func (h *MunicipalityHandler) ListStatus(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	statuses, err := h.repo.ListStatus(r.Context(), r.URL.Query().Get("day"))
	if err != nil {
		slog.Error("failed to list municipality status", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list municipality status", requestID)
		return
	}

	items := make([]statusResponse, 0, len(statuses))
	for i := range statuses {
		items = append(items, toStatusResponse(&statuses[i]))
	}

	response.Success(w, http.StatusOK, items, requestID)
}

// UpsertStatus handles POST /api/municipality-status. The municipality is
// resolved (or created) by case-insensitive name, then the status row keyed
// on (day, municipality) is inserted or updated. Re-submitting the same
// payload converges on the same row.
func (h *MunicipalityHandler) UpsertStatus(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req statusUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateStatusUpsertRequest(validation.StatusUpsertRequest{
		Municipality: req.Municipality,
		Day:          req.Day,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	m, err := h.repo.EnsureByName(r.Context(), req.Municipality)
	if err != nil {
		slog.Error("failed to resolve municipality", "error", err, "name", req.Municipality)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update municipality status", requestID)
		return
	}

	s, err := h.repo.UpsertStatus(r.Context(), m.ID, municipality.StatusUpsert{
		Day:     req.Day,
		COCOpen: req.COCOpen,
		Phone:   req.Phone,
		Notes:   req.Notes,
	})
	if err != nil {
		slog.Error("failed to upsert municipality status", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update municipality status", requestID)
		return
	}
	s.Municipality = m.Name

	entry := audit.ForActor(middleware.GetIdentity(r.Context()))
	entry.Section = "municipalities"
	entry.EntityKind = "municipality_status"
	entry.EntityID = m.ID.String()
	entry.Action = audit.ActionUpdate
	entry.Summary = "set status of " + m.Name + " for " + req.Day
	entry.After = map[string]any{
		"day":     s.Day,
		"cocOpen": s.COCOpen,
		"phone":   s.Phone,
		"notes":   s.Notes,
	}
	h.recorder.Record(r.Context(), entry)

	response.Success(w, http.StatusOK, toStatusResponse(s), requestID)
}

// ListContacts handles GET /api/municipalities/{id}/contacts.
func (h *MunicipalityHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := h.parseMunicipalityID(w, r, requestID)
	if !ok {
		return
	}

	contacts, err := h.repo.ListContacts(r.Context(), id)
	if err != nil {
		slog.Error("failed to list contacts", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list contacts", requestID)
		return
	}

	items := make([]contactEntry, 0, len(contacts))
	for _, c := range contacts {
		items = append(items, contactEntry{Name: c.Name, Role: c.Role, Phone: c.Phone, Email: c.Email})
	}

	response.Success(w, http.StatusOK, items, requestID)
}

// ReplaceContacts handles PUT /api/municipalities/{id}/contacts. The
// supplied list replaces the existing one wholesale.
func (h *MunicipalityHandler) ReplaceContacts(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := h.parseMunicipalityID(w, r, requestID)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var entries []contactEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be a JSON array", requestID)
		return
	}

	toValidate := make([]validation.ContactEntry, 0, len(entries))
	for _, e := range entries {
		toValidate = append(toValidate, validation.ContactEntry{Name: e.Name, Email: e.Email})
	}
	if fieldErrors := validation.ValidateContacts(toValidate); len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	before, err := h.repo.ListContacts(r.Context(), id)
	if err != nil {
		slog.Error("failed to load contacts for audit", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to replace contacts", requestID)
		return
	}

	contacts := make([]municipality.Contact, 0, len(entries))
	for _, e := range entries {
		contacts = append(contacts, municipality.Contact{Name: e.Name, Role: e.Role, Phone: e.Phone, Email: e.Email})
	}

	replaced, err := h.repo.ReplaceContacts(r.Context(), id, contacts)
	if err != nil {
		if errors.Is(err, municipality.ErrNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Municipality not found", requestID)
			return
		}
		slog.Error("failed to replace contacts", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to replace contacts", requestID)
		return
	}

	entry := audit.ForActor(middleware.GetIdentity(r.Context()))
	entry.Section = "municipalities"
	entry.EntityKind = "municipality_contacts"
	entry.EntityID = id.String()
	entry.Action = audit.ActionUpdate
	entry.Summary = "replaced contact list"
	entry.Before = map[string]any{"contacts": contactNames(before)}
	entry.After = map[string]any{"contacts": contactNames(replaced)}
	h.recorder.Record(r.Context(), entry)

	items := make([]contactEntry, 0, len(replaced))
	for _, c := range replaced {
		items = append(items, contactEntry{Name: c.Name, Role: c.Role, Phone: c.Phone, Email: c.Email})
	}

	response.Success(w, http.StatusOK, items, requestID)
}

func (h *MunicipalityHandler) parseMunicipalityID(w http.ResponseWriter, r *http.Request, requestID string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
		return uuid.Nil, false
	}
	return id, true
}

func contactNames(contacts []municipality.Contact) []string {
	names := make([]string, 0, len(contacts))
	for _, c := range contacts {
		names = append(names, c.Name)
	}
	return names
}
