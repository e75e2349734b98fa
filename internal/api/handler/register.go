package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/opsboard/opsboard/internal/accessrequest"
	"github.com/opsboard/opsboard/internal/api/middleware"
	"github.com/opsboard/opsboard/internal/api/response"
	"github.com/opsboard/opsboard/internal/api/validation"
	"github.com/opsboard/opsboard/internal/audit"
	"github.com/opsboard/opsboard/internal/auth"
)

type registerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Organization string `json:"organization"`
	Password     string `json:"password"`
}

// RegisterHandler handles the public self-service access-request
// submission.
type RegisterHandler struct {
	authService *auth.Service
	requests    accessrequest.Repository
	recorder    audit.Recorder
}

// NewRegisterHandler creates a new RegisterHandler.
func NewRegisterHandler(authService *auth.Service, requests accessrequest.Repository, recorder audit.Recorder) *RegisterHandler {
	return &RegisterHandler{authService: authService, requests: requests, recorder: recorder}
}

// Submit handles POST /auth/register.
func (h *RegisterHandler) Submit(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateRegisterRequest(validation.RegisterRequest{
		Name:         req.Name,
		Email:        req.Email,
		Organization: req.Organization,
		Password:     req.Password,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to submit request", requestID)
		return
	}

	ar := &accessrequest.Request{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		Organization: strings.TrimSpace(req.Organization),
		PasswordHash: hash,
	}

	if err := h.requests.Create(r.Context(), ar); err != nil {
		if errors.Is(err, accessrequest.ErrDuplicateEmail) {
			response.Err(w, http.StatusConflict, "CONFLICT", "A request for this email is already on file", requestID)
			return
		}
		slog.Error("failed to create access request", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to submit request", requestID)
		return
	}

	// Anonymous mutation: there is no actor yet.
	h.recorder.Record(r.Context(), audit.Entry{
		Section:    "access",
		EntityKind: "access_request",
		EntityID:   ar.ID.String(),
		Action:     audit.ActionCreate,
		Summary:    "access requested by " + ar.Email,
	})

	response.Success(w, http.StatusCreated, toAccessRequestResponse(ar), requestID)
}
