package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opsboard/opsboard/internal/accessrequest"
	"github.com/opsboard/opsboard/internal/api/middleware"
	"github.com/opsboard/opsboard/internal/api/response"
	"github.com/opsboard/opsboard/internal/api/validation"
	"github.com/opsboard/opsboard/internal/audit"
	"github.com/opsboard/opsboard/internal/auth"
)

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

type updateUserRequest struct {
	Role   *string `json:"role,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

type accessRequestResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Organization string `json:"organization"`
	Status       string `json:"status"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

func toAccessRequestResponse(req *accessrequest.Request) accessRequestResponse {
	return accessRequestResponse{
		ID:           req.ID.String(),
		Name:         req.Name,
		Email:        req.Email,
		Organization: req.Organization,
		Status:       req.Status,
		CreatedAt:    req.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		UpdatedAt:    req.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

type auditEntryResponse struct {
	ID         string         `json:"id"`
	At         string         `json:"at"`
	ActorID    string         `json:"actorId"`
	ActorEmail string         `json:"actorEmail"`
	ActorRole  string         `json:"actorRole"`
	Section    string         `json:"section"`
	EntityKind string         `json:"entityKind"`
	EntityID   string         `json:"entityId"`
	Action     string         `json:"action"`
	Summary    string         `json:"summary"`
	Before     map[string]any `json:"before,omitempty"`
	After      map[string]any `json:"after,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// AdminHandler handles user management, access-request processing and audit
// log retrieval. Every route it serves is admin-gated in the router.
type AdminHandler struct {
	authService *auth.Service
	users       auth.Repository
	requests    accessrequest.Repository
	auditLog    audit.Reader
	recorder    audit.Recorder
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(authService *auth.Service, users auth.Repository, requests accessrequest.Repository, auditLog audit.Reader, recorder audit.Recorder) *AdminHandler {
	return &AdminHandler{
		authService: authService,
		users:       users,
		requests:    requests,
		auditLog:    auditLog,
		recorder:    recorder,
	}
}

// ListUsers handles GET /admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	users, err := h.users.List(r.Context())
	if err != nil {
		slog.Error("failed to list users", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list users", requestID)
		return
	}

	items := make([]userResponse, 0, len(users))
	for i := range users {
		items = append(items, toUserResponse(&users[i]))
	}

	response.Success(w, http.StatusOK, items, requestID)
}

// CreateUser handles POST /admin/users.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateCreateUserRequest(validation.CreateUserRequest{
		Name:     req.Name,
		Email:    req.Email,
		Role:     req.Role,
		Password: req.Password,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user", requestID)
		return
	}

	u := &auth.User{
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Role:         req.Role,
		Active:       true,
	}

	if err := h.users.Create(r.Context(), u); err != nil {
		if errors.Is(err, auth.ErrDuplicateEmail) {
			response.Err(w, http.StatusConflict, "CONFLICT", "Email already registered", requestID)
			return
		}
		slog.Error("failed to create user", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user", requestID)
		return
	}

	h.recordUserAction(r, audit.ActionCreate, u, "created account "+u.Email)

	response.Success(w, http.StatusCreated, toUserResponse(u), requestID)
}

// UpdateUser handles PATCH /admin/users/{id} (role and activation toggle).
// Changes take effect on the target's very next request, since every
// request re-fetches the user.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateUpdateUserRequest(validation.UpdateUserRequest{
		Role:   req.Role,
		Active: req.Active,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	var updated *auth.User
	if req.Role != nil {
		updated, err = h.users.UpdateRole(r.Context(), id, *req.Role)
		if err != nil {
			h.writeUserError(w, err, requestID)
			return
		}
	}
	if req.Active != nil {
		updated, err = h.users.SetActive(r.Context(), id, *req.Active)
		if err != nil {
			h.writeUserError(w, err, requestID)
			return
		}
	}

	h.recordUserAction(r, audit.ActionUpdate, updated, "updated account "+updated.Email)

	response.Success(w, http.StatusOK, toUserResponse(updated), requestID)
}

// ListAccessRequests handles GET /admin/access-requests.
func (h *AdminHandler) ListAccessRequests(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	requests, err := h.requests.List(r.Context())
	if err != nil {
		slog.Error("failed to list access requests", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list access requests", requestID)
		return
	}

	items := make([]accessRequestResponse, 0, len(requests))
	for i := range requests {
		items = append(items, toAccessRequestResponse(&requests[i]))
	}

	response.Success(w, http.StatusOK, items, requestID)
}

// ApproveAccessRequest handles POST /admin/access-requests/{id}/approve.
func (h *AdminHandler) ApproveAccessRequest(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := h.parseRequestID(w, r, requestID)
	if !ok {
		return
	}

	req, u, err := h.requests.Approve(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateEmail) {
			response.Err(w, http.StatusConflict, "CONFLICT", "Email already registered", requestID)
			return
		}
		h.writeRequestError(w, err, requestID)
		return
	}

	entry := audit.ForActor(middleware.GetIdentity(r.Context()))
	entry.Section = "access"
	entry.EntityKind = "access_request"
	entry.EntityID = req.ID.String()
	entry.Action = audit.ActionUpdate
	entry.Summary = "approved access request for " + req.Email
	entry.Metadata = map[string]any{"spawnedUserId": u.ID.String()}
	h.recorder.Record(r.Context(), entry)

	response.Success(w, http.StatusOK, toAccessRequestResponse(req), requestID)
}

// RejectAccessRequest handles POST /admin/access-requests/{id}/reject.
func (h *AdminHandler) RejectAccessRequest(w http.ResponseWriter, r *http.Request) {
	h.transitionRequest(w, r, "rejected access request for ", h.requests.Reject)
}

// RevokeAccessRequest handles POST /admin/access-requests/{id}/revoke. The
// spawned account is deactivated in the same transaction.
func (h *AdminHandler) RevokeAccessRequest(w http.ResponseWriter, r *http.Request) {
	h.transitionRequest(w, r, "revoked access request for ", h.requests.Revoke)
}

// Activity handles GET /admin/activity: the human-readable audit trail,
// without row snapshots.
func (h *AdminHandler) Activity(w http.ResponseWriter, r *http.Request) {
	h.listAudit(w, r, false)
}

// Changes handles GET /admin/changes: the low-level change log including
// before/after snapshots.
func (h *AdminHandler) Changes(w http.ResponseWriter, r *http.Request) {
	h.listAudit(w, r, true)
}

func (h *AdminHandler) listAudit(w http.ResponseWriter, r *http.Request, withSnapshots bool) {
	requestID := middleware.GetRequestID(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.auditLog.List(r.Context(), audit.Filter{
		Section: r.URL.Query().Get("section"),
		Action:  r.URL.Query().Get("action"),
		Limit:   limit,
	})
	if err != nil {
		slog.Error("failed to list audit entries", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list audit entries", requestID)
		return
	}

	items := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		item := auditEntryResponse{
			ID:         e.ID,
			At:         e.At.UTC().Format("2006-01-02T15:04:05Z"),
			ActorID:    e.ActorID,
			ActorEmail: e.ActorEmail,
			ActorRole:  e.ActorRole,
			Section:    e.Section,
			EntityKind: e.EntityKind,
			EntityID:   e.EntityID,
			Action:     e.Action,
			Summary:    e.Summary,
		}
		if withSnapshots {
			item.Before = e.Before
			item.After = e.After
			item.Metadata = e.Metadata
		}
		items = append(items, item)
	}

	response.Success(w, http.StatusOK, items, requestID)
}

func (h *AdminHandler) transitionRequest(w http.ResponseWriter, r *http.Request, summaryPrefix string,
	fn func(ctx context.Context, id uuid.UUID) (*accessrequest.Request, error)) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := h.parseRequestID(w, r, requestID)
	if !ok {
		return
	}

	req, err := fn(r.Context(), id)
	if err != nil {
		h.writeRequestError(w, err, requestID)
		return
	}

	entry := audit.ForActor(middleware.GetIdentity(r.Context()))
	entry.Section = "access"
	entry.EntityKind = "access_request"
	entry.EntityID = req.ID.String()
	entry.Action = audit.ActionUpdate
	entry.Summary = summaryPrefix + req.Email
	h.recorder.Record(r.Context(), entry)

	response.Success(w, http.StatusOK, toAccessRequestResponse(req), requestID)
}

func (h *AdminHandler) parseRequestID(w http.ResponseWriter, r *http.Request, requestID string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
		return uuid.Nil, false
	}
	return id, true
}

func (h *AdminHandler) writeUserError(w http.ResponseWriter, err error, requestID string) {
	if errors.Is(err, auth.ErrUserNotFound) {
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
		return
	}
	slog.Error("user update failed", "error", err)
	response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update user", requestID)
}

func (h *AdminHandler) writeRequestError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, accessrequest.ErrNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Access request not found", requestID)
	case errors.Is(err, accessrequest.ErrProcessed):
		response.Err(w, http.StatusConflict, "CONFLICT", "Access request already processed", requestID)
	default:
		slog.Error("access request operation failed", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process access request", requestID)
	}
}

func (h *AdminHandler) recordUserAction(r *http.Request, action string, u *auth.User, summary string) {
	entry := audit.ForActor(middleware.GetIdentity(r.Context()))
	entry.Section = "accounts"
	entry.EntityKind = "user"
	entry.EntityID = u.ID.String()
	entry.Action = action
	entry.Summary = summary
	entry.After = map[string]any{
		"email":  u.Email,
		"name":   u.Name,
		"role":   u.Role,
		"active": u.Active,
	}
	h.recorder.Record(r.Context(), entry)
}
