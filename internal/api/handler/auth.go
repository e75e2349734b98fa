package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/opsboard/opsboard/internal/api/middleware"
	"github.com/opsboard/opsboard/internal/api/response"
	"github.com/opsboard/opsboard/internal/api/validation"
	"github.com/opsboard/opsboard/internal/audit"
	"github.com/opsboard/opsboard/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		UpdatedAt: u.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// AuthHandler handles login, identity echo and logout.
type AuthHandler struct {
	authService *auth.Service
	users       auth.Repository
	recorder    audit.Recorder
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *auth.Service, users auth.Repository, recorder audit.Recorder) *AuthHandler {
	return &AuthHandler{authService: authService, users: users, recorder: recorder}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateLoginRequest(validation.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	token, u, err := h.authService.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", requestID)
			return
		}
		slog.Error("login failed", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed", requestID)
		return
	}

	entry := audit.Entry{
		ActorID:    u.ID.String(),
		ActorEmail: u.Email,
		ActorRole:  u.Role,
		Section:    "auth",
		EntityKind: "session",
		EntityID:   u.ID.String(),
		Action:     audit.ActionLogin,
		Summary:    u.Email + " logged in",
	}
	h.recorder.Record(r.Context(), entry)

	response.Success(w, http.StatusOK, loginResponse{
		Token: token,
		User:  toUserResponse(u),
	}, requestID)
}

// Me handles GET /me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", requestID)
		return
	}

	u, err := h.users.GetByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", requestID)
			return
		}
		slog.Error("failed to load current user", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load user", requestID)
		return
	}

	response.Success(w, http.StatusOK, toUserResponse(u), requestID)
}

// Logout handles POST /auth/logout. Tokens are stateless, so this only
// leaves an audit trace; invalidation happens through deactivation.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	entry := audit.ForActor(identity)
	entry.Section = "auth"
	entry.EntityKind = "session"
	entry.Action = audit.ActionLogout
	if identity != nil {
		entry.EntityID = identity.UserID.String()
		entry.Summary = identity.Email + " logged out"
	}
	h.recorder.Record(r.Context(), entry)

	response.NoContent(w)
}
