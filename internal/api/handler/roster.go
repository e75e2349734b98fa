package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/opsboard/opsboard/internal/api/middleware"
	"github.com/opsboard/opsboard/internal/api/response"
	"github.com/opsboard/opsboard/internal/api/validation"
	"github.com/opsboard/opsboard/internal/audit"
	"github.com/opsboard/opsboard/internal/roster"
)

type swapRequest struct {
	Kind     string `json:"kind"`
	Day      string `json:"day"`
	Shift    string `json:"shift"`
	FromSlot int    `json:"fromSlot"`
	ToSlot   int    `json:"toSlot"`
}

type assignmentResponse struct {
	ID        int64  `json:"id"`
	Kind      string `json:"kind"`
	Day       string `json:"day"`
	Shift     string `json:"shift"`
	Slot      int    `json:"slot"`
	Person    string `json:"person"`
	Phone     string `json:"phone"`
	UpdatedAt string `json:"updatedAt"`
}

type swapResponse struct {
	Moved     assignmentResponse  `json:"moved"`
	Displaced *assignmentResponse `json:"displaced,omitempty"`
}

func toAssignmentResponse(a *roster.Assignment) assignmentResponse {
	return assignmentResponse{
		ID:        a.ID,
		Kind:      a.Kind,
		Day:       a.Day,
		Shift:     a.Shift,
		Slot:      a.Slot,
		Person:    a.Person,
		Phone:     a.Phone,
		UpdatedAt: a.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// RosterHandler handles the atomic slot-swap route. Plain assignment CRUD
// goes through the generic resource routes.
type RosterHandler struct {
	swapper  roster.Swapper
	recorder audit.Recorder
}

// NewRosterHandler creates a new RosterHandler.
func NewRosterHandler(swapper roster.Swapper, recorder audit.Recorder) *RosterHandler {
	return &RosterHandler{swapper: swapper, recorder: recorder}
}

// Swap handles POST /api/roster/swap.
func (h *RosterHandler) Swap(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req swapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateSwapRequest(validation.SwapRequest{
		Kind:     req.Kind,
		Day:      req.Day,
		Shift:    req.Shift,
		FromSlot: req.FromSlot,
		ToSlot:   req.ToSlot,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	result, err := h.swapper.Swap(r.Context(), roster.SwapRequest{
		Kind:     req.Kind,
		Day:      req.Day,
		Shift:    req.Shift,
		FromSlot: req.FromSlot,
		ToSlot:   req.ToSlot,
	})
	if err != nil {
		if errors.Is(err, roster.ErrNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "No assignment in the source slot", requestID)
			return
		}
		slog.Error("slot swap failed", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to swap slots", requestID)
		return
	}

	entry := audit.ForActor(middleware.GetIdentity(r.Context()))
	entry.Section = "roster"
	entry.EntityKind = "roster_assignment"
	entry.EntityID = fmt.Sprintf("%d", result.Moved.ID)
	entry.Action = audit.ActionUpdate
	entry.Summary = fmt.Sprintf("moved %s from slot %d to slot %d (%s %s %s)",
		result.Moved.Person, req.FromSlot, req.ToSlot, req.Kind, req.Day, req.Shift)
	entry.Metadata = map[string]any{
		"kind":     req.Kind,
		"day":      req.Day,
		"shift":    req.Shift,
		"fromSlot": req.FromSlot,
		"toSlot":   req.ToSlot,
	}
	h.recorder.Record(r.Context(), entry)

	resp := swapResponse{Moved: toAssignmentResponse(&result.Moved)}
	if result.Displaced != nil {
		d := toAssignmentResponse(result.Displaced)
		resp.Displaced = &d
	}

	response.Success(w, http.StatusOK, resp, requestID)
}
