package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opsboard/opsboard/internal/api/middleware"
	"github.com/opsboard/opsboard/internal/api/response"
	"github.com/opsboard/opsboard/internal/audit"
	"github.com/opsboard/opsboard/internal/resource"
)

// ResourceHandler serves the generic CRUD endpoints for one managed table.
// One instance is mounted per schema in the registry; every mutation emits
// exactly one audit entry.
type ResourceHandler struct {
	schema   *resource.Schema
	store    resource.Store
	recorder audit.Recorder
}

// NewResourceHandler creates a ResourceHandler for the given schema.
func NewResourceHandler(schema *resource.Schema, store resource.Store, recorder audit.Recorder) *ResourceHandler {
	return &ResourceHandler{schema: schema, store: store, recorder: recorder}
}

// List handles GET /api/{table}.
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	rows, err := h.store.List(r.Context(), h.schema)
	if err != nil {
		slog.Error("failed to list resource", "table", h.schema.Table, "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list "+h.schema.Table, requestID)
		return
	}

	response.Success(w, http.StatusOK, rows, requestID)
}

// Create handles POST /api/{table}.
func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	fields, ok := h.decodePayload(w, r, requestID)
	if !ok {
		return
	}

	row, err := h.store.Insert(r.Context(), h.schema, fields)
	if err != nil {
		h.writeStoreError(w, err, "create", requestID)
		return
	}

	h.audit(r, audit.ActionCreate, rowID(row), nil, row,
		fmt.Sprintf("created %s %s", h.schema.EntityKind, rowID(row)))

	response.Success(w, http.StatusCreated, row, requestID)
}

// Update handles PATCH /api/{table}/{id}.
func (h *ResourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := h.parseID(w, r, requestID)
	if !ok {
		return
	}

	patch, ok := h.decodePayload(w, r, requestID)
	if !ok {
		return
	}

	before, after, err := h.store.Update(r.Context(), h.schema, id, patch)
	if err != nil {
		h.writeStoreError(w, err, "update", requestID)
		return
	}

	h.audit(r, audit.ActionUpdate, rowID(after), before, after,
		fmt.Sprintf("updated %s %s", h.schema.EntityKind, rowID(after)))

	response.Success(w, http.StatusOK, after, requestID)
}

// Delete handles DELETE /api/{table}/{id}.
func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := h.parseID(w, r, requestID)
	if !ok {
		return
	}

	before, err := h.store.Delete(r.Context(), h.schema, id)
	if err != nil {
		h.writeStoreError(w, err, "delete", requestID)
		return
	}

	h.audit(r, audit.ActionDelete, rowID(before), before, nil,
		fmt.Sprintf("deleted %s %s", h.schema.EntityKind, rowID(before)))

	response.NoContent(w)
}

func (h *ResourceHandler) decodePayload(w http.ResponseWriter, r *http.Request, requestID string) (resource.Row, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var fields resource.Row
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be a JSON object", requestID)
		return nil, false
	}
	return fields, true
}

func (h *ResourceHandler) parseID(w http.ResponseWriter, r *http.Request, requestID string) (any, bool) {
	id, err := h.schema.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", err.Error(), requestID)
		return nil, false
	}
	return id, true
}

func (h *ResourceHandler) writeStoreError(w http.ResponseWriter, err error, op, requestID string) {
	var unknownCol *resource.UnknownColumnError
	switch {
	case errors.Is(err, resource.ErrEmptyPayload):
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "Payload must contain at least one field", requestID)
	case errors.As(err, &unknownCol):
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown field: "+unknownCol.Column, requestID)
	case errors.Is(err, resource.ErrImmutableID):
		response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "The id field cannot be changed", requestID)
	case errors.Is(err, resource.ErrNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "No such "+h.schema.EntityKind, requestID)
	case errors.Is(err, resource.ErrConflict):
		response.Err(w, http.StatusConflict, "CONFLICT", "Row conflicts with an existing "+h.schema.EntityKind, requestID)
	default:
		slog.Error("resource operation failed", "table", h.schema.Table, "op", op, "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to "+op+" "+h.schema.EntityKind, requestID)
	}
}

func (h *ResourceHandler) audit(r *http.Request, action, entityID string, before, after resource.Row, summary string) {
	entry := audit.ForActor(middleware.GetIdentity(r.Context()))
	entry.Section = h.schema.AuditSection
	entry.EntityKind = h.schema.EntityKind
	entry.EntityID = entityID
	entry.Action = action
	entry.Summary = summary
	entry.Before = before
	entry.After = after
	h.recorder.Record(r.Context(), entry)
}

func rowID(row resource.Row) string {
	if row == nil {
		return ""
	}
	return fmt.Sprintf("%v", row["id"])
}
