package schema

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/openbi/dataforge/internal/domain"

	"github.com/google/uuid"
)

// Handler exposes the schema registry over HTTP.
type Handler struct {
	registry *Registry
}

// NewHTTPHandler creates the registry's HTTP surface.
func NewHTTPHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// Register wires the registry routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/models", h.createModel)
	mux.HandleFunc("GET /api/models", h.listModels)
	mux.HandleFunc("GET /api/models/{id}", h.getModel)
	mux.HandleFunc("PATCH /api/models/{id}", h.updateModel)
	mux.HandleFunc("DELETE /api/models/{id}", h.retireModel)
	mux.HandleFunc("GET /api/models/{id}/rows", h.queryRows)
	mux.HandleFunc("GET /api/models/{id}/relationships", h.listRelationships)
	mux.HandleFunc("POST /api/relationships", h.createRelationship)
}

type createModelRequest struct {
	Name        string                   `json:"name"`
	DisplayName string                   `json:"display_name"`
	Description string                   `json:"description"`
	Fields      []domain.FieldDefinition `json:"fields"`
}

func (h *Handler) createModel(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req createModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	model, err := h.registry.CreateModel(r.Context(), actorID, CreateModelInput{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
		Fields:      req.Fields,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, model)
}

func (h *Handler) listModels(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	models, err := h.registry.ListModels(r.Context(), includeInactive)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}

func (h *Handler) getModel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	model, err := h.registry.GetModel(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model)
}

type updateModelRequest struct {
	DisplayName *string                  `json:"display_name"`
	Description *string                  `json:"description"`
	Active      *bool                    `json:"is_active"`
	Fields      []domain.FieldDefinition `json:"fields"`
}

func (h *Handler) updateModel(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req updateModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	model, err := h.registry.UpdateModel(r.Context(), actorID, id, UpdateModelInput{
		DisplayName: req.DisplayName,
		Description: req.Description,
		Active:      req.Active,
		Fields:      req.Fields,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model)
}

func (h *Handler) retireModel(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.registry.RetireModel(r.Context(), actorID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "data model deactivated"})
}

func (h *Handler) queryRows(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	page, err := h.registry.QueryModelRows(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) listRelationships(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rels, err := h.registry.ListRelationships(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rels)
}

type createRelationshipRequest struct {
	Name          string          `json:"name"`
	SourceModelID uuid.UUID       `json:"source_model_id"`
	TargetModelID uuid.UUID       `json:"target_model_id"`
	Kind          string          `json:"type"`
	FieldMapping  json.RawMessage `json:"config"`
}

func (h *Handler) createRelationship(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req createRelationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	rel, err := h.registry.CreateRelationship(
		r.Context(), actorID, req.Name,
		req.SourceModelID, req.TargetModelID,
		domain.RelationshipKind(req.Kind), req.FieldMapping,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

func actorFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := strings.TrimSpace(r.Header.Get("X-Actor-ID"))
	actorID, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "X-Actor-ID header is required", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return actorID, true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid id: "+err.Error(), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrModelNotFound),
		errors.Is(err, domain.ErrRelationshipTargetNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrDuplicateName),
		errors.Is(err, domain.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
