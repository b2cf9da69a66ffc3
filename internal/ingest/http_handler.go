package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/openbi/dataforge/internal/domain"

	"github.com/google/uuid"
)

// Handler exposes ingestion, rollback, and the ledger over HTTP.
type Handler struct {
	service *Service
}

// NewHTTPHandler creates the ingestion HTTP surface.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register wires the ingestion routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/uploads", h.upload)
	mux.HandleFunc("POST /api/uploads/preview", h.preview)
	mux.HandleFunc("GET /api/uploads", h.list)
	mux.HandleFunc("GET /api/uploads/{id}", h.get)
	mux.HandleFunc("POST /api/uploads/{id}/rollback", h.rollback)
}

// uploadForm is the shared multipart payload of the upload and preview routes.
type uploadForm struct {
	fileName      string
	declaredSize  int64
	data          []byte
	modelID       uuid.UUID
	columnMapping map[string]string
}

func parseUploadForm(w http.ResponseWriter, r *http.Request) (uploadForm, bool) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return uploadForm{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return uploadForm{}, false
	}
	defer file.Close()

	modelID, err := uuid.Parse(strings.TrimSpace(r.FormValue("model_id")))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid model id: %v", err), http.StatusBadRequest)
		return uploadForm{}, false
	}

	var columnMapping map[string]string
	if raw := strings.TrimSpace(r.FormValue("column_mapping")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &columnMapping); err != nil {
			http.Error(w, fmt.Sprintf("invalid column mapping: %v", err), http.StatusBadRequest)
			return uploadForm{}, false
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return uploadForm{}, false
	}

	return uploadForm{
		fileName:      header.Filename,
		declaredSize:  header.Size,
		data:          data,
		modelID:       modelID,
		columnMapping: columnMapping,
	}, true
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(w, r)
	if !ok {
		return
	}

	form, ok := parseUploadForm(w, r)
	if !ok {
		return
	}

	record, err := h.service.Ingest(r.Context(), Request{
		ModelID:       form.modelID,
		ActorID:       actorID,
		FileName:      form.fileName,
		DeclaredSize:  form.declaredSize,
		Data:          form.data,
		ColumnMapping: form.columnMapping,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFrom(w, r); !ok {
		return
	}

	form, ok := parseUploadForm(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.FormValue("rows")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	result, err := h.service.Preview(r.Context(), PreviewRequest{
		ModelID:       form.modelID,
		FileName:      form.fileName,
		Data:          form.data,
		ColumnMapping: form.columnMapping,
		Limit:         limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid ingestion id: %v", err), http.StatusBadRequest)
		return
	}

	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) rollback(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFrom(w, r)
	if !ok {
		return
	}

	ingestionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid ingestion id: %v", err), http.StatusBadRequest)
		return
	}

	record, err := h.service.Rollback(r.Context(), ingestionID, actorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var userID, modelID *uuid.UUID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid user id: %v", err), http.StatusBadRequest)
			return
		}
		userID = &id
	}
	if raw := r.URL.Query().Get("model_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid model id: %v", err), http.StatusBadRequest)
			return
		}
		modelID = &id
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.service.List(r.Context(), userID, modelID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
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

func writeError(w http.ResponseWriter, err error) {
	switch {
	case IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, ErrUnsupportedFormat):
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
