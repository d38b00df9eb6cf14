package visual

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/visualgpt/visualgpt/compositor/internal/engine"
	"github.com/visualgpt/visualgpt/compositor/internal/export"
	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	BaseURL string `json:"baseUrl"`
}

type layersRequest struct {
	Layers layer.List `json:"layers"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	v, err := h.service.Create(r.Context(), req.BaseURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Get(r.Context(), mux.Vars(r)["visualId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) UpdateLayers(w http.ResponseWriter, r *http.Request) {
	var req layersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid layers"})
		return
	}

	v, err := h.service.UpdateLayers(r.Context(), mux.Vars(r)["visualId"], req.Layers)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, v)
}

// Save flattens and persists. An empty body saves the stored layers.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	var req layersRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid layers"})
			return
		}
	}

	res, err := h.service.Save(r.Context(), mux.Vars(r)["visualId"], req.Layers)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) StartOver(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.StartOver(r.Context(), mux.Vars(r)["visualId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["visualId"]); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrNoBaseImage):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "base image could not be loaded"})
	case errors.Is(err, export.ErrUpload):
		slog.Error("visual upload failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "storing export failed"})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
