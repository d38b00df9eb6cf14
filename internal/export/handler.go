package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/visualgpt/visualgpt/compositor/internal/crop"
	"github.com/visualgpt/visualgpt/compositor/internal/engine"
)

const maxRequestSize = 8 << 20 // 8MB of layer JSON

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Render handles POST /api/export/render: flatten, store, reply with JSON.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	var req FlattenRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.service.Flatten(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RenderPNG handles POST /api/export/render.png: flatten and stream the
// PNG without storing it.
func (h *Handler) RenderPNG(w http.ResponseWriter, r *http.Request) {
	var req FlattenRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.service.Render(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.PNG)))
	w.WriteHeader(http.StatusOK)
	w.Write(res.PNG)
}

// Crop handles POST /api/export/crop.
func (h *Handler) Crop(w http.ResponseWriter, r *http.Request) {
	var req CropRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.service.Crop(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// CropPreview handles POST /api/export/crop/preview?max=N and returns the
// crop tool's display rendering as PNG.
func (h *Handler) CropPreview(w http.ResponseWriter, r *http.Request) {
	var req CropRequest
	if !decode(w, r, &req) {
		return
	}
	displayMax, err := strconv.Atoi(r.URL.Query().Get("max"))
	if err != nil || displayMax <= 0 {
		displayMax = 800
	}
	img, err := h.service.Preview(r.Context(), req, displayMax)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		slog.Error("encode crop preview", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, crop.ErrEmptyRegion):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrNoBaseImage), errors.Is(err, ErrSourceImage):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrUpload):
		slog.Error("export upload failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "storing export failed"})
	default:
		slog.Error("export failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
