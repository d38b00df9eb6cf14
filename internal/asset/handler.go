package asset

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

const maxUploadSize = 32 << 20 // 32MB

// UploadResponse is returned from the upload endpoint.
type UploadResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Type   string `json:"type"`
	Name   string `json:"name"`
}

// Handler serves asset upload and retrieval endpoints.
type Handler struct {
	store   Store
	maxSize int64
}

// NewHandler creates a new asset handler backed by store. maxSize <= 0
// uses the default upload limit.
func NewHandler(store Store, maxSize int64) *Handler {
	if maxSize <= 0 {
		maxSize = maxUploadSize
	}
	return &Handler{store: store, maxSize: maxSize}
}

// Upload handles POST /api/assets (multipart form with "file" field). Any
// decodable raster is accepted and stored re-encoded as PNG.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize)

	if err := r.ParseMultipartForm(h.maxSize); err != nil {
		http.Error(w, "file too large", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}

	img, err := Decode(data)
	if err != nil {
		http.Error(w, "invalid image: "+err.Error(), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		slog.Error("encode png", "error", err)
		http.Error(w, "failed to encode image", http.StatusInternalServerError)
		return
	}

	id, url, err := h.store.Put(r.Context(), buf.Bytes())
	if err != nil {
		slog.Error("store asset", "error", err)
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}

	b := img.Bounds()
	writeJSON(w, http.StatusCreated, UploadResponse{
		ID:     id,
		URL:    url,
		Width:  b.Dx(),
		Height: b.Dy(),
		Type:   "png",
		Name:   header.Filename,
	})
}

// Serve handles GET /assets/{id}.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	path, err := h.store.Path(id)
	if err != nil {
		http.Error(w, "asset not found", http.StatusNotFound)
		return
	}
	// Asset IDs are unique, so files are immutable
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}

// Delete handles DELETE /api/assets/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.store.Delete(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "asset not found", http.StatusNotFound)
			return
		}
		slog.Error("delete asset", "error", err, "asset", id)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
