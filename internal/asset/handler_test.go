package asset

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(store Store) *mux.Router {
	h := NewHandler(store, 0)
	r := mux.NewRouter()
	r.HandleFunc("/api/assets", h.Upload).Methods("POST")
	r.HandleFunc("/assets/{id}", h.Serve).Methods("GET")
	r.HandleFunc("/api/assets/{id}", h.Delete).Methods("DELETE")
	return r
}

func uploadRequest(t *testing.T, name string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/assets", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadServeDelete(t *testing.T) {
	store := NewDiskStore(t.TempDir(), "http://localhost:8080")
	r := newTestRouter(store)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "red.png", pngBytes(t, 5, 7, color.RGBA{255, 0, 0, 255})))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Width)
	assert.Equal(t, 7, resp.Height)
	assert.Equal(t, "http://localhost:8080/assets/"+resp.ID, resp.URL)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/"+resp.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")
	_, err := Decode(rec.Body.Bytes())
	assert.NoError(t, err)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/assets/"+resp.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/assets/"+resp.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadRejectsNonImage(t *testing.T) {
	r := newTestRouter(NewDiskStore(t.TempDir(), ""))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "notes.txt", []byte("hello there, not a picture")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeRejectsTraversal(t *testing.T) {
	r := newTestRouter(NewDiskStore(t.TempDir(), ""))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/..%2Fsecret", nil))
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestFetcherDataURLAndBlobs(t *testing.T) {
	store := NewDiskStore(t.TempDir(), "http://cdn.local")
	data := pngBytes(t, 3, 3, color.White)
	id, url, err := store.Put(context.Background(), data)
	require.NoError(t, err)

	f := NewHTTPFetcher(0, 1<<20, store, "http://cdn.local")

	got, err := f.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	got, err = f.Fetch(context.Background(), "/assets/"+id)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	got, err = f.Fetch(context.Background(), "data:image/png;base64,"+base64.StdEncoding.EncodeToString(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFetcherHTTPLimits(t *testing.T) {
	data := pngBytes(t, 16, 16, color.White)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(0, int64(len(data)), nil, "")
	got, err := f.Fetch(context.Background(), srv.URL+"/img.png")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)

	small := NewHTTPFetcher(0, 10, nil, "")
	_, err = small.Fetch(context.Background(), srv.URL+"/img.png")
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = f.Fetch(context.Background(), "/etc/passwd")
	assert.ErrorIs(t, err, ErrUnsupported)
}
