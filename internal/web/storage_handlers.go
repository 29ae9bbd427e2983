package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/evcraddock/vigia/internal/auth"
	"github.com/evcraddock/vigia/internal/metrics"
	"github.com/evcraddock/vigia/internal/objectstore"
	"github.com/evcraddock/vigia/internal/photo"
)

// parsePhotoPath splits visits/{id}/photos/{name}.
func parsePhotoPath(p string) (visitID, name string, ok bool) {
	parts := strings.Split(p, "/")
	if len(parts) != 4 || parts[0] != "visits" || parts[2] != "photos" {
		return "", "", false
	}
	visitID, name = parts[1], parts[3]
	if visitID == "" || name == "" || strings.HasPrefix(name, ".") {
		return "", "", false
	}
	return visitID, name, true
}

// handleUpload stores a photo for a visit: PUT /api/storage/visits/{id}/photos/{name}.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	objectPath := strings.TrimPrefix(r.URL.Path, "/api/storage/")
	visitID, name, ok := parsePhotoPath(objectPath)
	if !ok {
		apiError(w, "path must be visits/{id}/photos/{name}", http.StatusBadRequest)
		return
	}

	v, ok := s.loadVisit(w, r, visitID)
	if !ok {
		return
	}
	if !canModify(auth.UserFromContext(r.Context()), v) {
		apiError(w, "cannot modify this visit", http.StatusForbidden)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, photo.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apiError(w, fmt.Sprintf("photo exceeds %d bytes", photo.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		apiError(w, "reading upload", http.StatusBadRequest)
		return
	}

	mime, accepted := photo.Detect(data)
	if !accepted {
		apiError(w, fmt.Sprintf("unsupported photo type %s", mime), http.StatusUnsupportedMediaType)
		return
	}
	if ext, _ := photo.Extension(mime); path.Ext(name) != "."+ext {
		apiError(w, fmt.Sprintf("file name must end in .%s for %s", ext, mime), http.StatusBadRequest)
		return
	}

	n, err := s.objects.Put(objectPath, bytes.NewReader(data))
	if err != nil {
		apiError(w, fmt.Sprintf("storing photo: %v", err), http.StatusInternalServerError)
		return
	}

	metrics.PhotosUploaded.Inc()
	metrics.PhotoUploadBytes.Observe(float64(n))
	slog.Info("photo stored", "visit", visitID, "name", name, "bytes", n)

	apiJSON(w, map[string]string{"url": s.objects.URL(objectPath)}, http.StatusCreated)
}

// handlePublicObject serves stored photos without authentication:
// GET /storage/visits/{id}/photos/{name}.
func (s *Server) handlePublicObject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	objectPath := strings.TrimPrefix(r.URL.Path, "/storage/")
	if _, _, ok := parsePhotoPath(objectPath); !ok {
		http.NotFound(w, r)
		return
	}

	f, err := s.objects.Open(objectPath)
	if errors.Is(err, objectstore.ErrNotFound) || errors.Is(err, objectstore.ErrInvalidPath) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("opening object", "path", objectPath, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			fmt.Printf("warning: closing object: %v\n", cerr)
		}
	}()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
