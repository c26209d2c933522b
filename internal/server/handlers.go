package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/wenyongqd/anniversary/internal/blobstore"
	"github.com/wenyongqd/anniversary/internal/logging"
	"github.com/wenyongqd/anniversary/internal/services"
)

// UploadResponse is the success body of both upload endpoints.
type UploadResponse struct {
	URL string `json:"url"`
}

// ConfigResponse is the body of GET /api/config.
type ConfigResponse struct {
	APIKey string `json:"apiKey"`
}

func (s *Server) handleUploadJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeText(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if !json.Valid(body) {
		writeText(w, http.StatusBadRequest, "body is not valid JSON")
		return
	}
	s.put(w, r, blobstore.KindTimeline, "application/json", body)
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeText(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(contentType, "image/") {
		writeText(w, http.StatusUnsupportedMediaType, "content type must be an image")
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if len(body) == 0 {
		writeText(w, http.StatusBadRequest, "image body is empty")
		return
	}
	s.put(w, r, blobstore.KindImage, contentType, body)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeText(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.apiKey == "" {
		writeText(w, http.StatusNotFound, "no api key configured")
		return
	}
	s.writeJSON(w, http.StatusOK, ConfigResponse{APIKey: s.apiKey})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeText(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeText(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, blobstore.FilesPrefix)
	if !blobstore.ValidName(name) {
		writeText(w, http.StatusNotFound, "not found")
		return
	}
	file, contentType, err := s.files.Open(name)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeText(w, http.StatusNotFound, "not found")
			return
		}
		writeText(w, http.StatusInternalServerError, "open object failed")
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		writeText(w, http.StatusInternalServerError, "stat object failed")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, name, info.ModTime(), file)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeText(w, http.StatusRequestEntityTooLarge, "body exceeds upload limit")
			return nil, false
		}
		writeText(w, http.StatusBadRequest, "read body failed")
		return nil, false
	}
	return body, true
}

func (s *Server) put(w http.ResponseWriter, r *http.Request, kind, contentType string, body []byte) {
	obj := blobstore.Object{
		Name:        blobstore.NewName(kind, contentType, s.now()),
		ContentType: contentType,
		Data:        body,
	}
	url, err := s.store.Put(r.Context(), obj)
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "blob store put failed", "blob_put_failed",
			logging.Error(err),
			logging.String("object", obj.Name),
			logging.String(logging.FieldErrorHint, "check storage backend credentials and reachability"),
		)
		writeText(w, http.StatusBadGateway, "store object failed")
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("object stored",
		logging.String("object", obj.Name),
		logging.String("content_type", contentType),
		logging.Int("bytes", len(body)),
	)
	s.writeJSON(w, http.StatusOK, UploadResponse{URL: url})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, message+"\n")
}
