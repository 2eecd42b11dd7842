package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"coherence/internal/service"
	"coherence/internal/transport/rest/middleware"
)

// multipart field names accepted for the recording
var uploadFields = []string{"video", "file"}

var streamContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
}

// VideoHandler handles upload, status, results and streaming
type VideoHandler struct {
	videoSvc *service.VideoService
	maxBytes int64
	logger   *slog.Logger
}

// NewVideoHandler creates a new video handler. maxBytes bounds the request
// body; zero disables the bound.
func NewVideoHandler(videoSvc *service.VideoService, maxBytes int64, logger *slog.Logger) *VideoHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoHandler{videoSvc: videoSvc, maxBytes: maxBytes, logger: logger.With("component", "video_handler")}
}

// Upload handles POST /api/videos/upload
func (h *VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		// Room for the multipart envelope around the file itself
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeMissingFile, "Expected a multipart upload with a video file", false)
		return
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			h.writeUploadReadError(w, err)
			return
		}
		if !isUploadField(part.FormName()) || part.FileName() == "" {
			part.Close()
			continue
		}

		resp, err := h.videoSvc.Submit(r.Context(), service.UploadInput{
			Reader:      part,
			Filename:    part.FileName(),
			ContentType: partContentType(part.Header.Get("Content-Type"), part.FileName()),
			Size:        -1,
			OwnerID:     middleware.GetUserID(r.Context()),
		})
		part.Close()
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				err = service.ErrVideoTooLarge
			}
			writeServiceError(w, h.logger, err, "Video not found")
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	writeError(w, http.StatusBadRequest, CodeMissingFile, "No video file in upload", false)
}

func (h *VideoHandler) writeUploadReadError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeServiceError(w, h.logger, service.ErrVideoTooLarge, "")
		return
	}
	writeError(w, http.StatusBadRequest, CodeMissingFile, "Malformed multipart upload", false)
}

func isUploadField(name string) bool {
	for _, f := range uploadFields {
		if name == f {
			return true
		}
	}
	return false
}

// partContentType falls back to the file extension when the client sent a
// generic or empty type.
func partContentType(declared, filename string) string {
	ct := strings.TrimSpace(declared)
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if byExt, ok := streamContentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return byExt
	}
	if byExt := mime.TypeByExtension(filepath.Ext(filename)); byExt != "" {
		return byExt
	}
	return ct
}

// Status handles GET /api/videos/{id}/status
func (h *VideoHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.videoSvc.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, err, "Video not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Results handles GET /api/videos/{id}/results
func (h *VideoHandler) Results(w http.ResponseWriter, r *http.Request) {
	result, err := h.videoSvc.Result(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, err, "Results not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Coaching handles POST /api/videos/{id}/coaching
func (h *VideoHandler) Coaching(w http.ResponseWriter, r *http.Request) {
	result, err := h.videoSvc.RegenerateCoaching(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, err, "Results not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Delete handles DELETE /api/videos/{id}
func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.videoSvc.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, h.logger, err, "Video not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stream handles GET /api/videos/{id}/stream with range support
func (h *VideoHandler) Stream(w http.ResponseWriter, r *http.Request) {
	path, err := h.videoSvc.VideoPath(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, err, "Video file not found")
		return
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeServiceError(w, h.logger, service.ErrNotFound, "Video file not found")
			return
		}
		writeServiceError(w, h.logger, err, "")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeServiceError(w, h.logger, err, "")
		return
	}
	if ct, ok := streamContentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Accept-Ranges", "bytes")
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}
