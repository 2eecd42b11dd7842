package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"coherence/internal/model"
	"coherence/internal/service"
)

// SampleListResponse lists the demo samples
type SampleListResponse struct {
	Samples   []model.Sample `json:"samples"`
	AllCached bool           `json:"allCached"`
}

// SampleInfoResponse identifies a sample whose results are ready
type SampleInfoResponse struct {
	VideoID string                `json:"videoId"`
	Status  model.ProcessingState `json:"status"`
	model.Sample
}

// SampleHandler serves the demo samples
type SampleHandler struct {
	videoSvc *service.VideoService
	logger   *slog.Logger
}

func NewSampleHandler(videoSvc *service.VideoService, logger *slog.Logger) *SampleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SampleHandler{videoSvc: videoSvc, logger: logger}
}

// List handles GET /api/videos/samples
func (h *SampleHandler) List(w http.ResponseWriter, r *http.Request) {
	samples := h.videoSvc.Samples()
	allCached := len(samples) > 0
	for _, s := range samples {
		allCached = allCached && s.Cached
	}
	writeJSON(w, http.StatusOK, SampleListResponse{Samples: samples, AllCached: allCached})
}

// Get handles GET /api/videos/samples/{id}; the id may also be a title
func (h *SampleHandler) Get(w http.ResponseWriter, r *http.Request) {
	sample, ok := service.LookupSample(mux.Vars(r)["id"])
	if !ok {
		writeServiceError(w, h.logger, service.ErrNotFound, "Sample not found")
		return
	}
	for _, s := range h.videoSvc.Samples() {
		if s.ID == sample.ID {
			sample = s
		}
	}
	writeJSON(w, http.StatusOK, SampleInfoResponse{
		VideoID: sample.ID,
		Status:  model.StatusComplete,
		Sample:  sample,
	})
}
