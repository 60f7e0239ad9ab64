package handlers

import (
	"net/http"

	"github.com/hwahn/pricepulse/internal/ingest"
)

// StatusSource publishes the ingest worker's progress.
type StatusSource interface {
	Status() ingest.Status
}

// StatusHandler serves worker status reads.
type StatusHandler struct {
	worker StatusSource
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(worker StatusSource) *StatusHandler {
	return &StatusHandler{worker: worker}
}

// GetIngestStatus serves GET /api/ingest/status.
func (h *StatusHandler) GetIngestStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.worker.Status())
}
