package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/hwahn/pricepulse/internal/reconcile"
	"github.com/hwahn/pricepulse/internal/refresh"
	"github.com/hwahn/pricepulse/pkg/logger"
)

// AdminHandler exposes the operator triggers for reconciliation and close
// refresh. Both run synchronously and return the job's structured report.
type AdminHandler struct {
	engine  *reconcile.Engine
	refresh *refresh.Job
	logger  *logger.Logger
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(engine *reconcile.Engine, refreshJob *refresh.Job, log *logger.Logger) *AdminHandler {
	return &AdminHandler{engine: engine, refresh: refreshJob, logger: log}
}

// ReconcileRequest is the reconciliation trigger body.
type ReconcileRequest struct {
	Limit  int  `json:"limit"`
	DryRun bool `json:"dryRun"`
}

// Reconcile serves POST /api/admin/reconcile.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	report, err := h.engine.Run(r.Context(), reconcile.Params{Limit: req.Limit, DryRun: req.DryRun})
	if err != nil {
		h.logger.WithError(err).Error("Reconciliation run failed")
		respondError(w, http.StatusInternalServerError, "Reconciliation failed")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// RefreshRequest is the close-refresh trigger body.
type RefreshRequest struct {
	Force bool `json:"force"`
}

// Refresh serves POST /api/admin/refresh.
func (h *AdminHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	report, err := h.refresh.Run(r.Context(), refresh.Params{Force: req.Force})
	if err != nil {
		h.logger.WithError(err).Error("Close refresh failed")
		respondError(w, http.StatusInternalServerError, "Refresh failed")
		return
	}

	respondJSON(w, http.StatusOK, report)
}
