package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/oguidomingos/datagem2/pkg/common/logger"
	"github.com/oguidomingos/datagem2/pkg/common/models"
	"github.com/oguidomingos/datagem2/pkg/connection"
	"github.com/oguidomingos/datagem2/pkg/connector"
	"github.com/oguidomingos/datagem2/pkg/tap"
)

// RunLister serves the run-history endpoint.
type RunLister interface {
	ListByConnection(ctx context.Context, connectionID string, limit int) ([]Run, error)
}

type HTTPHandler struct {
	service *Service
	runs    RunLister
}

func NewHTTPHandler(service *Service, runs RunLister) *HTTPHandler {
	return &HTTPHandler{service: service, runs: runs}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/connections/{id}/sync", h.handleSync).Methods(http.MethodPost)
	router.HandleFunc("/connections/{id}/runs", h.handleRuns).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleSync(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	summary, err := h.service.Sync(r.Context(), id)
	if err != nil {
		writeSyncError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *HTTPHandler) handleRuns(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	limit := parseLimit(r, 20)

	runs, err := h.runs.ListByConnection(r.Context(), id, limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list sync runs")
		writeJSON(w, http.StatusInternalServerError, models.SyncFailure{Error: "internal", Message: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connection_id": id,
		"runs":          runs,
		"count":         len(runs),
	})
}

// writeSyncError maps the orchestrator's error taxonomy onto HTTP: the
// caller always gets a structured {error, message} body with a category.
func writeSyncError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, connection.ErrNotFound):
		writeJSON(w, http.StatusNotFound, models.SyncFailure{
			Error:   "not_found",
			Message: fmt.Sprintf("connection %s not found", id),
		})
	case errors.Is(err, ErrSyncInProgress):
		writeJSON(w, http.StatusConflict, models.SyncFailure{
			Error:   "sync_in_progress",
			Message: fmt.Sprintf("a sync for connection %s is already running", id),
		})
	case tap.IsConfigError(err), errors.Is(err, connector.ErrUnknownType):
		writeJSON(w, http.StatusBadRequest, models.SyncFailure{Error: "config_error", Message: err.Error()})
	case tap.IsDiscoveryError(err):
		writeJSON(w, http.StatusInternalServerError, models.SyncFailure{Error: "discovery_error", Message: err.Error()})
	case tap.IsExecError(err):
		writeJSON(w, http.StatusInternalServerError, models.SyncFailure{Error: "extractor_error", Message: err.Error()})
	case IsPersistenceError(err):
		writeJSON(w, http.StatusInternalServerError, models.SyncFailure{Error: "persistence_error", Message: err.Error()})
	default:
		logger.Log.WithError(err).Error("sync failed")
		writeJSON(w, http.StatusInternalServerError, models.SyncFailure{Error: "internal", Message: "internal error"})
	}
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
