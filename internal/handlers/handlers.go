// Package handlers exposes the scheduling engine over HTTP: the scheduling
// request endpoint, the calendar push notification webhook, appointment
// reads/bookings and subscription management.
package handlers

import (
	"encoding/json"
	"net/http"

	"appointment-scheduler/internal/common/errors"
	"appointment-scheduler/internal/common/logging"
	"appointment-scheduler/internal/scheduling"
	"appointment-scheduler/internal/storage"
	"appointment-scheduler/internal/sync"
)

// Handlers bundles the HTTP handlers and their collaborators
type Handlers struct {
	store     storage.Storage
	scheduler *scheduling.Service
	syncMgr   *sync.Manager
	logger    logging.Logger
}

// New creates the handler set
func New(store storage.Storage, scheduler *scheduling.Service, syncMgr *sync.Manager, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		store:     store,
		scheduler: scheduler,
		syncMgr:   syncMgr,
		logger:    logger,
	}
}

// HealthCheck reports service and storage health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Health(); err != nil {
		h.writeError(w, errors.InternalError("storage unhealthy", err))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetType(err) {
	case errors.ErrTypeParse, errors.ErrTypeValidation:
		status = http.StatusUnprocessableEntity
	case errors.ErrTypeNotFound:
		status = http.StatusNotFound
	case errors.ErrTypeRaceLost:
		status = http.StatusConflict
	case errors.ErrTypeProvider:
		status = http.StatusBadGateway
	case errors.ErrTypeTimeout:
		status = http.StatusGatewayTimeout
	}

	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
