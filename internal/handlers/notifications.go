package handlers

import (
	"net/http"

	"appointment-scheduler/internal/common/logging"
)

// Google push notification headers
const (
	headerChannelID     = "X-Goog-Channel-ID"
	headerResourceState = "X-Goog-Resource-State"
)

// HandleCalendarNotification receives calendar push notifications and kicks
// off a reconciliation pass. The provider only cares about the status code:
// 2xx acknowledges, anything else triggers a redelivery.
func (h *Handlers) HandleCalendarNotification(w http.ResponseWriter, r *http.Request) {
	channelID := r.Header.Get(headerChannelID)
	resourceState := r.Header.Get(headerResourceState)

	if channelID == "" {
		h.logger.Warn("Notification without channel id",
			logging.Field{Key: "remote_addr", Value: r.RemoteAddr})
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.syncMgr.HandleNotification(r.Context(), channelID, resourceState); err != nil {
		h.logger.Error("Notification processing failed", err,
			logging.Field{Key: "channel_id", Value: channelID},
			logging.Field{Key: "resource_state", Value: resourceState})
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
