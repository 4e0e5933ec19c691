package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"appointment-scheduler/internal/common/errors"
)

// SubscribeRequest asks for a push channel on a client's calendar
type SubscribeRequest struct {
	ClientID   string `json:"clientId"`
	CalendarID string `json:"calendarId"`
}

// CreateSubscription ensures an active push channel exists for the pair.
// Calling it again while the channel is healthy returns the existing one.
func (h *Handlers) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.ValidationError("invalid request body"))
		return
	}
	if req.ClientID == "" || req.CalendarID == "" {
		h.writeError(w, errors.ValidationError("clientId and calendarId are required"))
		return
	}

	state, err := h.syncMgr.EnsureSubscription(r.Context(), req.ClientID, req.CalendarID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"channelId": state.ChannelID,
		"expiry":    state.SubscriptionExpiry.Format(time.RFC3339),
		"status":    string(state.Status),
	})
}
