package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"appointment-scheduler/internal/common/errors"
	"appointment-scheduler/internal/common/logging"
	"appointment-scheduler/internal/models"
	"appointment-scheduler/internal/scheduling"
)

// humanTimeLayout is the shape client-facing times are rendered in
const humanTimeLayout = "Monday, January 2 at 3:04 PM"

// ScheduleRequest is the wire shape of an inbound scheduling request
type ScheduleRequest struct {
	RequestedTimeString string `json:"requestedTimeString"`
	ClientID            string `json:"clientId"`
}

// ScheduleResponse is the wire shape of the answer
type ScheduleResponse struct {
	Available     bool     `json:"available"`
	RequestedTime *string  `json:"requestedTime"`
	Alternatives  []string `json:"alternatives"`
	Message       string   `json:"message,omitempty"`
}

// HandleScheduleRequest answers a natural language scheduling request
func (h *Handlers) HandleScheduleRequest(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.ValidationError("invalid request body"))
		return
	}
	if req.ClientID == "" {
		h.writeError(w, errors.ValidationError("clientId is required"))
		return
	}

	result, err := h.scheduler.HandleRequest(r.Context(), req.ClientID, req.RequestedTimeString)
	if err != nil {
		h.writeError(w, err)
		return
	}

	switch result.Outcome {
	case scheduling.OutcomeParseFailed:
		h.logger.Warn("Unparseable scheduling request",
			logging.Field{Key: "client_id", Value: req.ClientID},
			logging.Field{Key: "reason", Value: result.Reason})
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": result.Reason})

	case scheduling.OutcomeNeedsTime:
		h.writeJSON(w, http.StatusOK, ScheduleResponse{
			Available:    false,
			Alternatives: humanize(result.Alternatives, result.Zone),
			Message:      "a date was understood but no time of day; pick one of the suggestions",
		})

	case scheduling.OutcomeAvailable:
		requested := result.Slot.Start.In(result.Zone).Format(humanTimeLayout)
		h.writeJSON(w, http.StatusOK, ScheduleResponse{
			Available:     true,
			RequestedTime: &requested,
			Alternatives:  humanize(result.Alternatives, result.Zone),
		})

	default:
		h.writeJSON(w, http.StatusOK, ScheduleResponse{
			Available:    false,
			Alternatives: humanize(result.Alternatives, result.Zone),
		})
	}
}

// humanize renders slot starts in the client's zone. The slice is never nil
// so the wire field serializes as [] rather than null.
func humanize(slots []models.TimeSlot, zone *time.Location) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start.In(zone).Format(humanTimeLayout))
	}
	return out
}
