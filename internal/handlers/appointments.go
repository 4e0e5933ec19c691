package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"appointment-scheduler/internal/common/errors"
	"appointment-scheduler/internal/models"
)

// AppointmentResponse is the wire shape of an appointment
type AppointmentResponse struct {
	ID              string `json:"id"`
	ClientID        string `json:"clientId"`
	ContactID       string `json:"contactId,omitempty"`
	Title           string `json:"title"`
	Start           string `json:"start"`
	End             string `json:"end"`
	Zone            string `json:"zone,omitempty"`
	Provenance      string `json:"provenance"`
	ExternalEventID string `json:"externalEventId,omitempty"`
}

// BookRequest asks for a concrete appointment at an exact start time
type BookRequest struct {
	ClientID string `json:"clientId"`
	Start    string `json:"start"` // RFC 3339
	Title    string `json:"title"`
}

// ListAppointments returns a client's appointments inside a time window.
// from/to default to the next seven days.
func (h *Handlers) ListAppointments(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		h.writeError(w, errors.ValidationError("client_id is required"))
		return
	}

	from := time.Now().UTC()
	to := from.Add(7 * 24 * time.Hour)
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, errors.ValidationError("from must be RFC 3339"))
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, errors.ValidationError("to must be RFC 3339"))
			return
		}
		to = parsed
	}

	appointments, err := h.store.ListAppointments(clientID, from, to)
	if err != nil {
		h.writeError(w, errors.InternalError("failed to list appointments", err))
		return
	}

	out := make([]AppointmentResponse, 0, len(appointments))
	for _, a := range appointments {
		out = append(out, toAppointmentResponse(a))
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"appointments": out})
}

// BookAppointment commits an appointment after a fresh availability check.
// A slot that filled up in the meantime comes back 409 with alternatives.
func (h *Handlers) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.ValidationError("invalid request body"))
		return
	}
	if req.ClientID == "" || req.Start == "" {
		h.writeError(w, errors.ValidationError("clientId and start are required"))
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		h.writeError(w, errors.ValidationError("start must be RFC 3339"))
		return
	}

	appointment, alternatives, err := h.scheduler.Book(r.Context(), req.ClientID, start, req.Title)
	if err != nil {
		if errors.IsType(err, errors.ErrTypeRaceLost) {
			zone := start.Location()
			h.writeJSON(w, http.StatusConflict, map[string]interface{}{
				"error":        err.Error(),
				"alternatives": humanize(alternatives, zone),
			})
			return
		}
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toAppointmentResponse(appointment))
}

func toAppointmentResponse(a *models.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		ClientID:        a.ClientID,
		ContactID:       a.ContactID,
		Title:           a.Title,
		Start:           a.Start.Format(time.RFC3339),
		End:             a.End.Format(time.RFC3339),
		Zone:            a.Zone,
		Provenance:      a.Provenance,
		ExternalEventID: a.ExternalEventID,
	}
}
