package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes attaches all HTTP routes to the router
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	r.HandleFunc("/api/schedule", h.HandleScheduleRequest).Methods(http.MethodPost)
	r.HandleFunc("/api/appointments", h.ListAppointments).Methods(http.MethodGet)
	r.HandleFunc("/api/appointments", h.BookAppointment).Methods(http.MethodPost)
	r.HandleFunc("/api/subscriptions", h.CreateSubscription).Methods(http.MethodPost)

	r.HandleFunc("/notifications/calendar", h.HandleCalendarNotification).Methods(http.MethodPost)
}
