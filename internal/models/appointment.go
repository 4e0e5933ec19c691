package models

import (
	"time"
)

// Appointment provenance constants. Provenance records whether a booking
// came through the scheduling endpoint or was imported from an externally
// created calendar event.
const (
	ProvenanceScheduled        = "scheduled"
	ProvenanceExternallyBooked = "externally_booked"
)

// Appointment is an internal appointment record. Imported appointments are
// keyed by ExternalEventID so reprocessing the same change feed page can
// never create duplicates.
type Appointment struct {
	ID              string    `json:"id"`
	ClientID        string    `json:"client_id"`
	ContactID       string    `json:"contact_id,omitempty"`
	Title           string    `json:"title,omitempty"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Zone            string    `json:"zone"`
	Provenance      string    `json:"provenance"`
	ExternalEventID string    `json:"external_event_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Contact is a known contact of a client, matched against external event
// participants during reconciliation.
type Contact struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}
