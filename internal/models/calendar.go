package models

import (
	"time"
)

// TimeSlot is a half-open interval [Start, End) holding a candidate or
// confirmed meeting. The time.Time values carry the IANA location they were
// constructed in; a slot is never built from a naked UTC shift.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeSlot builds a slot of the given duration
func NewTimeSlot(start time.Time, duration time.Duration) TimeSlot {
	return TimeSlot{Start: start, End: start.Add(duration)}
}

// Overlaps reports whether the slot overlaps the busy period using the
// half-open test: a slot that ends exactly when a busy period begins does
// not conflict.
func (s TimeSlot) Overlaps(b BusyPeriod) bool {
	return s.Start.Before(b.End) && s.End.After(b.Start)
}

// BusyPeriod is an externally reported occupied interval on a calendar.
// It is opaque to the engine; it may originate from a timed or all-day event.
type BusyPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CalendarEvent represents a changed event from the external calendar feed,
// normalized regardless of provider.
type CalendarEvent struct {
	ID        string     `json:"id"`
	Summary   string     `json:"summary"`
	Status    string     `json:"status"` // confirmed, tentative, cancelled
	Start     time.Time  `json:"start"`
	End       time.Time  `json:"end"`
	AllDay    bool       `json:"all_day"`
	Organizer *Attendee  `json:"organizer,omitempty"`
	Attendees []Attendee `json:"attendees,omitempty"`
	Updated   time.Time  `json:"updated"`
}

// Attendee represents an event participant
type Attendee struct {
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Organizer bool   `json:"organizer,omitempty"`
	Self      bool   `json:"self,omitempty"`
}

// Event status constants
const (
	EventStatusConfirmed = "confirmed"
	EventStatusTentative = "tentative"
	EventStatusCancelled = "cancelled"
)

// ExternalAttendee returns the first participant that is neither the
// calendar owner nor the organizer. Events without one are treated as
// internally created blocks and skipped by the reconciler.
func (e *CalendarEvent) ExternalAttendee() *Attendee {
	for i := range e.Attendees {
		a := &e.Attendees[i]
		if a.Self || a.Organizer {
			continue
		}
		if a.Email != "" {
			return a
		}
	}
	return nil
}
