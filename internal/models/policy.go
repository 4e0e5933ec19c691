package models

import (
	"time"
)

// DateRange is an inclusive range of calendar dates in "2006-01-02" form.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// BusinessHoursRule restricts bookings to a wall-clock window on given
// weekdays. Start and End are "HH:MM" local times forming the half-open
// interval [Start, End).
type BusinessHoursRule struct {
	Days  []time.Weekday `json:"days"`
	Start string         `json:"start"`
	End   string         `json:"end"`
}

// AppliesOn reports whether the rule covers the given weekday
func (r BusinessHoursRule) AppliesOn(day time.Weekday) bool {
	for _, d := range r.Days {
		if d == day {
			return true
		}
	}
	return false
}

// Policy is a client's blocking policy. All date and time comparisons
// against a policy happen in the policy's zone, never the caller's.
type Policy struct {
	ClientID        string              `json:"client_id"`
	Zone            string              `json:"zone"` // IANA zone name
	CalendarID      string              `json:"calendar_id"`
	BusinessHours   []BusinessHoursRule `json:"business_hours,omitempty"`
	Vacations       []DateRange         `json:"vacations,omitempty"`
	ExcludedDates   []string            `json:"excluded_dates,omitempty"` // "2006-01-02" or "start|end"
	Holidays        []string            `json:"holidays,omitempty"`       // recurring "01-02" month-day
	MeetingDuration time.Duration       `json:"meeting_duration"`
}

// Location resolves the policy's IANA zone, defaulting to UTC when unset
func (p *Policy) Location() (*time.Location, error) {
	if p.Zone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(p.Zone)
}

// Duration returns the meeting duration, defaulting to 30 minutes
func (p *Policy) Duration() time.Duration {
	if p.MeetingDuration <= 0 {
		return 30 * time.Minute
	}
	return p.MeetingDuration
}
