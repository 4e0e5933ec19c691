// Package provider defines the calendar feed collaborators consumed by the
// scheduling engine. Implementations do not retry internally; callers own
// deadlines and retry policy, and every method honors its context.
package provider

import (
	"context"
	"time"

	"appointment-scheduler/internal/models"
)

// ChangePage is one page of changed events from an incremental sync
type ChangePage struct {
	Events        []models.CalendarEvent
	NextPageToken string
	// NextSyncToken is only set on the final page of a pass
	NextSyncToken string
}

// Subscription identifies a push notification channel on the provider side
type Subscription struct {
	ChannelID  string
	ResourceID string
	Expiry     time.Time
}

// Feed is the external calendar consumed by slot search and reconciliation.
// ListChangedEvents reports an invalid or expired sync token through an
// error satisfying errors.IsType(err, errors.ErrTypeTokenInvalid).
type Feed interface {
	// QueryBusy returns the busy periods on a calendar inside [from, to)
	QueryBusy(ctx context.Context, calendarID string, from, to time.Time) ([]models.BusyPeriod, error)

	// ListChangedEvents pages through events changed since syncToken, or
	// since the given time when no token is held yet
	ListChangedEvents(ctx context.Context, calendarID, syncToken string, since time.Time, pageToken string) (*ChangePage, error)

	// Subscribe opens a push notification channel for a calendar
	Subscribe(ctx context.Context, calendarID, callbackURL string) (*Subscription, error)

	// Unsubscribe retires a push notification channel
	Unsubscribe(ctx context.Context, channelID, resourceID string) error
}

// BusySource is a read-only secondary source of busy periods, merged with
// the primary feed's answer when configured.
type BusySource interface {
	QueryBusy(ctx context.Context, calendarID string, from, to time.Time) ([]models.BusyPeriod, error)
}
