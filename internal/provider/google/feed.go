// Package google adapts the Google Calendar API to the provider.Feed
// interface: FreeBusy queries, incremental event listing with sync tokens,
// and push notification channels.
package google

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"appointment-scheduler/internal/common/errors"
	"appointment-scheduler/internal/models"
	"appointment-scheduler/internal/provider"
)

const pageSize = 250

// Feed implements provider.Feed against the Google Calendar API
type Feed struct {
	svc *calendar.Service
}

// NewFeed creates a feed using an already-authorized HTTP client. Token
// acquisition and refresh belong to the surrounding OAuth layer.
func NewFeed(ctx context.Context, client *http.Client) (*Feed, error) {
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, errors.ProviderError("failed to create calendar service", err)
	}
	return &Feed{svc: svc}, nil
}

// NewDefaultFeed creates a feed using Application Default Credentials
func NewDefaultFeed(ctx context.Context) (*Feed, error) {
	svc, err := calendar.NewService(ctx, option.WithScopes(calendar.CalendarEventsScope, calendar.CalendarReadonlyScope))
	if err != nil {
		return nil, errors.ProviderError("failed to create calendar service", err)
	}
	return &Feed{svc: svc}, nil
}

// QueryBusy returns the busy periods on a calendar inside [from, to)
func (f *Feed) QueryBusy(ctx context.Context, calendarID string, from, to time.Time) ([]models.BusyPeriod, error) {
	req := &calendar.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: calendarID}},
	}

	resp, err := f.svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, errors.ProviderError("freebusy query failed", err).WithContext("calendar_id", calendarID)
	}

	entry, ok := resp.Calendars[calendarID]
	if !ok {
		return nil, nil
	}

	periods := make([]models.BusyPeriod, 0, len(entry.Busy))
	for _, p := range entry.Busy {
		start, startErr := time.Parse(time.RFC3339, p.Start)
		end, endErr := time.Parse(time.RFC3339, p.End)
		if startErr != nil || endErr != nil {
			continue
		}
		periods = append(periods, models.BusyPeriod{Start: start, End: end})
	}
	return periods, nil
}

// ListChangedEvents pages through changed events. A 410 Gone response from
// the API is surfaced as a token-invalid error so the reconciler can clear
// its sync state instead of failing the pass.
func (f *Feed) ListChangedEvents(ctx context.Context, calendarID, syncToken string, since time.Time, pageToken string) (*provider.ChangePage, error) {
	call := f.svc.Events.List(calendarID).
		MaxResults(pageSize).
		ShowDeleted(true)

	if syncToken != "" {
		call = call.SyncToken(syncToken)
	} else {
		call = call.UpdatedMin(since.Format(time.RFC3339))
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if stderrors.As(err, &apiErr) && apiErr.Code == http.StatusGone {
			return nil, errors.TokenInvalidError(calendarID, err)
		}
		return nil, errors.ProviderError("event listing failed", err).WithContext("calendar_id", calendarID)
	}

	page := &provider.ChangePage{
		NextPageToken: resp.NextPageToken,
		NextSyncToken: resp.NextSyncToken,
	}
	for _, item := range resp.Items {
		page.Events = append(page.Events, toEvent(item))
	}
	return page, nil
}

// Subscribe opens a web_hook notification channel for the calendar
func (f *Feed) Subscribe(ctx context.Context, calendarID, callbackURL string) (*provider.Subscription, error) {
	channel := &calendar.Channel{
		Id:      uuid.NewString(),
		Type:    "web_hook",
		Address: callbackURL,
	}

	resp, err := f.svc.Events.Watch(calendarID, channel).Context(ctx).Do()
	if err != nil {
		return nil, errors.ProviderError("watch request failed", err).WithContext("calendar_id", calendarID)
	}

	return &provider.Subscription{
		ChannelID:  resp.Id,
		ResourceID: resp.ResourceId,
		Expiry:     time.UnixMilli(resp.Expiration),
	}, nil
}

// Unsubscribe stops a notification channel. The provider may have already
// expired the channel; callers treat failures here as best-effort.
func (f *Feed) Unsubscribe(ctx context.Context, channelID, resourceID string) error {
	err := f.svc.Channels.Stop(&calendar.Channel{Id: channelID, ResourceId: resourceID}).Context(ctx).Do()
	if err != nil {
		return errors.ProviderError("channel stop failed", err).WithContext("channel_id", channelID)
	}
	return nil
}

func toEvent(item *calendar.Event) models.CalendarEvent {
	ev := models.CalendarEvent{
		ID:      item.Id,
		Summary: item.Summary,
		Status:  item.Status,
	}

	if item.Updated != "" {
		if updated, err := time.Parse(time.RFC3339, item.Updated); err == nil {
			ev.Updated = updated
		}
	}

	// All-day events carry a Date instead of a DateTime
	if item.Start == nil || item.Start.DateTime == "" {
		ev.AllDay = true
	} else {
		if start, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
			ev.Start = start
		}
		if item.End != nil {
			if end, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
				ev.End = end
			}
		}
	}

	if item.Organizer != nil {
		ev.Organizer = &models.Attendee{
			Email:     item.Organizer.Email,
			Name:      item.Organizer.DisplayName,
			Organizer: true,
			Self:      item.Organizer.Self,
		}
	}
	for _, a := range item.Attendees {
		ev.Attendees = append(ev.Attendees, models.Attendee{
			Email:     a.Email,
			Name:      a.DisplayName,
			Organizer: a.Organizer,
			Self:      a.Self,
		})
	}
	return ev
}
