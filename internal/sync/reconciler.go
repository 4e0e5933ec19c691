// Package sync keeps internal appointment records consistent with an
// externally mutated calendar. Push notifications trigger incremental
// reconciliation passes driven by a resumable sync token; passes for the
// same (client, calendar) key are serialized through a keyed lock, while
// passes for different keys run independently.
package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"appointment-scheduler/internal/common/errors"
	"appointment-scheduler/internal/common/logging"
	"appointment-scheduler/internal/locks"
	"appointment-scheduler/internal/models"
	"appointment-scheduler/internal/provider"
	"appointment-scheduler/internal/storage"
)

const (
	// passLockTTL bounds how long a crashed instance can starve a key
	passLockTTL = 5 * time.Minute

	// resourceStateSync is the initial acknowledgment notification sent
	// when a channel is opened; it carries no changes
	resourceStateSync = "sync"
)

// Manager owns calendar synchronization for all clients
type Manager struct {
	feed        provider.Feed
	store       storage.Storage
	locker      locks.KeyedLocker
	logger      logging.Logger
	callbackURL string

	now func() time.Time // injectable for tests
}

// NewManager creates a sync manager
func NewManager(feed provider.Feed, store storage.Storage, locker locks.KeyedLocker, callbackURL string, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Manager{
		feed:        feed,
		store:       store,
		locker:      locker,
		logger:      logger,
		callbackURL: callbackURL,
		now:         time.Now,
	}
}

// HandleNotification processes one push notification for a channel. The
// initial "sync" acknowledgment is a no-op; anything else triggers a single
// reconciliation pass for the channel's (client, calendar) key.
func (m *Manager) HandleNotification(ctx context.Context, channelID, resourceState string) error {
	if resourceState == resourceStateSync {
		m.logger.Debug("Channel acknowledgment received", logging.Field{Key: "channel_id", Value: channelID})
		return nil
	}

	state, err := m.store.GetSyncStateByChannelID(channelID)
	if err != nil {
		return errors.InternalError("failed to load sync state", err).WithContext("channel_id", channelID)
	}
	if state == nil {
		return errors.NotFoundError("subscription").WithContext("channel_id", channelID)
	}
	if state.Status != models.SyncStatusActive {
		m.logger.Debug("Ignoring notification for stopped subscription",
			logging.Field{Key: "channel_id", Value: channelID})
		return nil
	}

	return m.locker.Do(ctx, state.Key(), passLockTTL, func(ctx context.Context) error {
		// re-read under the lock; a concurrent pass may have advanced
		// or cleared the token while we waited
		fresh, err := m.store.GetSyncState(state.ClientID, state.CalendarID)
		if err != nil {
			return errors.InternalError("failed to reload sync state", err)
		}
		if fresh == nil {
			return errors.NotFoundError("sync state")
		}
		return m.reconcile(ctx, fresh)
	})
}

// reconcile runs one pass: page through changed events since the stored
// token, import what qualifies, then persist the new token. The token is
// written only after every page succeeded, so a cancelled or failed pass
// leaves the stored state exactly as it was.
func (m *Manager) reconcile(ctx context.Context, state *models.SyncState) error {
	// With no token, sync starts from "now": historical events are never
	// imported on a first (or recovery) pass.
	since := m.now().UTC()

	zone := ""
	if policy, err := m.store.GetPolicy(state.ClientID); err == nil {
		zone = policy.Zone
	}

	var (
		pageToken string
		newToken  string
		imported  int
	)
	for {
		page, err := m.feed.ListChangedEvents(ctx, state.CalendarID, state.SyncToken, since, pageToken)
		if err != nil {
			if errors.IsType(err, errors.ErrTypeTokenInvalid) {
				// expired token: clear it and let the next pass start
				// fresh from "now" instead of failing the notification
				m.logger.Warn("Sync token expired, forcing fresh sync",
					logging.Field{Key: "client_id", Value: state.ClientID},
					logging.Field{Key: "calendar_id", Value: state.CalendarID})
				if clearErr := m.store.ClearSyncToken(state.ClientID, state.CalendarID); clearErr != nil {
					return errors.InternalError("failed to clear sync token", clearErr)
				}
				return nil
			}
			return err
		}

		for _, event := range page.Events {
			ok, err := m.importEvent(ctx, state, event, zone)
			if err != nil {
				// per-event failures never abort the rest of the page
				m.logger.Error("Failed to import event", err,
					logging.Field{Key: "event_id", Value: event.ID},
					logging.Field{Key: "client_id", Value: state.ClientID})
				continue
			}
			if ok {
				imported++
			}
		}

		if page.NextSyncToken != "" {
			newToken = page.NextSyncToken
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if newToken != "" && newToken != state.SyncToken {
		if err := m.store.UpdateSyncToken(state.ClientID, state.CalendarID, newToken); err != nil {
			return errors.InternalError("failed to persist sync token", err)
		}
	}

	m.logger.Info("Reconciliation pass complete",
		logging.Field{Key: "client_id", Value: state.ClientID},
		logging.Field{Key: "calendar_id", Value: state.CalendarID},
		logging.Field{Key: "imported", Value: imported})
	return nil
}

// importEvent applies the skip rules and creates an appointment for a
// qualifying externally created event. Returns true when an appointment was
// created.
func (m *Manager) importEvent(ctx context.Context, state *models.SyncState, event models.CalendarEvent, zone string) (bool, error) {
	if event.Status == models.EventStatusCancelled {
		return false, nil
	}
	// all-day and untimed events are blocks, not meetings
	if event.AllDay || event.Start.IsZero() || event.End.IsZero() {
		return false, nil
	}

	exists, err := m.store.AppointmentExistsByExternalEventID(event.ID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	// events with no identifiable external participant were created by
	// this system or by the professional directly
	attendee := event.ExternalAttendee()
	if attendee == nil {
		return false, nil
	}

	contact, err := m.store.FindContactByEmail(state.ClientID, attendee.Email)
	if err != nil {
		return false, err
	}

	appointment := &models.Appointment{
		ID:              uuid.NewString(),
		ClientID:        state.ClientID,
		Title:           event.Summary,
		Start:           event.Start,
		End:             event.End,
		Zone:            zone,
		Provenance:      models.ProvenanceExternallyBooked,
		ExternalEventID: event.ID,
		CreatedAt:       m.now().UTC(),
	}
	if contact != nil {
		appointment.ContactID = contact.ID
	}

	if err := m.store.CreateAppointment(appointment); err != nil {
		return false, err
	}
	return true, nil
}
