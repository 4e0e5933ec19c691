package sync

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"appointment-scheduler/internal/common/errors"
	"appointment-scheduler/internal/common/logging"
	"appointment-scheduler/internal/models"
)

// renewalParallelism caps concurrent provider calls during a sweep
const renewalParallelism = 4

// EnsureSubscription makes sure an active push channel exists for the pair,
// creating the channel and the sync state row on first use.
func (m *Manager) EnsureSubscription(ctx context.Context, clientID, calendarID string) (*models.SyncState, error) {
	existing, err := m.store.GetSyncState(clientID, calendarID)
	if err != nil {
		return nil, errors.InternalError("failed to load sync state", err)
	}
	if existing != nil && existing.Status == models.SyncStatusActive && existing.SubscriptionExpiry.After(m.now()) {
		return existing, nil
	}

	sub, err := m.feed.Subscribe(ctx, calendarID, m.callbackURL)
	if err != nil {
		return nil, err
	}

	state := &models.SyncState{
		ClientID:           clientID,
		CalendarID:         calendarID,
		ChannelID:          sub.ChannelID,
		ResourceID:         sub.ResourceID,
		SubscriptionExpiry: sub.Expiry,
		Status:             models.SyncStatusActive,
	}
	if existing != nil {
		// token survives a re-subscribe; only the channel is new
		state.SyncToken = existing.SyncToken
	}
	if err := m.store.SaveSyncState(state); err != nil {
		return nil, errors.InternalError("failed to save sync state", err)
	}

	m.logger.Info("Calendar subscription created",
		logging.Field{Key: "client_id", Value: clientID},
		logging.Field{Key: "calendar_id", Value: calendarID},
		logging.Field{Key: "expiry", Value: sub.Expiry.Format(time.RFC3339)})
	return state, nil
}

// RenewExpiringSubscriptions replaces every subscription expiring inside
// the lead window. A replacement channel is created before the old one is
// retired; retirement failures are logged only, since the provider may
// already consider the old channel gone. Zero due subscriptions is a no-op.
func (m *Manager) RenewExpiringSubscriptions(ctx context.Context, lead time.Duration) error {
	due, err := m.store.ListSyncStatesExpiringBefore(m.now().Add(lead))
	if err != nil {
		return errors.InternalError("failed to list expiring subscriptions", err)
	}
	if len(due) == 0 {
		m.logger.Debug("No subscriptions due for renewal")
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(renewalParallelism)
	for _, state := range due {
		state := state
		g.Go(func() error {
			m.renewOne(ctx, state)
			return nil
		})
	}
	return g.Wait()
}

// renewOne renews a single subscription. Failures are logged, not
// propagated: the next sweep retries, and one broken calendar must not
// block the others.
func (m *Manager) renewOne(ctx context.Context, state *models.SyncState) {
	sub, err := m.feed.Subscribe(ctx, state.CalendarID, m.callbackURL)
	if err != nil {
		m.logger.Error("Failed to create replacement subscription", err,
			logging.Field{Key: "client_id", Value: state.ClientID},
			logging.Field{Key: "calendar_id", Value: state.CalendarID})
		return
	}

	if err := m.store.ReplaceSubscription(state.ClientID, state.CalendarID, sub.ChannelID, sub.ResourceID, sub.Expiry); err != nil {
		m.logger.Error("Failed to persist replacement subscription", err,
			logging.Field{Key: "client_id", Value: state.ClientID},
			logging.Field{Key: "calendar_id", Value: state.CalendarID})
		return
	}

	// best-effort retirement of the superseded channel
	if err := m.feed.Unsubscribe(ctx, state.ChannelID, state.ResourceID); err != nil {
		m.logger.Warn("Failed to retire old subscription",
			logging.Field{Key: "channel_id", Value: state.ChannelID},
			logging.Field{Key: "error", Value: err.Error()})
	}

	m.logger.Info("Subscription renewed",
		logging.Field{Key: "client_id", Value: state.ClientID},
		logging.Field{Key: "calendar_id", Value: state.CalendarID},
		logging.Field{Key: "expiry", Value: sub.Expiry.Format(time.RFC3339)})
}

// StartRenewalSchedule runs renewal sweeps on the given cron spec until the
// returned cron is stopped
func (m *Manager) StartRenewalSchedule(spec string, lead time.Duration) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := m.RenewExpiringSubscriptions(ctx, lead); err != nil {
			m.logger.Error("Renewal sweep failed", err)
		}
	})
	if err != nil {
		return nil, errors.ConfigError("invalid renewal cron spec " + spec)
	}
	c.Start()
	return c, nil
}
