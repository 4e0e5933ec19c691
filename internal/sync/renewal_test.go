package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appointment-scheduler/internal/models"
	"appointment-scheduler/internal/provider"
)

func TestEnsureSubscriptionCreatesChannel(t *testing.T) {
	store := newFakeStore()
	feed := &fakeFeed{}
	m := newTestManager(feed, store)

	state, err := m.EnsureSubscription(context.Background(), "client-1", "cal-1")
	require.NoError(t, err)

	assert.Equal(t, "channel-new", state.ChannelID)
	assert.Equal(t, "resource-new", state.ResourceID)
	assert.Equal(t, models.SyncStatusActive, state.Status)
	assert.Equal(t, 1, feed.subscriptions)

	stored, err := store.GetSyncState("client-1", "cal-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "channel-new", stored.ChannelID)
}

func TestEnsureSubscriptionReusesHealthyChannel(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.SaveSyncState(activeState()))
	feed := &fakeFeed{}
	m := newTestManager(feed, store)

	state, err := m.EnsureSubscription(context.Background(), "client-1", "cal-1")
	require.NoError(t, err)

	assert.Equal(t, "channel-1", state.ChannelID)
	assert.Zero(t, feed.subscriptions)
}

func TestEnsureSubscriptionPreservesTokenOnResubscribe(t *testing.T) {
	store := newFakeStore()
	state := activeState()
	state.SubscriptionExpiry = time.Now().Add(-time.Hour)
	require.NoError(t, store.SaveSyncState(state))
	feed := &fakeFeed{}
	m := newTestManager(feed, store)

	renewed, err := m.EnsureSubscription(context.Background(), "client-1", "cal-1")
	require.NoError(t, err)

	assert.Equal(t, "channel-new", renewed.ChannelID)
	assert.Equal(t, "token-1", renewed.SyncToken, "token must survive a channel swap")
}

func TestRenewExpiringSubscriptions(t *testing.T) {
	store := newFakeStore()
	state := activeState()
	state.SubscriptionExpiry = time.Now().Add(time.Hour)
	require.NoError(t, store.SaveSyncState(state))

	feed := &fakeFeed{}
	m := newTestManager(feed, store)

	require.NoError(t, m.RenewExpiringSubscriptions(context.Background(), 24*time.Hour))

	// new channel created before the old one was retired
	assert.Equal(t, 1, feed.subscriptions)
	assert.Equal(t, []string{"channel-1"}, feed.unsubscribed)

	stored, err := store.GetSyncState("client-1", "cal-1")
	require.NoError(t, err)
	assert.Equal(t, "channel-new", stored.ChannelID)
	assert.Equal(t, "token-1", stored.SyncToken)
}

func TestRenewSkipsDistantExpiries(t *testing.T) {
	store := newFakeStore()
	state := activeState()
	state.SubscriptionExpiry = time.Now().Add(72 * time.Hour)
	require.NoError(t, store.SaveSyncState(state))

	feed := &fakeFeed{}
	m := newTestManager(feed, store)

	require.NoError(t, m.RenewExpiringSubscriptions(context.Background(), 24*time.Hour))
	assert.Zero(t, feed.subscriptions)
}

func TestRenewFailureDoesNotPropagate(t *testing.T) {
	store := newFakeStore()
	state := activeState()
	state.SubscriptionExpiry = time.Now().Add(time.Hour)
	require.NoError(t, store.SaveSyncState(state))

	feed := &fakeFeed{subErr: assert.AnError}
	m := newTestManager(feed, store)

	require.NoError(t, m.RenewExpiringSubscriptions(context.Background(), 24*time.Hour))

	// the old channel stays in place for the next sweep to retry
	stored, err := store.GetSyncState("client-1", "cal-1")
	require.NoError(t, err)
	assert.Equal(t, "channel-1", stored.ChannelID)
	assert.Empty(t, feed.unsubscribed)
}

func TestRenewManyCalendars(t *testing.T) {
	store := newFakeStore()
	for _, pair := range []struct{ client, calendar, channel string }{
		{"client-1", "cal-1", "channel-1"},
		{"client-2", "cal-2", "channel-2"},
		{"client-3", "cal-3", "channel-3"},
	} {
		require.NoError(t, store.SaveSyncState(&models.SyncState{
			ClientID:           pair.client,
			CalendarID:         pair.calendar,
			ChannelID:          pair.channel,
			ResourceID:         "resource",
			SubscriptionExpiry: time.Now().Add(time.Hour),
			Status:             models.SyncStatusActive,
		}))
	}

	feed := &fakeFeed{}
	m := newTestManager(feed, store)

	require.NoError(t, m.RenewExpiringSubscriptions(context.Background(), 24*time.Hour))
	assert.Equal(t, 3, feed.subscriptions)
	assert.Len(t, feed.unsubscribed, 3)
}

var _ provider.Feed = (*fakeFeed)(nil)
