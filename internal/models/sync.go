package models

import (
	"fmt"
	"time"
)

// Sync subscription status constants
const (
	SyncStatusActive  = "active"
	SyncStatusStopped = "stopped"
)

// SyncState tracks incremental synchronization for one (client, calendar)
// pair. SyncToken is empty before the first successful pass and after a
// token invalidation; the next pass then starts fresh from "now" instead of
// replaying history. The subscription fields are replaced wholesale on
// renewal.
type SyncState struct {
	ClientID           string    `json:"client_id"`
	CalendarID         string    `json:"calendar_id"`
	SyncToken          string    `json:"sync_token,omitempty"`
	ChannelID          string    `json:"channel_id"`
	ResourceID         string    `json:"resource_id"`
	SubscriptionExpiry time.Time `json:"subscription_expiry"`
	Status             string    `json:"status"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Key returns the serialization key for reconciliation passes. Passes
// sharing a key must never run concurrently.
func (s *SyncState) Key() string {
	return fmt.Sprintf("%s:%s", s.ClientID, s.CalendarID)
}
