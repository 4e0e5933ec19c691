// Package storage defines the persistence interface for appointments,
// contacts, client policies and sync states, with adapters for SQLite and
// PostgreSQL behind it.
package storage

import (
	"time"

	"appointment-scheduler/internal/models"
)

type Storage interface {
	Close() error
	Health() error

	// Appointments. CreateAppointment enforces uniqueness on the external
	// event id so a replayed change page cannot import twice.
	CreateAppointment(appointment *models.Appointment) error
	AppointmentExistsByExternalEventID(externalEventID string) (bool, error)
	ListAppointments(clientID string, from, to time.Time) ([]*models.Appointment, error)

	// Contacts. FindContactByEmail returns (nil, nil) when no contact
	// matches; an unmatched participant is not an error.
	CreateContact(contact *models.Contact) error
	FindContactByEmail(clientID, email string) (*models.Contact, error)

	// Policies
	GetPolicy(clientID string) (*models.Policy, error)
	SavePolicy(policy *models.Policy) error

	// Sync states. UpdateSyncToken and ClearSyncToken mutate only the
	// token; ReplaceSubscription swaps the channel fields wholesale.
	GetSyncState(clientID, calendarID string) (*models.SyncState, error)
	GetSyncStateByChannelID(channelID string) (*models.SyncState, error)
	SaveSyncState(state *models.SyncState) error
	UpdateSyncToken(clientID, calendarID, token string) error
	ClearSyncToken(clientID, calendarID string) error
	ReplaceSubscription(clientID, calendarID, channelID, resourceID string, expiry time.Time) error
	ListSyncStatesExpiringBefore(cutoff time.Time) ([]*models.SyncState, error)
}
