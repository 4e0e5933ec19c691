// Package sqlite implements the storage interface on SQLite, the default
// single-node backend.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"appointment-scheduler/internal/models"
)

type Adapter struct {
	db     *sql.DB
	config *Config
}

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{
		db:     db,
		config: config,
	}

	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health() error {
	return a.db.Ping()
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS appointments (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			contact_id TEXT DEFAULT '',
			title TEXT DEFAULT '',
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			zone TEXT NOT NULL,
			provenance TEXT NOT NULL,
			external_event_id TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_external_event
			ON appointments(external_event_id) WHERE external_event_id != ''`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_client_start
			ON appointments(client_id, start_time)`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			name TEXT DEFAULT '',
			email TEXT NOT NULL,
			phone TEXT DEFAULT '',
			UNIQUE(client_id, email)
		)`,
		`CREATE TABLE IF NOT EXISTS policies (
			client_id TEXT PRIMARY KEY,
			zone TEXT NOT NULL,
			calendar_id TEXT DEFAULT '',
			business_hours TEXT DEFAULT '[]',
			vacations TEXT DEFAULT '[]',
			excluded_dates TEXT DEFAULT '[]',
			holidays TEXT DEFAULT '[]',
			meeting_duration_minutes INTEGER DEFAULT 30
		)`,
		`CREATE TABLE IF NOT EXISTS sync_states (
			client_id TEXT NOT NULL,
			calendar_id TEXT NOT NULL,
			sync_token TEXT DEFAULT '',
			channel_id TEXT DEFAULT '',
			resource_id TEXT DEFAULT '',
			subscription_expiry DATETIME,
			status TEXT NOT NULL DEFAULT 'active',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (client_id, calendar_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_states_channel ON sync_states(channel_id)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Appointments

func (a *Adapter) CreateAppointment(appointment *models.Appointment) error {
	if appointment.CreatedAt.IsZero() {
		appointment.CreatedAt = time.Now().UTC()
	}
	_, err := a.db.Exec(
		`INSERT INTO appointments (id, client_id, contact_id, title, start_time, end_time, zone, provenance, external_event_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		appointment.ID, appointment.ClientID, appointment.ContactID, appointment.Title,
		appointment.Start, appointment.End, appointment.Zone, appointment.Provenance,
		appointment.ExternalEventID, appointment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (a *Adapter) AppointmentExistsByExternalEventID(externalEventID string) (bool, error) {
	if externalEventID == "" {
		return false, nil
	}
	var count int
	err := a.db.QueryRow(
		`SELECT COUNT(1) FROM appointments WHERE external_event_id = ?`, externalEventID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check appointment existence: %w", err)
	}
	return count > 0, nil
}

func (a *Adapter) ListAppointments(clientID string, from, to time.Time) ([]*models.Appointment, error) {
	rows, err := a.db.Query(
		`SELECT id, client_id, contact_id, title, start_time, end_time, zone, provenance, external_event_id, created_at
		 FROM appointments
		 WHERE client_id = ? AND start_time >= ? AND start_time < ?
		 ORDER BY start_time`,
		clientID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var appointments []*models.Appointment
	for rows.Next() {
		appt := &models.Appointment{}
		if err := rows.Scan(
			&appt.ID, &appt.ClientID, &appt.ContactID, &appt.Title,
			&appt.Start, &appt.End, &appt.Zone, &appt.Provenance,
			&appt.ExternalEventID, &appt.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, appt)
	}
	return appointments, rows.Err()
}

// Contacts

func (a *Adapter) CreateContact(contact *models.Contact) error {
	_, err := a.db.Exec(
		`INSERT INTO contacts (id, client_id, name, email, phone) VALUES (?, ?, ?, ?, ?)`,
		contact.ID, contact.ClientID, contact.Name, contact.Email, contact.Phone,
	)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

func (a *Adapter) FindContactByEmail(clientID, email string) (*models.Contact, error) {
	contact := &models.Contact{}
	err := a.db.QueryRow(
		`SELECT id, client_id, name, email, phone FROM contacts
		 WHERE client_id = ? AND email = ? COLLATE NOCASE`,
		clientID, email,
	).Scan(&contact.ID, &contact.ClientID, &contact.Name, &contact.Email, &contact.Phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contact: %w", err)
	}
	return contact, nil
}

// Policies

func (a *Adapter) GetPolicy(clientID string) (*models.Policy, error) {
	var (
		policy          = &models.Policy{}
		businessHours   string
		vacations       string
		excludedDates   string
		holidays        string
		durationMinutes int
	)
	err := a.db.QueryRow(
		`SELECT client_id, zone, calendar_id, business_hours, vacations, excluded_dates, holidays, meeting_duration_minutes
		 FROM policies WHERE client_id = ?`, clientID,
	).Scan(&policy.ClientID, &policy.Zone, &policy.CalendarID, &businessHours, &vacations, &excludedDates, &holidays, &durationMinutes)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("policy for client %s not found", clientID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	if err := json.Unmarshal([]byte(businessHours), &policy.BusinessHours); err != nil {
		return nil, fmt.Errorf("failed to decode business hours: %w", err)
	}
	if err := json.Unmarshal([]byte(vacations), &policy.Vacations); err != nil {
		return nil, fmt.Errorf("failed to decode vacations: %w", err)
	}
	if err := json.Unmarshal([]byte(excludedDates), &policy.ExcludedDates); err != nil {
		return nil, fmt.Errorf("failed to decode excluded dates: %w", err)
	}
	if err := json.Unmarshal([]byte(holidays), &policy.Holidays); err != nil {
		return nil, fmt.Errorf("failed to decode holidays: %w", err)
	}
	policy.MeetingDuration = time.Duration(durationMinutes) * time.Minute
	return policy, nil
}

func (a *Adapter) SavePolicy(policy *models.Policy) error {
	businessHours, err := json.Marshal(policy.BusinessHours)
	if err != nil {
		return fmt.Errorf("failed to encode business hours: %w", err)
	}
	vacations, err := json.Marshal(policy.Vacations)
	if err != nil {
		return fmt.Errorf("failed to encode vacations: %w", err)
	}
	excludedDates, err := json.Marshal(policy.ExcludedDates)
	if err != nil {
		return fmt.Errorf("failed to encode excluded dates: %w", err)
	}
	holidays, err := json.Marshal(policy.Holidays)
	if err != nil {
		return fmt.Errorf("failed to encode holidays: %w", err)
	}

	_, err = a.db.Exec(
		`INSERT INTO policies (client_id, zone, calendar_id, business_hours, vacations, excluded_dates, holidays, meeting_duration_minutes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(client_id) DO UPDATE SET
			zone = excluded.zone,
			calendar_id = excluded.calendar_id,
			business_hours = excluded.business_hours,
			vacations = excluded.vacations,
			excluded_dates = excluded.excluded_dates,
			holidays = excluded.holidays,
			meeting_duration_minutes = excluded.meeting_duration_minutes`,
		policy.ClientID, policy.Zone, policy.CalendarID,
		string(businessHours), string(vacations), string(excludedDates), string(holidays),
		int(policy.Duration()/time.Minute),
	)
	if err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}
	return nil
}

// Sync states

const syncStateColumns = `client_id, calendar_id, sync_token, channel_id, resource_id, subscription_expiry, status, updated_at`

func (a *Adapter) scanSyncState(row *sql.Row) (*models.SyncState, error) {
	state := &models.SyncState{}
	err := row.Scan(
		&state.ClientID, &state.CalendarID, &state.SyncToken,
		&state.ChannelID, &state.ResourceID, &state.SubscriptionExpiry,
		&state.Status, &state.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync state: %w", err)
	}
	return state, nil
}

func (a *Adapter) GetSyncState(clientID, calendarID string) (*models.SyncState, error) {
	row := a.db.QueryRow(
		`SELECT `+syncStateColumns+` FROM sync_states WHERE client_id = ? AND calendar_id = ?`,
		clientID, calendarID,
	)
	return a.scanSyncState(row)
}

func (a *Adapter) GetSyncStateByChannelID(channelID string) (*models.SyncState, error) {
	row := a.db.QueryRow(
		`SELECT `+syncStateColumns+` FROM sync_states WHERE channel_id = ?`,
		channelID,
	)
	return a.scanSyncState(row)
}

func (a *Adapter) SaveSyncState(state *models.SyncState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	_, err := a.db.Exec(
		`INSERT INTO sync_states (client_id, calendar_id, sync_token, channel_id, resource_id, subscription_expiry, status, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(client_id, calendar_id) DO UPDATE SET
			sync_token = excluded.sync_token,
			channel_id = excluded.channel_id,
			resource_id = excluded.resource_id,
			subscription_expiry = excluded.subscription_expiry,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		state.ClientID, state.CalendarID, state.SyncToken,
		state.ChannelID, state.ResourceID, state.SubscriptionExpiry,
		state.Status, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	return nil
}

func (a *Adapter) UpdateSyncToken(clientID, calendarID, token string) error {
	_, err := a.db.Exec(
		`UPDATE sync_states SET sync_token = ?, updated_at = ? WHERE client_id = ? AND calendar_id = ?`,
		token, time.Now().UTC(), clientID, calendarID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sync token: %w", err)
	}
	return nil
}

func (a *Adapter) ClearSyncToken(clientID, calendarID string) error {
	return a.UpdateSyncToken(clientID, calendarID, "")
}

func (a *Adapter) ReplaceSubscription(clientID, calendarID, channelID, resourceID string, expiry time.Time) error {
	_, err := a.db.Exec(
		`UPDATE sync_states SET channel_id = ?, resource_id = ?, subscription_expiry = ?, status = ?, updated_at = ?
		 WHERE client_id = ? AND calendar_id = ?`,
		channelID, resourceID, expiry, models.SyncStatusActive, time.Now().UTC(), clientID, calendarID,
	)
	if err != nil {
		return fmt.Errorf("failed to replace subscription: %w", err)
	}
	return nil
}

func (a *Adapter) ListSyncStatesExpiringBefore(cutoff time.Time) ([]*models.SyncState, error) {
	rows, err := a.db.Query(
		`SELECT `+syncStateColumns+` FROM sync_states WHERE status = ? AND subscription_expiry < ?`,
		models.SyncStatusActive, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring sync states: %w", err)
	}
	defer rows.Close()

	var states []*models.SyncState
	for rows.Next() {
		state := &models.SyncState{}
		if err := rows.Scan(
			&state.ClientID, &state.CalendarID, &state.SyncToken,
			&state.ChannelID, &state.ResourceID, &state.SubscriptionExpiry,
			&state.Status, &state.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync state: %w", err)
		}
		states = append(states, state)
	}
	return states, rows.Err()
}
