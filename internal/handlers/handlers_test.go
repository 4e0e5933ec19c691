package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appointment-scheduler/internal/common/errors"
	"appointment-scheduler/internal/common/logging"
	"appointment-scheduler/internal/locks"
	"appointment-scheduler/internal/models"
	"appointment-scheduler/internal/provider"
	"appointment-scheduler/internal/scheduling"
	"appointment-scheduler/internal/slots"
	syncpkg "appointment-scheduler/internal/sync"
	"appointment-scheduler/internal/timeparse"
)

// memStore is a minimal in-memory Storage for handler tests
type memStore struct {
	policies     map[string]*models.Policy
	states       map[string]*models.SyncState
	appointments []*models.Appointment
	healthErr    error
}

func newMemStore() *memStore {
	return &memStore{
		policies: make(map[string]*models.Policy),
		states:   make(map[string]*models.SyncState),
	}
}

func (s *memStore) Close() error  { return nil }
func (s *memStore) Health() error { return s.healthErr }

func (s *memStore) CreateAppointment(a *models.Appointment) error {
	s.appointments = append(s.appointments, a)
	return nil
}

func (s *memStore) AppointmentExistsByExternalEventID(id string) (bool, error) {
	for _, a := range s.appointments {
		if a.ExternalEventID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) ListAppointments(clientID string, from, to time.Time) ([]*models.Appointment, error) {
	var out []*models.Appointment
	for _, a := range s.appointments {
		if a.ClientID == clientID && !a.Start.Before(from) && a.Start.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) CreateContact(*models.Contact) error { return nil }
func (s *memStore) FindContactByEmail(string, string) (*models.Contact, error) {
	return nil, nil
}

func (s *memStore) GetPolicy(clientID string) (*models.Policy, error) {
	p, ok := s.policies[clientID]
	if !ok {
		return nil, errors.NotFoundError("policy")
	}
	return p, nil
}

func (s *memStore) SavePolicy(p *models.Policy) error {
	s.policies[p.ClientID] = p
	return nil
}

func (s *memStore) GetSyncState(clientID, calendarID string) (*models.SyncState, error) {
	return s.states[clientID+":"+calendarID], nil
}

func (s *memStore) GetSyncStateByChannelID(channelID string) (*models.SyncState, error) {
	for _, state := range s.states {
		if state.ChannelID == channelID {
			return state, nil
		}
	}
	return nil, nil
}

func (s *memStore) SaveSyncState(state *models.SyncState) error {
	s.states[state.Key()] = state
	return nil
}

func (s *memStore) UpdateSyncToken(clientID, calendarID, token string) error {
	if state, ok := s.states[clientID+":"+calendarID]; ok {
		state.SyncToken = token
	}
	return nil
}

func (s *memStore) ClearSyncToken(clientID, calendarID string) error {
	return s.UpdateSyncToken(clientID, calendarID, "")
}

func (s *memStore) ReplaceSubscription(clientID, calendarID, channelID, resourceID string, expiry time.Time) error {
	if state, ok := s.states[clientID+":"+calendarID]; ok {
		state.ChannelID = channelID
		state.ResourceID = resourceID
		state.SubscriptionExpiry = expiry
	}
	return nil
}

func (s *memStore) ListSyncStatesExpiringBefore(time.Time) ([]*models.SyncState, error) {
	return nil, nil
}

// memFeed serves static busy periods and change pages
type memFeed struct {
	busy  []models.BusyPeriod
	pages []*provider.ChangePage
	calls int
}

func (f *memFeed) QueryBusy(context.Context, string, time.Time, time.Time) ([]models.BusyPeriod, error) {
	return f.busy, nil
}

func (f *memFeed) ListChangedEvents(context.Context, string, string, time.Time, string) (*provider.ChangePage, error) {
	if f.calls >= len(f.pages) {
		return &provider.ChangePage{NextSyncToken: "token-next"}, nil
	}
	page := f.pages[f.calls]
	f.calls++
	return page, nil
}

func (f *memFeed) Subscribe(context.Context, string, string) (*provider.Subscription, error) {
	return &provider.Subscription{
		ChannelID:  "channel-new",
		ResourceID: "resource-new",
		Expiry:     time.Now().Add(7 * 24 * time.Hour),
	}, nil
}

func (f *memFeed) Unsubscribe(context.Context, string, string) error { return nil }

func newTestRouter(t *testing.T, store *memStore, feed *memFeed) *mux.Router {
	t.Helper()
	logger := logging.NewDefaultLogger()

	scheduler := scheduling.NewService(scheduling.Options{
		Parser: timeparse.New(timeparse.Config{}),
		Engine: slots.New(0, 0),
		Store:  store,
		Feed:   feed,
		Logger: logger,
	})
	syncMgr := syncpkg.NewManager(feed, store, locks.NewLocalLocker(), "https://callback.example.com", logger)

	router := mux.NewRouter()
	New(store, scheduler, syncMgr, logger).RegisterRoutes(router)
	return router
}

func openPolicy() *models.Policy {
	return &models.Policy{
		ClientID:   "client-1",
		Zone:       "America/New_York",
		CalendarID: "cal-1",
	}
}

func postJSON(t *testing.T, router *mux.Router, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestScheduleEndpointAvailable(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.SavePolicy(openPolicy()))
	router := newTestRouter(t, store, &memFeed{})

	rec := postJSON(t, router, "/api/schedule", ScheduleRequest{
		ClientID:            "client-1",
		RequestedTimeString: "tomorrow at 2pm",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ScheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Available)
	require.NotNil(t, resp.RequestedTime)
	assert.Contains(t, *resp.RequestedTime, "2:00 PM")
}

func TestScheduleEndpointBusySlot(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// block out tomorrow 2pm
	tomorrow := time.Now().In(loc).AddDate(0, 0, 1)
	busyStart := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 14, 0, 0, 0, loc)
	feed := &memFeed{busy: []models.BusyPeriod{{Start: busyStart, End: busyStart.Add(time.Hour)}}}

	store := newMemStore()
	require.NoError(t, store.SavePolicy(openPolicy()))
	router := newTestRouter(t, store, feed)

	rec := postJSON(t, router, "/api/schedule", ScheduleRequest{
		ClientID:            "client-1",
		RequestedTimeString: "tomorrow at 2pm",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ScheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Available)
	assert.Nil(t, resp.RequestedTime)
	assert.NotEmpty(t, resp.Alternatives)
}

func TestScheduleEndpointParseFailure(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.SavePolicy(openPolicy()))
	router := newTestRouter(t, store, &memFeed{})

	rec := postJSON(t, router, "/api/schedule", ScheduleRequest{
		ClientID:            "client-1",
		RequestedTimeString: "blorp",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestScheduleEndpointValidation(t *testing.T) {
	router := newTestRouter(t, newMemStore(), &memFeed{})

	rec := postJSON(t, router, "/api/schedule", ScheduleRequest{RequestedTimeString: "tomorrow at 2pm"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/schedule", bytes.NewReader([]byte("{not json")))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestScheduleEndpointUnknownClient(t *testing.T) {
	router := newTestRouter(t, newMemStore(), &memFeed{})

	rec := postJSON(t, router, "/api/schedule", ScheduleRequest{
		ClientID:            "client-x",
		RequestedTimeString: "tomorrow at 2pm",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookAndListAppointments(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.SavePolicy(openPolicy()))
	router := newTestRouter(t, store, &memFeed{})

	loc, _ := time.LoadLocation("America/New_York")
	tomorrow := time.Now().In(loc).AddDate(0, 0, 1)
	start := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 14, 0, 0, 0, loc)

	rec := postJSON(t, router, "/api/appointments", BookRequest{
		ClientID: "client-1",
		Start:    start.Format(time.RFC3339),
		Title:    "Intro call",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Intro call", created.Title)

	req := httptest.NewRequest(http.MethodGet, "/api/appointments?client_id=client-1", nil)
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, req)
	require.Equal(t, http.StatusOK, listRec.Code)

	var listResp struct {
		Appointments []AppointmentResponse `json:"appointments"`
	}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Appointments, 1)
	assert.Equal(t, created.ID, listResp.Appointments[0].ID)
}

func TestBookConflictReturnsAlternatives(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	tomorrow := time.Now().In(loc).AddDate(0, 0, 1)
	start := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 14, 0, 0, 0, loc)

	feed := &memFeed{busy: []models.BusyPeriod{{Start: start, End: start.Add(time.Hour)}}}
	store := newMemStore()
	require.NoError(t, store.SavePolicy(openPolicy()))
	router := newTestRouter(t, store, feed)

	rec := postJSON(t, router, "/api/appointments", BookRequest{
		ClientID: "client-1",
		Start:    start.Format(time.RFC3339),
		Title:    "Intro call",
	})

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp struct {
		Error        string   `json:"error"`
		Alternatives []string `json:"alternatives"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
	assert.NotEmpty(t, resp.Alternatives)
	assert.Empty(t, store.appointments)
}

func TestListAppointmentsRequiresClientID(t *testing.T) {
	router := newTestRouter(t, newMemStore(), &memFeed{})

	req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestNotificationEndpoint(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.SaveSyncState(&models.SyncState{
		ClientID:           "client-1",
		CalendarID:         "cal-1",
		ChannelID:          "channel-1",
		SubscriptionExpiry: time.Now().Add(48 * time.Hour),
		Status:             models.SyncStatusActive,
	}))
	router := newTestRouter(t, store, &memFeed{})

	req := httptest.NewRequest(http.MethodPost, "/notifications/calendar", nil)
	req.Header.Set("X-Goog-Channel-ID", "channel-1")
	req.Header.Set("X-Goog-Resource-State", "exists")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNotificationEndpointMissingChannel(t *testing.T) {
	router := newTestRouter(t, newMemStore(), &memFeed{})

	req := httptest.NewRequest(http.MethodPost, "/notifications/calendar", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/notifications/calendar", nil)
	req.Header.Set("X-Goog-Channel-ID", "channel-unknown")
	req.Header.Set("X-Goog-Resource-State", "exists")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubscriptionEndpoint(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(t, store, &memFeed{})

	rec := postJSON(t, router, "/api/subscriptions", SubscribeRequest{
		ClientID:   "client-1",
		CalendarID: "cal-1",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "channel-new", resp["channelId"])

	rec = postJSON(t, router, "/api/subscriptions", SubscribeRequest{ClientID: "client-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(t, store, &memFeed{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	store.healthErr = assert.AnError
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
