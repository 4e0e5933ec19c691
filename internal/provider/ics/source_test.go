package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appointment-scheduler/internal/common/logging"
)

const feedBody = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//test//EN
BEGIN:VEVENT
UID:evt-1
DTSTAMP:20250101T000000Z
DTSTART:20250128T140000Z
DTEND:20250128T150000Z
SUMMARY:Blocked
END:VEVENT
BEGIN:VEVENT
UID:evt-2
DTSTAMP:20250101T000000Z
DTSTART:20250210T090000Z
DTEND:20250210T100000Z
SUMMARY:Outside window
END:VEVENT
END:VCALENDAR
`

func serveFeed(t *testing.T, status int, body string) *Source {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewSource(srv.URL, srv.Client(), logging.NewDefaultLogger())
}

func TestQueryBusyReturnsEventsInWindow(t *testing.T) {
	source := serveFeed(t, http.StatusOK, feedBody)

	from := time.Date(2025, time.January, 27, 0, 0, 0, 0, time.UTC)
	to := from.Add(72 * time.Hour)
	periods, err := source.QueryBusy(context.Background(), "ignored", from, to)
	require.NoError(t, err)

	require.Len(t, periods, 1)
	assert.True(t, periods[0].Start.Equal(time.Date(2025, time.January, 28, 14, 0, 0, 0, time.UTC)))
	assert.True(t, periods[0].End.Equal(time.Date(2025, time.January, 28, 15, 0, 0, 0, time.UTC)))
}

func TestQueryBusyClipsToWindow(t *testing.T) {
	source := serveFeed(t, http.StatusOK, feedBody)

	from := time.Date(2025, time.January, 28, 14, 30, 0, 0, time.UTC)
	to := from.Add(time.Hour)
	periods, err := source.QueryBusy(context.Background(), "ignored", from, to)
	require.NoError(t, err)

	require.Len(t, periods, 1)
	assert.True(t, periods[0].Start.Equal(from), "start must be clipped to the window")
}

func TestQueryBusyErrorStatus(t *testing.T) {
	source := serveFeed(t, http.StatusForbidden, "")

	_, err := source.QueryBusy(context.Background(), "ignored", time.Now(), time.Now().Add(time.Hour))
	assert.Error(t, err)
}

func TestQueryBusyUnreachableFeed(t *testing.T) {
	source := NewSource("http://127.0.0.1:1/feed.ics", &http.Client{Timeout: time.Second}, logging.NewDefaultLogger())

	_, err := source.QueryBusy(context.Background(), "ignored", time.Now(), time.Now().Add(time.Hour))
	assert.Error(t, err)
}
