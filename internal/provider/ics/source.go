// Package ics provides a read-only busy-period source backed by an ICS
// feed, for clients whose blocked time lives in a published calendar rather
// than the primary provider.
package ics

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/emersion/go-ical"

	"appointment-scheduler/internal/common/errors"
	"appointment-scheduler/internal/common/logging"
	"appointment-scheduler/internal/models"
)

// Source fetches and decodes an ICS feed into busy periods
type Source struct {
	url    string
	client *http.Client
	logger logging.Logger
}

// NewSource creates a busy source for the given feed URL
func NewSource(url string, client *http.Client, logger logging.Logger) *Source {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Source{url: url, client: client, logger: logger}
}

// QueryBusy returns the feed's events clipped to [from, to). The calendarID
// is ignored; an ICS feed covers a single calendar. Events that fail to
// decode are skipped, not fatal.
func (s *Source) QueryBusy(ctx context.Context, _ string, from, to time.Time) ([]models.BusyPeriod, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, errors.InternalError("failed to build ics request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.ProviderError("ics feed fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, errors.ProviderError("ics feed returned error status", nil).WithContext("status", resp.StatusCode)
	}

	var periods []models.BusyPeriod
	dec := ical.NewDecoder(resp.Body)
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.ProviderError("ics feed decode failed", err)
		}

		for _, event := range cal.Events() {
			start, err := event.DateTimeStart(from.Location())
			if err != nil {
				s.logger.Debug("Skipping ics event without usable start", logging.Field{Key: "error", Value: err.Error()})
				continue
			}
			end, err := event.DateTimeEnd(from.Location())
			if err != nil || !end.After(start) {
				continue
			}

			// clip to the query window
			if !start.Before(to) || !end.After(from) {
				continue
			}
			if start.Before(from) {
				start = from
			}
			if end.After(to) {
				end = to
			}
			periods = append(periods, models.BusyPeriod{Start: start, End: end})
		}
	}
	return periods, nil
}
