// Package scheduling composes the parser, availability rules and slot
// search into the request-level operations exposed by the webhook layer.
package scheduling

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"appointment-scheduler/internal/common/errors"
	"appointment-scheduler/internal/common/logging"
	"appointment-scheduler/internal/models"
	"appointment-scheduler/internal/provider"
	"appointment-scheduler/internal/slots"
	"appointment-scheduler/internal/storage"
	"appointment-scheduler/internal/timeparse"
)

// Outcome classifies the result of a scheduling request
type Outcome string

const (
	// OutcomeParseFailed means the request text was not understood
	OutcomeParseFailed Outcome = "parse_failed"
	// OutcomeNeedsTime means a date was understood but no hour was given
	OutcomeNeedsTime Outcome = "needs_time"
	// OutcomeAvailable means the requested slot (or window) has an opening
	OutcomeAvailable Outcome = "available"
	// OutcomeUnavailable means the requested slot is taken or blocked
	OutcomeUnavailable Outcome = "unavailable"
)

// Result is the engine-level answer a handler serializes into the wire
// response
type Result struct {
	Outcome       Outcome
	Reason        string
	Slot          models.TimeSlot
	HumanReadable string
	Alternatives  []models.TimeSlot
	Zone          *time.Location
}

// Service handles scheduling requests for clients
type Service struct {
	parser          *timeparse.Parser
	engine          *slots.Engine
	store           storage.Storage
	feed            provider.Feed
	extraBusy       provider.BusySource // optional, merged when non-nil
	logger          logging.Logger
	horizon         time.Duration
	maxAlternatives int

	now func() time.Time // injectable for tests
}

// Options configures a Service
type Options struct {
	Parser          *timeparse.Parser
	Engine          *slots.Engine
	Store           storage.Storage
	Feed            provider.Feed
	ExtraBusy       provider.BusySource
	Logger          logging.Logger
	Horizon         time.Duration
	MaxAlternatives int
}

// NewService creates a scheduling service
func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}
	if opts.Horizon <= 0 {
		opts.Horizon = 72 * time.Hour
	}
	if opts.MaxAlternatives <= 0 {
		opts.MaxAlternatives = 3
	}
	return &Service{
		parser:          opts.Parser,
		engine:          opts.Engine,
		store:           opts.Store,
		feed:            opts.Feed,
		extraBusy:       opts.ExtraBusy,
		logger:          opts.Logger,
		horizon:         opts.Horizon,
		maxAlternatives: opts.MaxAlternatives,
		now:             time.Now,
	}
}

// HandleRequest parses the request text against the client's policy and
// searches for an opening. Parse failures come back as a Result, not an
// error; provider failures propagate.
func (s *Service) HandleRequest(ctx context.Context, clientID, text string) (*Result, error) {
	policy, err := s.store.GetPolicy(clientID)
	if err != nil {
		return nil, errors.NotFoundError("client policy").WithContext("client_id", clientID)
	}
	loc, err := policy.Location()
	if err != nil {
		return nil, errors.ConfigError("invalid policy zone " + policy.Zone)
	}

	parsed := s.parser.Parse(text, loc, s.now())
	switch parsed.Kind {
	case timeparse.Failure:
		return &Result{Outcome: OutcomeParseFailed, Reason: parsed.Reason, Zone: loc}, nil

	case timeparse.FixedSlot:
		return s.checkFixed(ctx, policy, parsed, loc)

	case timeparse.OpenRange:
		return s.scanWindow(ctx, policy, parsed, loc)
	}
	return &Result{Outcome: OutcomeParseFailed, Reason: "unrecognized request", Zone: loc}, nil
}

func (s *Service) checkFixed(ctx context.Context, policy *models.Policy, parsed timeparse.Result, loc *time.Location) (*Result, error) {
	anchor := parsed.Slot.Start
	busy, err := s.queryBusy(ctx, policy.CalendarID, anchor, anchor.Add(s.horizon))
	if err != nil {
		return nil, err
	}

	check := s.engine.CheckSlot(anchor, policy.Duration(), busy, policy, s.maxAlternatives)
	if check.Available {
		return &Result{
			Outcome:       OutcomeAvailable,
			Slot:          check.Slot,
			HumanReadable: parsed.HumanReadable,
			Zone:          loc,
		}, nil
	}
	return &Result{
		Outcome:       OutcomeUnavailable,
		Slot:          check.Slot,
		HumanReadable: parsed.HumanReadable,
		Alternatives:  check.Alternatives,
		Zone:          loc,
	}, nil
}

func (s *Service) scanWindow(ctx context.Context, policy *models.Policy, parsed timeparse.Result, loc *time.Location) (*Result, error) {
	busy, err := s.queryBusy(ctx, policy.CalendarID, parsed.RangeStart, parsed.RangeStart.Add(s.horizon))
	if err != nil {
		return nil, err
	}

	found := s.engine.ScanRange(parsed.RangeStart, parsed.RangeEnd, policy.Duration(), busy, policy, s.maxAlternatives)

	if parsed.NeedsTime {
		return &Result{
			Outcome:       OutcomeNeedsTime,
			HumanReadable: parsed.HumanReadable,
			Alternatives:  found,
			Zone:          loc,
		}, nil
	}

	if len(found) == 0 {
		return &Result{
			Outcome:       OutcomeUnavailable,
			HumanReadable: parsed.HumanReadable,
			Zone:          loc,
		}, nil
	}
	return &Result{
		Outcome:       OutcomeAvailable,
		Slot:          found[0],
		HumanReadable: found[0].Start.Format("Monday, January 2 at 3:04 PM"),
		Alternatives:  found[1:],
		Zone:          loc,
	}, nil
}

// Book creates an appointment at the given start after re-checking the
// calendar. A slot that filled up between check and commit surfaces as a
// race-lost error carrying fresh alternatives.
func (s *Service) Book(ctx context.Context, clientID string, start time.Time, title string) (*models.Appointment, []models.TimeSlot, error) {
	policy, err := s.store.GetPolicy(clientID)
	if err != nil {
		return nil, nil, errors.NotFoundError("client policy").WithContext("client_id", clientID)
	}
	loc, err := policy.Location()
	if err != nil {
		return nil, nil, errors.ConfigError("invalid policy zone " + policy.Zone)
	}
	start = start.In(loc)

	busy, err := s.queryBusy(ctx, policy.CalendarID, start, start.Add(s.horizon))
	if err != nil {
		return nil, nil, err
	}

	check := s.engine.CheckSlot(start, policy.Duration(), busy, policy, s.maxAlternatives)
	if !check.Available {
		return nil, check.Alternatives, errors.RaceLostError("requested slot is no longer open").
			WithContext("client_id", clientID)
	}

	appointment := &models.Appointment{
		ID:         uuid.NewString(),
		ClientID:   clientID,
		Title:      title,
		Start:      check.Slot.Start,
		End:        check.Slot.End,
		Zone:       policy.Zone,
		Provenance: models.ProvenanceScheduled,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateAppointment(appointment); err != nil {
		return nil, nil, errors.InternalError("failed to create appointment", err)
	}

	s.logger.Info("Appointment booked",
		logging.Field{Key: "client_id", Value: clientID},
		logging.Field{Key: "start", Value: check.Slot.Start.Format(time.RFC3339)},
	)
	return appointment, nil, nil
}

// queryBusy merges the primary feed's busy periods with the optional
// secondary source, ordered by start
func (s *Service) queryBusy(ctx context.Context, calendarID string, from, to time.Time) ([]models.BusyPeriod, error) {
	busy, err := s.feed.QueryBusy(ctx, calendarID, from, to)
	if err != nil {
		return nil, err
	}

	if s.extraBusy != nil {
		extra, err := s.extraBusy.QueryBusy(ctx, calendarID, from, to)
		if err != nil {
			// a broken secondary feed narrows availability data but
			// should not take scheduling down
			s.logger.Warn("Secondary busy source failed", logging.Field{Key: "error", Value: err.Error()})
		} else {
			busy = append(busy, extra...)
		}
	}

	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	return busy, nil
}
