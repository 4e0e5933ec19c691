// Package slots searches for open meeting slots against a blocking policy
// and externally reported busy periods.
package slots

import (
	"time"

	"appointment-scheduler/internal/availability"
	"appointment-scheduler/internal/models"
)

const (
	defaultIncrement = 30 * time.Minute
	defaultHorizon   = 72 * time.Hour

	// hard cap on candidate evaluations, independent of horizon and
	// increment, so pathological inputs cannot spin the scan
	maxSteps = 1000
)

// Engine steps candidate start times at a fixed increment and keeps those
// that pass the policy evaluation and do not overlap a busy period. It is
// pure over its inputs and safe for concurrent use.
type Engine struct {
	increment time.Duration
	horizon   time.Duration
}

// CheckResult is the outcome of checking a requested slot
type CheckResult struct {
	Available    bool
	Slot         models.TimeSlot
	Alternatives []models.TimeSlot // populated when the slot is unavailable
}

// New creates an engine with the given step increment and search horizon.
// Zero values fall back to 30 minutes and 3 days.
func New(increment, horizon time.Duration) *Engine {
	if increment <= 0 {
		increment = defaultIncrement
	}
	if horizon <= 0 {
		horizon = defaultHorizon
	}
	return &Engine{increment: increment, horizon: horizon}
}

// CheckSlot checks whether a meeting of the given duration can start at
// anchor. When it cannot, up to maxAlternatives later openings inside the
// horizon are returned, earliest first. No alternative ever starts before
// the anchor.
func (e *Engine) CheckSlot(anchor time.Time, duration time.Duration, busy []models.BusyPeriod, policy *models.Policy, maxAlternatives int) CheckResult {
	slot := models.NewTimeSlot(anchor, duration)
	if e.open(slot, busy, policy) {
		return CheckResult{Available: true, Slot: slot}
	}

	return CheckResult{
		Slot:         slot,
		Alternatives: e.ScanRange(anchor, anchor.Add(e.horizon), duration, busy, policy, maxAlternatives),
	}
}

// ScanRange collects up to maxAlternatives open slots with starts inside
// [rangeStart, rangeEnd), stepping at the engine's increment. The scan also
// stops at the engine's horizon past rangeStart and at the hard step cap.
func (e *Engine) ScanRange(rangeStart, rangeEnd time.Time, duration time.Duration, busy []models.BusyPeriod, policy *models.Policy, maxAlternatives int) []models.TimeSlot {
	if maxAlternatives <= 0 {
		return nil
	}

	end := rangeEnd
	if horizonEnd := rangeStart.Add(e.horizon); horizonEnd.Before(end) {
		end = horizonEnd
	}

	var found []models.TimeSlot
	candidate := rangeStart
	for steps := 0; steps < maxSteps && candidate.Before(end); steps++ {
		slot := models.NewTimeSlot(candidate, duration)
		if e.open(slot, busy, policy) {
			found = append(found, slot)
			if len(found) >= maxAlternatives {
				break
			}
		}
		candidate = candidate.Add(e.increment)
	}
	return found
}

// open reports whether the slot passes the full policy evaluation and
// conflicts with no busy period. The policy is re-evaluated on every
// candidate day inside the horizon; the scan never skips a day past the
// vacation and excluded-date checks.
func (e *Engine) open(slot models.TimeSlot, busy []models.BusyPeriod, policy *models.Policy) bool {
	if availability.Evaluate(slot.Start, policy).Blocked {
		return false
	}
	for _, b := range busy {
		if slot.Overlaps(b) {
			return false
		}
	}
	return true
}
