// Package availability evaluates a client's blocking policy against
// candidate instants. Checks run as an ordered list of pure evaluators with
// first-match-wins precedence: vacation, excluded date, holiday, business
// hours. Every comparison uses the wall clock as rendered in the policy's
// zone, never the caller's.
package availability

import (
	"strings"
	"time"

	"appointment-scheduler/internal/models"
)

// Reason identifies which policy rule blocked an instant
type Reason string

const (
	ReasonVacation     Reason = "vacation"
	ReasonExcludedDate Reason = "excluded_date"
	ReasonHoliday      Reason = "holiday"
	ReasonOutsideHours Reason = "outside_hours"
)

// Evaluation is the outcome of checking one instant against a policy
type Evaluation struct {
	Blocked bool
	Reason  Reason
}

const dateLayout = "2006-01-02"

type evaluator func(local time.Time, policy *models.Policy) (bool, Reason)

// ordering is significant: a date inside both a vacation range and a
// holiday must report vacation
var evaluators = []evaluator{
	vacationBlocked,
	excludedDateBlocked,
	holidayBlocked,
	outsideBusinessHours,
}

// Evaluate checks an instant against the policy's blocking rules
func Evaluate(instant time.Time, policy *models.Policy) Evaluation {
	loc, err := policy.Location()
	if err != nil {
		loc = time.UTC
	}
	local := instant.In(loc)

	for _, eval := range evaluators {
		if blocked, reason := eval(local, policy); blocked {
			return Evaluation{Blocked: true, Reason: reason}
		}
	}
	return Evaluation{}
}

func vacationBlocked(local time.Time, policy *models.Policy) (bool, Reason) {
	date := local.Format(dateLayout)
	for _, v := range policy.Vacations {
		if v.Start == "" || v.End == "" {
			continue
		}
		if date >= v.Start && date <= v.End {
			return true, ReasonVacation
		}
	}
	return false, ""
}

func excludedDateBlocked(local time.Time, policy *models.Policy) (bool, Reason) {
	date := local.Format(dateLayout)
	for _, entry := range policy.ExcludedDates {
		if start, end, ok := strings.Cut(entry, "|"); ok {
			if date >= start && date <= end {
				return true, ReasonExcludedDate
			}
			continue
		}
		if date == entry {
			return true, ReasonExcludedDate
		}
	}
	return false, ""
}

func holidayBlocked(local time.Time, policy *models.Policy) (bool, Reason) {
	monthDay := local.Format("01-02")
	for _, h := range policy.Holidays {
		if h == monthDay {
			return true, ReasonHoliday
		}
	}
	return false, ""
}

// outsideBusinessHours requires membership in at least one rule's weekday
// set and [start, end) window. An empty rule list never blocks.
func outsideBusinessHours(local time.Time, policy *models.Policy) (bool, Reason) {
	if len(policy.BusinessHours) == 0 {
		return false, ""
	}

	clock := local.Format("15:04")
	for _, rule := range policy.BusinessHours {
		if !rule.AppliesOn(local.Weekday()) {
			continue
		}
		if clock >= rule.Start && clock < rule.End {
			return false, ""
		}
	}
	return true, ReasonOutsideHours
}
