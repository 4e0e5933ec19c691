package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appointment-scheduler/internal/models"
)

func weekdayPolicy() *models.Policy {
	return &models.Policy{
		ClientID: "client-1",
		Zone:     "America/New_York",
		BusinessHours: []models.BusinessHoursRule{
			{
				Days:  []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
				Start: "09:00",
				End:   "17:00",
			},
		},
	}
}

func TestEvaluateBusinessHours(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	policy := weekdayPolicy()

	tests := []struct {
		name    string
		instant time.Time
		blocked bool
		reason  Reason
	}{
		{"inside window", time.Date(2025, time.January, 28, 10, 0, 0, 0, loc), false, ""},
		{"window start inclusive", time.Date(2025, time.January, 28, 9, 0, 0, 0, loc), false, ""},
		{"window end exclusive", time.Date(2025, time.January, 28, 17, 0, 0, 0, loc), true, ReasonOutsideHours},
		{"before opening", time.Date(2025, time.January, 28, 8, 30, 0, 0, loc), true, ReasonOutsideHours},
		{"weekend", time.Date(2025, time.January, 25, 10, 0, 0, 0, loc), true, ReasonOutsideHours},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := Evaluate(tt.instant, policy)
			assert.Equal(t, tt.blocked, eval.Blocked)
			assert.Equal(t, tt.reason, eval.Reason)
		})
	}
}

func TestEvaluateUsesPolicyZoneNotCallerZone(t *testing.T) {
	// 18:00 UTC is 13:00 in New York: inside the window even though the
	// instant's own zone says otherwise.
	policy := weekdayPolicy()
	instant := time.Date(2025, time.January, 28, 18, 0, 0, 0, time.UTC)

	assert.False(t, Evaluate(instant, policy).Blocked)

	// 23:00 UTC is 18:00 in New York: outside the window.
	late := time.Date(2025, time.January, 28, 23, 0, 0, 0, time.UTC)
	eval := Evaluate(late, policy)
	assert.True(t, eval.Blocked)
	assert.Equal(t, ReasonOutsideHours, eval.Reason)
}

func TestEvaluateVacation(t *testing.T) {
	policy := weekdayPolicy()
	policy.Vacations = []models.DateRange{{Start: "2025-02-10", End: "2025-02-14"}}
	loc, _ := time.LoadLocation("America/New_York")

	assert.True(t, Evaluate(time.Date(2025, time.February, 10, 10, 0, 0, 0, loc), policy).Blocked)
	assert.True(t, Evaluate(time.Date(2025, time.February, 14, 10, 0, 0, 0, loc), policy).Blocked)
	assert.False(t, Evaluate(time.Date(2025, time.February, 17, 10, 0, 0, 0, loc), policy).Blocked)
}

func TestEvaluateExcludedDates(t *testing.T) {
	policy := weekdayPolicy()
	policy.ExcludedDates = []string{"2025-03-03", "2025-03-10|2025-03-12"}
	loc, _ := time.LoadLocation("America/New_York")

	single := Evaluate(time.Date(2025, time.March, 3, 10, 0, 0, 0, loc), policy)
	assert.True(t, single.Blocked)
	assert.Equal(t, ReasonExcludedDate, single.Reason)

	assert.True(t, Evaluate(time.Date(2025, time.March, 11, 10, 0, 0, 0, loc), policy).Blocked)
	assert.False(t, Evaluate(time.Date(2025, time.March, 13, 10, 0, 0, 0, loc), policy).Blocked)
}

func TestEvaluateRecurringHoliday(t *testing.T) {
	policy := weekdayPolicy()
	policy.Holidays = []string{"07-04"}
	loc, _ := time.LoadLocation("America/New_York")

	for _, year := range []int{2025, 2026, 2031} {
		eval := Evaluate(time.Date(year, time.July, 4, 10, 0, 0, 0, loc), policy)
		assert.True(t, eval.Blocked, "year %d", year)
		assert.Equal(t, ReasonHoliday, eval.Reason)
	}
}

func TestEvaluatePrecedence(t *testing.T) {
	// July 4 inside a vacation range must report vacation, not holiday
	policy := weekdayPolicy()
	policy.Holidays = []string{"07-04"}
	policy.Vacations = []models.DateRange{{Start: "2025-07-01", End: "2025-07-07"}}
	policy.ExcludedDates = []string{"2025-07-04"}
	loc, _ := time.LoadLocation("America/New_York")

	eval := Evaluate(time.Date(2025, time.July, 4, 10, 0, 0, 0, loc), policy)
	require.True(t, eval.Blocked)
	assert.Equal(t, ReasonVacation, eval.Reason)
}

func TestEvaluateEmptyPolicyNeverBlocks(t *testing.T) {
	policy := &models.Policy{ClientID: "client-1"}

	eval := Evaluate(time.Date(2025, time.January, 26, 3, 0, 0, 0, time.UTC), policy)
	assert.False(t, eval.Blocked)
}

func TestEvaluateMultipleBusinessHoursRules(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	policy := &models.Policy{
		Zone: "America/New_York",
		BusinessHours: []models.BusinessHoursRule{
			{Days: []time.Weekday{time.Monday}, Start: "09:00", End: "12:00"},
			{Days: []time.Weekday{time.Monday}, Start: "14:00", End: "17:00"},
		},
	}

	assert.False(t, Evaluate(time.Date(2025, time.January, 27, 10, 0, 0, 0, loc), policy).Blocked)
	assert.True(t, Evaluate(time.Date(2025, time.January, 27, 13, 0, 0, 0, loc), policy).Blocked)
	assert.False(t, Evaluate(time.Date(2025, time.January, 27, 15, 0, 0, 0, loc), policy).Blocked)
}
