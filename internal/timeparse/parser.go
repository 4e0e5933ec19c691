// Package timeparse turns free-text scheduling requests into zone-correct
// instants or open ranges. Recognition runs as an ordered list of compiled
// matchers: "after H" windows, daypart keywords, explicit clock times, then
// a general natural-language date grammar. Malformed input never produces an
// error or panic, only a Failure result.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"appointment-scheduler/internal/models"
)

// Kind discriminates the parse result variants
type Kind int

const (
	// Failure means the text could not be understood
	Failure Kind = iota
	// FixedSlot means the text resolved to a concrete start instant
	FixedSlot
	// OpenRange means the text resolved to a window of possible starts
	OpenRange
)

// Result is the outcome of parsing one scheduling request
type Result struct {
	Kind   Kind
	Reason string // set for Failure

	Slot models.TimeSlot // set for FixedSlot

	RangeStart time.Time // set for OpenRange
	RangeEnd   time.Time
	// NeedsTime is true when the text named a date but no hour, so the
	// caller should ask the requester for a time of day.
	NeedsTime bool

	HumanReadable string
}

// Config tunes the parser's assumed business day
type Config struct {
	BusinessStartHour int           // default open-range window start (default 9)
	BusinessEndHour   int           // default open-range window end (default 17)
	DayEndHour        int           // end-of-day boundary for "after X" (default 20)
	DefaultDuration   time.Duration // slot length for fixed results (default 30m)
}

func (c Config) withDefaults() Config {
	if c.BusinessStartHour == 0 {
		c.BusinessStartHour = 9
	}
	if c.BusinessEndHour == 0 {
		c.BusinessEndHour = 17
	}
	if c.DayEndHour == 0 {
		c.DayEndHour = 20
	}
	if c.DefaultDuration == 0 {
		c.DefaultDuration = 30 * time.Minute
	}
	return c
}

// Parser recognizes scheduling idioms in free text. It is stateless after
// construction and safe for concurrent use.
type Parser struct {
	cfg     Config
	grammar *when.Parser
}

var (
	afterRe    = regexp.MustCompile(`(?i)\bafter\s+(\d{1,2})(?::(\d{2}))?\s*([ap])\.?m\.?\b|\bafter\s+(\d{1,2})(?::(\d{2}))?\b`)
	daypartRe  = regexp.MustCompile(`(?i)\b(morning|afternoon|evening)\b`)
	meridiemRe = regexp.MustCompile(`(?i)\b(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*([ap])\.?m\.?\b`)
	atBareRe   = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})(?::(\d{2}))?\b`)
	clockRe    = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	noonRe     = regexp.MustCompile(`(?i)\b(noon|midday|midnight)\b`)
	weekdayRe  = regexp.MustCompile(`(?i)\b(?:(next|this)\s+)?(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`)
	todayRe    = regexp.MustCompile(`(?i)\b(today|tonight)\b`)
	tomorrowRe = regexp.MustCompile(`(?i)\btomorrow\b`)
	fillerRe   = regexp.MustCompile(`(?i)\b(on|at|the|of|in|a|an|for|this|sometime|please)\b`)
	contentRe  = regexp.MustCompile(`[a-zA-Z0-9]`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// New creates a parser with the given configuration
func New(cfg Config) *Parser {
	grammar := when.New(nil)
	grammar.Add(en.All...)
	grammar.Add(common.All...)

	return &Parser{
		cfg:     cfg.withDefaults(),
		grammar: grammar,
	}
}

// Parse interprets text relative to ref in the given zone. Every returned
// instant is built from its intended wall-clock fields in loc, so the zone's
// UTC offset at that exact moment applies and DST transitions are respected.
func (p *Parser) Parse(text string, loc *time.Location, ref time.Time) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return failure("empty scheduling request")
	}
	if loc == nil {
		loc = time.UTC
	}
	ref = ref.In(loc)

	// "after 4pm" style open windows
	if m := afterRe.FindStringSubmatchIndex(text); m != nil {
		return p.parseAfter(text, m, loc, ref)
	}

	// morning / afternoon / evening windows
	if m := daypartRe.FindStringSubmatchIndex(text); m != nil {
		return p.parseDaypart(text, m, loc, ref)
	}

	// explicit clock time, with the rest of the text naming the date
	if hour, minute, remainder, ok, reason := p.extractTime(text); ok || reason != "" {
		if reason != "" {
			return failure(reason)
		}
		date, weekdayOnly, err := p.resolveDate(remainder, loc, ref)
		if err != nil {
			return failure(err.Error())
		}
		start := at(date, hour, minute, loc)
		if weekdayOnly && start.Before(ref) {
			start = start.AddDate(0, 0, 7)
		}
		slot := models.NewTimeSlot(start, p.cfg.DefaultDuration)
		return Result{
			Kind:          FixedSlot,
			Slot:          slot,
			HumanReadable: start.Format("Monday, January 2 at 3:04 PM"),
		}
	}

	// date only: offer the default business window and ask for a time
	date, weekdayOnly, err := p.resolveDate(text, loc, ref)
	if err != nil {
		return failure(err.Error())
	}
	start := at(date, p.cfg.BusinessStartHour, 0, loc)
	end := at(date, p.cfg.BusinessEndHour, 0, loc)
	if weekdayOnly && start.Before(ref) {
		start = start.AddDate(0, 0, 7)
		end = end.AddDate(0, 0, 7)
	}
	return Result{
		Kind:          OpenRange,
		RangeStart:    start,
		RangeEnd:      end,
		NeedsTime:     true,
		HumanReadable: rangeLabel(start, end),
	}
}

func (p *Parser) parseAfter(text string, m []int, loc *time.Location, ref time.Time) Result {
	var hourStr, minStr, meridiem string
	if m[2] >= 0 { // variant with meridiem
		hourStr = text[m[2]:m[3]]
		if m[4] >= 0 {
			minStr = text[m[4]:m[5]]
		}
		meridiem = strings.ToLower(text[m[6]:m[7]])
	} else {
		hourStr = text[m[8]:m[9]]
		if m[10] >= 0 {
			minStr = text[m[10]:m[11]]
		}
	}

	hour, minute, reason := p.clockFields(hourStr, minStr, meridiem)
	if reason != "" {
		return failure(reason)
	}

	remainder := text[:m[0]] + " " + text[m[1]:]
	date, weekdayOnly, err := p.resolveDate(remainder, loc, ref)
	if err != nil {
		return failure(err.Error())
	}

	start := at(date, hour, minute, loc)
	end := at(date, p.cfg.DayEndHour, 0, loc)
	if weekdayOnly && start.Before(ref) {
		start = start.AddDate(0, 0, 7)
		end = end.AddDate(0, 0, 7)
	}
	if !start.Before(end) {
		return failure(fmt.Sprintf("no availability window remains after %d:%02d", hour, minute))
	}
	return Result{
		Kind:          OpenRange,
		RangeStart:    start,
		RangeEnd:      end,
		HumanReadable: rangeLabel(start, end),
	}
}

func (p *Parser) parseDaypart(text string, m []int, loc *time.Location, ref time.Time) Result {
	var startHour, endHour int
	switch strings.ToLower(text[m[2]:m[3]]) {
	case "morning":
		startHour, endHour = 9, 12
	case "afternoon":
		startHour, endHour = 12, 17
	case "evening":
		startHour, endHour = 17, 20
	}

	remainder := text[:m[0]] + " " + text[m[1]:]
	date, weekdayOnly, err := p.resolveDate(remainder, loc, ref)
	if err != nil {
		return failure(err.Error())
	}

	start := at(date, startHour, 0, loc)
	end := at(date, endHour, 0, loc)
	if weekdayOnly && start.Before(ref) {
		start = start.AddDate(0, 0, 7)
		end = end.AddDate(0, 0, 7)
	}
	return Result{
		Kind:          OpenRange,
		RangeStart:    start,
		RangeEnd:      end,
		HumanReadable: rangeLabel(start, end),
	}
}

// extractTime pulls an explicit clock time out of text. The returned
// remainder is the text with the time clause removed. A non-empty reason
// means the clause was recognized but invalid.
func (p *Parser) extractTime(text string) (hour, minute int, remainder string, ok bool, reason string) {
	if m := meridiemRe.FindStringSubmatchIndex(text); m != nil {
		hourStr := text[m[2]:m[3]]
		minStr := ""
		if m[4] >= 0 {
			minStr = text[m[4]:m[5]]
		}
		h, mm, r := p.clockFields(hourStr, minStr, strings.ToLower(text[m[6]:m[7]]))
		return h, mm, cut(text, m[0], m[1]), r == "", r
	}

	if m := noonRe.FindStringSubmatchIndex(text); m != nil {
		word := strings.ToLower(text[m[2]:m[3]])
		h := 12
		if word == "midnight" {
			h = 0
		}
		return h, 0, cut(text, m[0], m[1]), true, ""
	}

	if m := atBareRe.FindStringSubmatchIndex(text); m != nil {
		hourStr := text[m[2]:m[3]]
		minStr := ""
		if m[4] >= 0 {
			minStr = text[m[4]:m[5]]
		}
		h, mm, r := p.clockFields(hourStr, minStr, "")
		return h, mm, cut(text, m[0], m[1]), r == "", r
	}

	if m := clockRe.FindStringSubmatchIndex(text); m != nil {
		h, mm, r := p.clockFields(text[m[2]:m[3]], text[m[4]:m[5]], "")
		return h, mm, cut(text, m[0], m[1]), r == "", r
	}

	return 0, 0, text, false, ""
}

// clockFields validates hour/minute strings and applies meridiem rules. A
// bare hour below the configured business start with no meridiem is assumed
// to mean the afternoon.
func (p *Parser) clockFields(hourStr, minStr, meridiem string) (int, int, string) {
	hour, err := strconv.Atoi(hourStr)
	if err != nil || hour > 23 {
		return 0, 0, fmt.Sprintf("invalid hour %q", hourStr)
	}
	minute := 0
	if minStr != "" {
		minute, err = strconv.Atoi(minStr)
		if err != nil || minute > 59 {
			return 0, 0, fmt.Sprintf("invalid minute %q", minStr)
		}
	}

	switch meridiem {
	case "a":
		if hour == 12 {
			hour = 0
		}
	case "p":
		if hour < 12 {
			hour += 12
		}
	default:
		if hour < p.cfg.BusinessStartHour && hour < 12 {
			hour += 12
		}
	}
	return hour, minute, ""
}

// resolveDate resolves the date named by fragment, returning midnight of
// that date in loc. weekdayOnly reports that the fragment named only a
// weekday, which makes it subject to the next-occurrence roll-forward.
func (p *Parser) resolveDate(fragment string, loc *time.Location, ref time.Time) (time.Time, bool, error) {
	fragment = strings.TrimSpace(fragment)
	cleaned := strings.TrimSpace(fillerRe.ReplaceAllString(fragment, " "))

	if !contentRe.MatchString(cleaned) {
		return midnight(ref, loc), false, nil
	}

	if todayRe.MatchString(cleaned) && significantOnly(cleaned, todayRe) {
		return midnight(ref, loc), false, nil
	}
	if tomorrowRe.MatchString(cleaned) && significantOnly(cleaned, tomorrowRe) {
		return midnight(ref.AddDate(0, 0, 1), loc), false, nil
	}

	if m := weekdayRe.FindStringSubmatch(cleaned); m != nil && significantOnly(cleaned, weekdayRe) {
		target := weekdays[strings.ToLower(m[2])]
		delta := (int(target) - int(ref.Weekday()) + 7) % 7
		// a weekday naming the reference's own weekday means the next
		// occurrence, never the reference day itself
		if delta == 0 {
			delta = 7
		}
		return midnight(ref.AddDate(0, 0, delta), loc), true, nil
	}

	// General grammar fallback, bound to the reference instant and zone
	r, err := p.grammar.Parse(fragment, ref)
	if err != nil || r == nil {
		return time.Time{}, false, fmt.Errorf("could not understand date in %q", strings.TrimSpace(fragment))
	}

	leftover := fragment[:r.Index] + " " + fragment[r.Index+len(r.Text):]
	leftover = strings.TrimSpace(fillerRe.ReplaceAllString(leftover, " "))
	if contentRe.MatchString(leftover) {
		return time.Time{}, false, fmt.Errorf("ambiguous time expression %q", strings.TrimSpace(fragment))
	}

	// Re-derive wall-clock fields in loc rather than trusting the
	// grammar's instant arithmetic across offsets.
	return midnight(r.Time, loc), false, nil
}

// significantOnly reports whether cleaned contains nothing but the given
// pattern's match.
func significantOnly(cleaned string, re *regexp.Regexp) bool {
	rest := re.ReplaceAllString(cleaned, " ")
	return !contentRe.MatchString(rest)
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// at builds the instant for the given wall-clock time on date's day. Going
// through time.Date computes the zone's UTC offset at that exact wall-clock
// moment, which is what keeps results correct across DST transitions.
func at(date time.Time, hour, minute int, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc)
}

func cut(text string, from, to int) string {
	return strings.TrimSpace(text[:from] + " " + text[to:])
}

func rangeLabel(start, end time.Time) string {
	return fmt.Sprintf("%s between %s and %s",
		start.Format("Monday, January 2"),
		start.Format("3:04 PM"),
		end.Format("3:04 PM"))
}

func failure(reason string) Result {
	return Result{Kind: Failure, Reason: reason}
}
