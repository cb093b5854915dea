// Package calendar implements business-day arithmetic: weekly work-day
// patterns, holidays, and studio-wide vacation closures.
//
// All dates are normalized to UTC midnight via DateOf. A date is a workday
// iff its weekday is in the work-day set, it is not a holiday, and it falls
// outside every vacation interval.
package calendar

import (
	"fmt"
	"time"
)

// maxScanDays bounds the NextWorkday forward scan. A calendar that yields no
// workday within four years is misconfigured, not merely sparse.
const maxScanDays = 4 * 366

// ErrNoWorkdays is returned when a forward scan exhausts maxScanDays without
// finding a workday. It signals a degenerate calendar configuration.
var ErrNoWorkdays = fmt.Errorf("calendar: no workday within %d days", maxScanDays)

// DateOf truncates t to UTC midnight. All calendar and allocation maps key on
// values produced by this function.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Interval is a closed date range [Start, End], both normalized to midnight.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the (normalized) date falls inside the interval.
func (iv Interval) Contains(date time.Time) bool {
	return !date.Before(iv.Start) && !date.After(iv.End)
}

// Calendar answers workday queries for one named business calendar.
// It is immutable during a simulation run; AddHoliday and AddVacation are
// setup-time mutators only.
type Calendar struct {
	name      string
	workDays  map[time.Weekday]bool
	holidays  map[time.Time]struct{}
	vacations []Interval
}

// New returns a calendar with the default Monday–Friday work week and no
// holidays or vacations.
func New(name string) *Calendar {
	return &Calendar{
		name: name,
		workDays: map[time.Weekday]bool{
			time.Monday:    true,
			time.Tuesday:   true,
			time.Wednesday: true,
			time.Thursday:  true,
			time.Friday:    true,
		},
		holidays: make(map[time.Time]struct{}),
	}
}

// Name returns the calendar's identity.
func (c *Calendar) Name() string { return c.name }

// SetWorkDays replaces the weekly work-day pattern.
func (c *Calendar) SetWorkDays(days ...time.Weekday) {
	c.workDays = make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		c.workDays[d] = true
	}
}

// AddHoliday marks a single date as non-working.
func (c *Calendar) AddHoliday(date time.Time) {
	c.holidays[DateOf(date)] = struct{}{}
}

// AddVacation marks the closed range [start, end] as non-working.
func (c *Calendar) AddVacation(start, end time.Time) {
	c.vacations = append(c.vacations, Interval{Start: DateOf(start), End: DateOf(end)})
}

// IsWorkday reports whether date is a working day: weekday in the work-day
// set, not a holiday, outside every vacation interval.
func (c *Calendar) IsWorkday(date time.Time) bool {
	d := DateOf(date)
	if !c.workDays[d.Weekday()] {
		return false
	}
	if _, ok := c.holidays[d]; ok {
		return false
	}
	for _, iv := range c.vacations {
		if iv.Contains(d) {
			return false
		}
	}
	return true
}

// NextWorkday returns the first workday strictly after date. It returns
// ErrNoWorkdays if no workday exists within maxScanDays, which indicates a
// calendar configured with no working days.
func (c *Calendar) NextWorkday(date time.Time) (time.Time, error) {
	d := DateOf(date)
	for i := 0; i < maxScanDays; i++ {
		d = d.AddDate(0, 0, 1)
		if c.IsWorkday(d) {
			return d, nil
		}
	}
	return time.Time{}, ErrNoWorkdays
}

// NextWorkdayOnOrAfter returns date itself when it is a workday, otherwise
// the first workday after it.
func (c *Calendar) NextWorkdayOnOrAfter(date time.Time) (time.Time, error) {
	d := DateOf(date)
	if c.IsWorkday(d) {
		return d, nil
	}
	return c.NextWorkday(d)
}
