// Package resource tracks a finite pool of typed production resources
// (artists, technicians) against an 8-hour daily capacity and a shared
// business calendar.
//
// A Resource's assigned-hours ledger only ever grows: work is committed
// through AssignWork and never cancelled. The pool allocates first-fit in
// registration order; fairness under contention is the conflict resolver's
// job, not the pool's.
package resource

import (
	"errors"
	"fmt"
	"time"

	"github.com/ashita-ai/dandori/internal/calendar"
)

// DailyCapacityHours is the committed-hours ceiling per resource per date.
const DailyCapacityHours = 8.0

// maxBookingScanDays bounds the forward scan when spreading a stage's effort
// across workdays. Mirrors the calendar's degenerate-configuration guard.
const maxBookingScanDays = 4 * 366

var (
	// ErrUnavailable is returned by AssignWork when the resource cannot take
	// the requested hours on the requested date. Allocation paths check
	// availability first, so surfacing this error indicates a caller bug.
	ErrUnavailable = errors.New("resource: not available")

	// ErrDuplicateID is returned when registering a resource id twice.
	ErrDuplicateID = errors.New("resource: duplicate resource id")

	// ErrUnknownType is returned for a resource type that was never
	// registered with the pool's TypeSet.
	ErrUnknownType = errors.New("resource: unregistered resource type")
)

// Resource is one individually schedulable artist or team. It shares its
// owning pool's calendar and additionally carries its own vacation intervals.
type Resource struct {
	id        string
	name      string
	typ       Type
	cal       *calendar.Calendar
	assigned  map[time.Time]float64
	vacations []calendar.Interval
}

// ID returns the pool-unique identifier.
func (r *Resource) ID() string { return r.id }

// Name returns the display name. Names are not unique; several resources may
// share one (e.g. two "Modeling Artist" seats).
func (r *Resource) Name() string { return r.name }

// Type returns the resource's type tag.
func (r *Resource) Type() Type { return r.typ }

// AddVacation marks [start, end] as unavailable for this resource only,
// independent of the shared calendar's closures.
func (r *Resource) AddVacation(start, end time.Time) {
	r.vacations = append(r.vacations, calendar.Interval{
		Start: calendar.DateOf(start),
		End:   calendar.DateOf(end),
	})
}

// AssignedHours returns the hours committed on date.
func (r *Resource) AssignedHours(date time.Time) float64 {
	return r.assigned[calendar.DateOf(date)]
}

// IsAvailable reports whether the resource can take requiredHours more work
// on date: the calendar must mark it a workday, the date must fall outside
// the resource's own vacations, and the daily ledger must stay within
// capacity.
func (r *Resource) IsAvailable(date time.Time, requiredHours float64) bool {
	d := calendar.DateOf(date)
	if !r.cal.IsWorkday(d) {
		return false
	}
	for _, iv := range r.vacations {
		if iv.Contains(d) {
			return false
		}
	}
	return r.assigned[d]+requiredHours <= DailyCapacityHours
}

// AssignWork commits hours on date. It fails with ErrUnavailable, leaving the
// ledger unchanged, if IsAvailable does not hold. This is the only mutator of
// the ledger, and it operates on a single date; multi-day stages book each
// day through BookEffort.
func (r *Resource) AssignWork(date time.Time, hours float64) error {
	d := calendar.DateOf(date)
	if !r.IsAvailable(d, hours) {
		return fmt.Errorf("%w: %s on %s for %.1fh", ErrUnavailable, r.id, d.Format("2006-01-02"), hours)
	}
	if r.assigned == nil {
		r.assigned = make(map[time.Time]float64)
	}
	r.assigned[d] += hours
	return nil
}

// Booking describes how a stage's effort landed on the daily ledger.
type Booking struct {
	FirstDay     time.Time
	LastDay      time.Time
	LastDayHours float64
}

// SingleDay reports whether the whole effort fit on one date.
func (b Booking) SingleDay() bool { return b.FirstDay.Equal(b.LastDay) }

// BookEffort spreads effortHours across consecutive available workdays
// starting at start, committing up to DailyCapacityHours per day. Workdays on
// which this resource is already at capacity (or on vacation) are skipped;
// non-workdays extend the span without consuming capacity.
//
// The first day must be bookable: callers establish that via IsAvailable
// before committing, so a failure here means the calendar is degenerate.
func (r *Resource) BookEffort(start time.Time, effortHours float64) (Booking, error) {
	remaining := effortHours
	day := calendar.DateOf(start)
	b := Booking{FirstDay: day, LastDay: day}
	for i := 0; remaining > 0 && i < maxBookingScanDays; i++ {
		chunk := remaining
		if chunk > DailyCapacityHours {
			chunk = DailyCapacityHours
		}
		if r.IsAvailable(day, chunk) {
			if err := r.AssignWork(day, chunk); err != nil {
				return Booking{}, err
			}
			remaining -= chunk
			b.LastDay = day
			b.LastDayHours = chunk
			if remaining <= 0 {
				break
			}
		}
		next, err := r.cal.NextWorkday(day)
		if err != nil {
			return Booking{}, fmt.Errorf("booking %s: %w", r.id, err)
		}
		day = next
	}
	if remaining > 0 {
		return Booking{}, fmt.Errorf("booking %s: %w", r.id, calendar.ErrNoWorkdays)
	}
	return b, nil
}
