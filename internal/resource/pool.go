package resource

import (
	"fmt"
	"time"

	"github.com/ashita-ai/dandori/internal/calendar"
)

// Pool owns a collection of resources indexed by id and by type. Both indices
// always agree: a resource lives in exactly one type bucket, and every bucket
// entry is present in the id index.
type Pool struct {
	cal    *calendar.Calendar
	types  *TypeSet
	byID   map[string]*Resource
	byType map[Type][]*Resource
	order  []string // registration order, for deterministic iteration
}

// NewPool returns an empty pool bound to cal. The type registry starts with
// the built-in types; register others before adding resources that use them.
func NewPool(cal *calendar.Calendar) *Pool {
	return &Pool{
		cal:    cal,
		types:  NewTypeSet(),
		byID:   make(map[string]*Resource),
		byType: make(map[Type][]*Resource),
	}
}

// Calendar returns the shared business calendar.
func (p *Pool) Calendar() *calendar.Calendar { return p.cal }

// Types returns the pool's resource-type registry.
func (p *Pool) Types() *TypeSet { return p.types }

// AddResource registers a new resource under id. It fails with
// ErrDuplicateID when id is taken and ErrUnknownType when typ was never
// registered.
func (p *Pool) AddResource(id, name string, typ Type) (*Resource, error) {
	if _, exists := p.byID[id]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	if err := p.types.Validate(typ); err != nil {
		return nil, err
	}
	r := &Resource{
		id:       id,
		name:     name,
		typ:      typ,
		cal:      p.cal,
		assigned: make(map[time.Time]float64),
	}
	p.byID[id] = r
	p.byType[typ] = append(p.byType[typ], r)
	p.order = append(p.order, id)
	return r, nil
}

// Get returns the resource registered under id, or nil.
func (p *Pool) Get(id string) *Resource { return p.byID[id] }

// OfType returns the resources of typ in registration order. The returned
// slice is the pool's own index; callers must not mutate it.
func (p *Pool) OfType(typ Type) []*Resource { return p.byType[typ] }

// Allocate finds the first resource of typ (registration order) that can take
// hours on date, commits the hours, and returns it. It returns nil when every
// resource of the type is non-working, on vacation, or at capacity — that is
// an expected outcome, not an error.
func (p *Pool) Allocate(typ Type, date time.Time, hours float64) *Resource {
	for _, r := range p.byType[typ] {
		if r.IsAvailable(date, hours) {
			// IsAvailable just held and nothing runs between the check and
			// the commit within one cooperative scheduling step.
			if err := r.AssignWork(date, hours); err != nil {
				return nil
			}
			return r
		}
	}
	return nil
}

// firstDayChunk is the portion of a stage's effort booked on its first day.
func firstDayChunk(effortHours float64) float64 {
	if effortHours > DailyCapacityHours {
		return DailyCapacityHours
	}
	return effortHours
}

// AllocateEffort is the multi-day form of Allocate used for whole stages:
// first-fit on the first day's chunk, then the full effort spread across
// the matched resource's workdays. It returns a nil resource when no
// resource of the type can start on date.
func (p *Pool) AllocateEffort(typ Type, start time.Time, effortHours float64) (*Resource, Booking, error) {
	chunk := firstDayChunk(effortHours)
	for _, r := range p.byType[typ] {
		if !r.IsAvailable(start, chunk) {
			continue
		}
		b, err := r.BookEffort(start, effortHours)
		if err != nil {
			return nil, Booking{}, err
		}
		return r, b, nil
	}
	return nil, Booking{}, nil
}

// BookOn books a whole stage's effort on one specific resource, bypassing the
// first-fit scan. The conflict resolver uses this to honor a reservation.
// It returns false when the resource cannot start on the given date.
func (p *Pool) BookOn(r *Resource, start time.Time, effortHours float64) (Booking, bool, error) {
	if !r.IsAvailable(start, firstDayChunk(effortHours)) {
		return Booking{}, false, nil
	}
	b, err := r.BookEffort(start, effortHours)
	if err != nil {
		return Booking{}, false, err
	}
	return b, true, nil
}

// Utilization returns assigned hours over quota capacity across the workdays
// in [start, end], as a ratio in [0, 1]. Capacity counts quota resources
// only; assigned hours count every resource, matching how studio load is
// reported. A range with no workdays or a pool with no quota resources
// yields 0.
func (p *Pool) Utilization(start, end time.Time) float64 {
	var capacity, assigned float64
	quota := len(p.byType[TypeQuota])
	for d := calendar.DateOf(start); !d.After(calendar.DateOf(end)); d = d.AddDate(0, 0, 1) {
		if !p.cal.IsWorkday(d) {
			continue
		}
		capacity += float64(quota) * DailyCapacityHours
		for _, id := range p.order {
			assigned += p.byID[id].AssignedHours(d)
		}
	}
	if capacity == 0 {
		return 0
	}
	return assigned / capacity
}
