package sim

import (
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/dandori/internal/resource"
)

// Event records one completed stage occurrence. Created once when the stage
// finishes, never mutated, collected in completion order (which is not
// necessarily chronological across concurrently running items).
type Event struct {
	ID         uuid.UUID `json:"id"`
	ItemID     string    `json:"item_id"`
	Stage      string    `json:"stage"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	ResourceID string    `json:"resource_id"`
	Resource   string    `json:"resource"`
	BidHours   float64   `json:"bid_hours"`
}

// DurationHours is the elapsed simulated time of the stage in hours,
// derived from the timestamps. It exceeds BidHours when the booking spans
// non-working days.
func (e Event) DurationHours() float64 {
	return e.End.Sub(e.Start).Hours()
}

// Stall records one failed attempt to obtain a resource that the conflict
// resolver could not fix. Stalls are reportable outcomes, not errors; the
// stalled process retries a day later.
type Stall struct {
	ItemID       string        `json:"item_id"`
	Stage        string        `json:"stage"`
	ResourceType resource.Type `json:"resource_type"`
	At           time.Time     `json:"at"`
}

// PendingItem describes an item still mid-workflow when the run ended.
type PendingItem struct {
	ItemID string `json:"item_id"`
	Stage  string `json:"stage"`
}

// LateItem flags an item whose final stage ended after its project's
// delivery deadline.
type LateItem struct {
	ItemID     string    `json:"item_id"`
	ProjectID  string    `json:"project_id"`
	Deadline   time.Time `json:"deadline"`
	FinishedAt time.Time `json:"finished_at"`
}

// Report is the outcome of one Run: the ordered event list plus everything
// the caller needs to judge the schedule.
type Report struct {
	RunID       uuid.UUID     `json:"run_id"`
	Events      []Event       `json:"events"`
	Stalls      []Stall       `json:"stalls"`
	Pending     []PendingItem `json:"pending"`
	Late        []LateItem    `json:"late"`
	Completed   int           `json:"completed"`
	FinishedAt  time.Time     `json:"finished_at"`
	Utilization float64       `json:"utilization"`
}

// Quiescent reports whether every scheduled item ran to completion.
func (r *Report) Quiescent() bool { return len(r.Pending) == 0 }
