package dandori

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Date is a calendar day in a scenario file, serialized as "2006-01-02".
type Date struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("date must be a %q string, got %s", "2006-01-02", s)
	}
	t, err := time.ParseInLocation("2006-01-02", s[1:len(s)-1], time.UTC)
	if err != nil {
		return fmt.Errorf("parse date: %w", err)
	}
	d.Time = t
	return nil
}

// Scenario describes one production world: its calendar, staff, workflow
// definitions, and the productions to schedule. Scenarios are standalone
// structs with no internal imports — safe to build programmatically or load
// from JSON with LoadScenario.
type Scenario struct {
	Name        string           `json:"name"`
	Start       Date             `json:"start"`
	Calendar    CalendarSpec     `json:"calendar"`
	Types       []string         `json:"resource_types,omitempty"` // beyond the built-ins
	Levels      []string         `json:"levels,omitempty"`         // complexity levels beyond high/low
	Resources   []ResourceSpec   `json:"resources"`
	Workflows   []WorkflowSpec   `json:"workflows"`
	Productions []ProductionSpec `json:"productions"`
}

// CalendarSpec is the studio-wide business calendar.
type CalendarSpec struct {
	Name string `json:"name,omitempty"`
	// WorkDays are weekday names ("monday".."sunday"); empty means Mon-Fri.
	WorkDays []string `json:"work_days,omitempty"`
	Holidays []Date   `json:"holidays,omitempty"`
	// Closures are company-wide non-working intervals, inclusive.
	Closures []IntervalSpec `json:"closures,omitempty"`
}

// IntervalSpec is an inclusive date range.
type IntervalSpec struct {
	From Date `json:"from"`
	To   Date `json:"to"`
}

// ResourceSpec is one member of staff (or slot of outsourced capacity).
type ResourceSpec struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Vacations []IntervalSpec `json:"vacations,omitempty"`
}

// WorkflowSpec is an ordered stage pipeline.
type WorkflowSpec struct {
	Name   string      `json:"name"`
	Stages []StageSpec `json:"stages"`
}

// StageSpec is one stage of a workflow. Hours is the default bid;
// HoursByLevel overrides it per complexity level.
type StageSpec struct {
	Name             string             `json:"name"`
	Hours            float64            `json:"hours"`
	HoursByLevel     map[string]float64 `json:"hours_by_level,omitempty"`
	ResourceType     string             `json:"resource_type"`
	Review           bool               `json:"review,omitempty"`
	ApprovalRequired bool               `json:"approval_required,omitempty"`
}

// ProductionSpec schedules a batch of items through one workflow. Item order
// fixes scheduling priority.
type ProductionSpec struct {
	Project  string     `json:"project"`
	Workflow string     `json:"workflow"`
	Deadline *Date      `json:"deadline,omitempty"`
	Items    []ItemSpec `json:"items"`
}

// ItemSpec is one unit of work (a cut, a shot, an asset).
type ItemSpec struct {
	ID            string             `json:"id"`
	Level         string             `json:"level"` // complexity level, e.g. "high" or "low"
	CreativeInput Date               `json:"creative_input"`
	Details       map[string]float64 `json:"details,omitempty"`
}

// Event is one completed stage of one item.
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

// Stall records a day an item spent waiting for capacity.
type Stall struct {
	ItemID       string    `json:"item_id"`
	Stage        string    `json:"stage"`
	ResourceType string    `json:"resource_type"`
	At           time.Time `json:"at"`
}

// PendingItem is an item still mid-workflow when the run ended.
type PendingItem struct {
	ItemID string `json:"item_id"`
	Stage  string `json:"stage"`
}

// LateItem is an item that finished after its production's deadline.
type LateItem struct {
	ItemID     string    `json:"item_id"`
	ProjectID  string    `json:"project_id"`
	Deadline   time.Time `json:"deadline"`
	FinishedAt time.Time `json:"finished_at"`
}

// Report is the outcome of one simulation run.
type Report struct {
	RunID       uuid.UUID     `json:"run_id"`
	Scenario    string        `json:"scenario"`
	Events      []Event       `json:"events"`
	Stalls      []Stall       `json:"stalls,omitempty"`
	Pending     []PendingItem `json:"pending,omitempty"`
	Late        []LateItem    `json:"late,omitempty"`
	Completed   int           `json:"completed"`
	FinishedAt  time.Time     `json:"finished_at"`
	Utilization float64       `json:"utilization"`
}

// Quiescent reports whether every scheduled item ran to completion.
func (r *Report) Quiescent() bool { return len(r.Pending) == 0 }

// PendingTask is one item competing for a resource type, as seen by a
// ConflictResolver. Lower Rank means higher priority.
type PendingTask struct {
	ItemID     string
	Stage      string
	Rank       int
	StartHours float64 // hours the task needs on its first day
}

// CandidateResource is a resource a ConflictResolver may hand a task.
type CandidateResource struct {
	ID        string
	Name      string
	Type      string
	Working   bool    // on duty that day (workday, not on vacation)
	FreeHours float64 // unassigned hours remaining that day
}
