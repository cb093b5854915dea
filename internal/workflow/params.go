package workflow

import (
	"fmt"
	"time"

	"github.com/ashita-ai/dandori/internal/calendar"
)

// Params is the central repository of production parameters. The engine
// reads it; it never writes.
type Params struct {
	levels     *LevelSet
	calendars  map[string]*calendar.Calendar
	creative   map[string]time.Time // item id -> creative-input date
	deadlines  map[string]time.Time // project id -> delivery deadline
	complexity map[string]Complexity
	workflows  map[string]*Definition
}

// NewParams returns an empty parameter set with the built-in complexity
// levels registered.
func NewParams() *Params {
	return &Params{
		levels:     NewLevelSet(),
		calendars:  make(map[string]*calendar.Calendar),
		creative:   make(map[string]time.Time),
		deadlines:  make(map[string]time.Time),
		complexity: make(map[string]Complexity),
		workflows:  make(map[string]*Definition),
	}
}

// Levels returns the complexity-level registry.
func (p *Params) Levels() *LevelSet { return p.levels }

// AddCalendar registers a business calendar under name.
func (p *Params) AddCalendar(name string, cal *calendar.Calendar) {
	p.calendars[name] = cal
}

// Calendar returns the calendar registered under name, or nil.
func (p *Params) Calendar(name string) *calendar.Calendar { return p.calendars[name] }

// AddCreativeInput records when an item's creative input arrives. The item's
// first stage cannot start earlier.
func (p *Params) AddCreativeInput(itemID string, date time.Time) {
	p.creative[itemID] = calendar.DateOf(date)
}

// CreativeInput returns the item's creative-input date.
func (p *Params) CreativeInput(itemID string) (time.Time, bool) {
	d, ok := p.creative[itemID]
	return d, ok
}

// SetDeliveryDeadline records a project's delivery deadline. The run report
// flags items that finish after it.
func (p *Params) SetDeliveryDeadline(projectID string, date time.Time) {
	p.deadlines[projectID] = calendar.DateOf(date)
}

// DeliveryDeadline returns the project's deadline.
func (p *Params) DeliveryDeadline(projectID string) (time.Time, bool) {
	d, ok := p.deadlines[projectID]
	return d, ok
}

// DefineComplexity classifies an item. The level must be registered.
func (p *Params) DefineComplexity(itemID string, level Level, details map[string]float64) error {
	if !p.levels.Known(level) {
		return fmt.Errorf("%w: %q for item %q", ErrUnknownLevel, level, itemID)
	}
	p.complexity[itemID] = Complexity{Level: level, Details: details}
	return nil
}

// Complexity returns the item's classification.
func (p *Params) Complexity(itemID string) (Complexity, bool) {
	c, ok := p.complexity[itemID]
	return c, ok
}

// AddWorkflow registers a workflow definition under its own name.
func (p *Params) AddWorkflow(d *Definition) {
	p.workflows[d.Name()] = d
}

// Workflow returns the definition registered under name.
func (p *Params) Workflow(name string) (*Definition, error) {
	d, ok := p.workflows[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWorkflow, name)
	}
	return d, nil
}

// StageBid returns the bid hours for a stage of a workflow given a complexity
// level, or 0 when the workflow or stage does not exist.
func (p *Params) StageBid(workflowName, stageName string, level Level) float64 {
	d, ok := p.workflows[workflowName]
	if !ok {
		return 0
	}
	s, ok := d.Stage(stageName)
	if !ok {
		return 0
	}
	return s.BidHours(level)
}
