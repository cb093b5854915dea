// Package workflow holds the static production configuration: business
// calendars, creative-input dates, delivery deadlines, complexity
// classifications, and named workflow definitions. Everything here is
// read-only once a simulation starts.
package workflow

import (
	"errors"
	"fmt"

	"github.com/ashita-ai/dandori/internal/resource"
)

var (
	// ErrDuplicateStage is returned when a workflow definition repeats a
	// stage name.
	ErrDuplicateStage = errors.New("workflow: duplicate stage name")

	// ErrEmptyWorkflow is returned for a definition with no stages.
	ErrEmptyWorkflow = errors.New("workflow: definition has no stages")

	// ErrUnknownWorkflow is returned when a scheduled item references a
	// workflow that was never defined.
	ErrUnknownWorkflow = errors.New("workflow: unknown workflow")

	// ErrUnknownComplexity is returned when a scheduled item has no
	// complexity classification.
	ErrUnknownComplexity = errors.New("workflow: no complexity entry for item")

	// ErrUnknownLevel is returned for a complexity level that was never
	// registered.
	ErrUnknownLevel = errors.New("workflow: unregistered complexity level")
)

// Level classifies an item's complexity and selects which per-stage effort
// override applies.
type Level string

// Built-in complexity levels.
const (
	LevelHigh Level = "high"
	LevelLow  Level = "low"
)

// LevelSet is the registry of complexity levels, extensible at configuration
// time like the resource-type registry.
type LevelSet struct {
	known map[Level]struct{}
}

// NewLevelSet returns a registry pre-populated with the built-in levels.
func NewLevelSet() *LevelSet {
	s := &LevelSet{known: make(map[Level]struct{})}
	s.Register(LevelHigh)
	s.Register(LevelLow)
	return s
}

// Register adds a level to the registry.
func (s *LevelSet) Register(l Level) { s.known[l] = struct{}{} }

// Known reports whether l has been registered.
func (s *LevelSet) Known(l Level) bool {
	_, ok := s.known[l]
	return ok
}

// Stage is one ordered step of a workflow.
//
// Review and ApprovalRequired are declared configuration carried through from
// the production tracker; the engine does not gate on them (see DESIGN.md).
type Stage struct {
	Name             string
	DefaultHours     float64
	Overrides        map[Level]float64
	ResourceType     resource.Type
	Review           bool
	ApprovalRequired bool
}

// BidHours returns the stage's effort for an item of the given complexity:
// the level's override when one exists, otherwise the default.
func (s Stage) BidHours(level Level) float64 {
	if h, ok := s.Overrides[level]; ok {
		return h
	}
	return s.DefaultHours
}

// Definition is an ordered workflow: the stage list defines the per-item
// state machine's transition order.
type Definition struct {
	name   string
	order  []string
	stages map[string]Stage
}

// NewDefinition builds a workflow from its ordered stages.
func NewDefinition(name string, stages []Stage) (*Definition, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyWorkflow, name)
	}
	d := &Definition{
		name:   name,
		order:  make([]string, 0, len(stages)),
		stages: make(map[string]Stage, len(stages)),
	}
	for _, s := range stages {
		if _, exists := d.stages[s.Name]; exists {
			return nil, fmt.Errorf("%w: %q in %q", ErrDuplicateStage, s.Name, name)
		}
		d.stages[s.Name] = s
		d.order = append(d.order, s.Name)
	}
	return d, nil
}

// Name returns the workflow's identity.
func (d *Definition) Name() string { return d.name }

// StageOrder returns the stage names in transition order.
func (d *Definition) StageOrder() []string { return d.order }

// First returns the first stage name.
func (d *Definition) First() string { return d.order[0] }

// Stage looks up a stage by name.
func (d *Definition) Stage(name string) (Stage, bool) {
	s, ok := d.stages[name]
	return s, ok
}

// NextStage returns the stage following current, or "" when current is the
// last stage (or not part of this workflow).
func (d *Definition) NextStage(current string) string {
	for i, name := range d.order {
		if name == current && i+1 < len(d.order) {
			return d.order[i+1]
		}
	}
	return ""
}

// Complexity classifies one production item.
type Complexity struct {
	Level Level
	// Details carries the per-stage effort breakdown from the production
	// tracker. Stored for reporting; bid selection goes through the stage
	// override table.
	Details map[string]float64
}
