package dandori

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ashita-ai/dandori/internal/calendar"
	"github.com/ashita-ai/dandori/internal/resource"
	"github.com/ashita-ai/dandori/internal/workflow"
)

// ErrInvalidScenario wraps every scenario validation failure.
var ErrInvalidScenario = errors.New("dandori: invalid scenario")

// LoadScenario reads and parses a scenario JSON file. Structural validation
// happens later, when the Simulator builds its world from the scenario.
func LoadScenario(path string) (Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("load scenario: %w", err)
	}
	var s Scenario
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario %q: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	return s, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// buildWorld converts a scenario into the engine's configuration: the
// calendar, the resource pool, and the parameter set. quotaCount > 0 replaces
// the scenario's quota resources with generated ones (capacity sweeps).
func buildWorld(s Scenario, quotaCount int) (*workflow.Params, *resource.Pool, error) {
	if len(s.Workflows) == 0 {
		return nil, nil, fmt.Errorf("%w: no workflows", ErrInvalidScenario)
	}
	if len(s.Resources) == 0 && quotaCount <= 0 {
		return nil, nil, fmt.Errorf("%w: no resources", ErrInvalidScenario)
	}

	calName := s.Calendar.Name
	if calName == "" {
		calName = "studio"
	}
	cal := calendar.New(calName)
	if len(s.Calendar.WorkDays) > 0 {
		var days []time.Weekday
		for _, name := range s.Calendar.WorkDays {
			d, ok := weekdayNames[strings.ToLower(name)]
			if !ok {
				return nil, nil, fmt.Errorf("%w: unknown weekday %q", ErrInvalidScenario, name)
			}
			days = append(days, d)
		}
		cal.SetWorkDays(days...)
	}
	for _, h := range s.Calendar.Holidays {
		cal.AddHoliday(h.Time)
	}
	for _, c := range s.Calendar.Closures {
		cal.AddVacation(c.From.Time, c.To.Time)
	}

	params := workflow.NewParams()
	params.AddCalendar(calName, cal)
	for _, l := range s.Levels {
		params.Levels().Register(workflow.Level(l))
	}

	pool := resource.NewPool(cal)
	for _, t := range s.Types {
		pool.Types().Register(resource.Type(t))
	}
	for _, rs := range s.Resources {
		if quotaCount > 0 && resource.Type(rs.Type) == resource.TypeQuota {
			continue // replaced by the generated quota staff below
		}
		r, err := pool.AddResource(rs.ID, rs.Name, resource.Type(rs.Type))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: resource %q: %v", ErrInvalidScenario, rs.ID, err)
		}
		for _, v := range rs.Vacations {
			r.AddVacation(v.From.Time, v.To.Time)
		}
	}
	for i := 0; i < quotaCount; i++ {
		id := fmt.Sprintf("quota-%02d", i+1)
		if _, err := pool.AddResource(id, "quota slot "+id, resource.TypeQuota); err != nil {
			return nil, nil, fmt.Errorf("%w: resource %q: %v", ErrInvalidScenario, id, err)
		}
	}

	for _, ws := range s.Workflows {
		stages := make([]workflow.Stage, 0, len(ws.Stages))
		for _, st := range ws.Stages {
			stage := workflow.Stage{
				Name:             st.Name,
				DefaultHours:     st.Hours,
				ResourceType:     resource.Type(st.ResourceType),
				Review:           st.Review,
				ApprovalRequired: st.ApprovalRequired,
			}
			if st.Hours < 0 {
				return nil, nil, fmt.Errorf("%w: stage %q has negative hours", ErrInvalidScenario, st.Name)
			}
			if len(st.HoursByLevel) > 0 {
				stage.Overrides = make(map[workflow.Level]float64, len(st.HoursByLevel))
				for l, h := range st.HoursByLevel {
					if !params.Levels().Known(workflow.Level(l)) {
						return nil, nil, fmt.Errorf("%w: stage %q overrides unknown level %q", ErrInvalidScenario, st.Name, l)
					}
					stage.Overrides[workflow.Level(l)] = h
				}
			}
			stages = append(stages, stage)
		}
		def, err := workflow.NewDefinition(ws.Name, stages)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: workflow %q: %v", ErrInvalidScenario, ws.Name, err)
		}
		params.AddWorkflow(def)
	}

	for _, prod := range s.Productions {
		if prod.Deadline != nil {
			params.SetDeliveryDeadline(prod.Project, prod.Deadline.Time)
		}
		for _, item := range prod.Items {
			params.AddCreativeInput(item.ID, item.CreativeInput.Time)
			level := workflow.Level(item.Level)
			if item.Level == "" {
				level = workflow.LevelLow
			}
			if err := params.DefineComplexity(item.ID, level, item.Details); err != nil {
				return nil, nil, fmt.Errorf("%w: item %q: %v", ErrInvalidScenario, item.ID, err)
			}
		}
	}

	return params, pool, nil
}
