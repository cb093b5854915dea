// Package dandori is the public API for embedding the Dandori production
// scheduling simulator.
//
// A Simulator takes a scenario (calendar, staff, workflow definitions, and
// the productions to schedule) and plays it through a discrete-event engine
// to produce a schedule forecast:
//
//	sim, err := dandori.New(
//	    dandori.WithScenarioPath("pilot.json"),
//	    dandori.WithLogger(logger),
//	    dandori.WithStageHook(func(ev dandori.Event) { ... }),
//	)
//	if err != nil { ... }
//	defer sim.Close(ctx)
//	report, err := sim.Run(ctx)
//
// The import graph enforces a strict no-cycle rule: dandori (root) imports
// internal/*, but internal/* never imports dandori (root). Public types
// (Scenario, Event, Report, etc.) are standalone structs with no internal
// imports; conversion helpers live here because this is the only file that
// sees both sides of the boundary.
package dandori

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/dandori/internal/config"
	"github.com/ashita-ai/dandori/internal/resource"
	"github.com/ashita-ai/dandori/internal/sim"
	"github.com/ashita-ai/dandori/internal/storage"
	"github.com/ashita-ai/dandori/internal/telemetry"
)

// Simulator owns one simulation world. Construct with New(), run with Run().
// Simulator has no public fields — use New() options to configure it.
//
// A Simulator is single-use: the resource ledgers are append-only, so a
// second Run on the same instance fails. Build a new Simulator per run.
type Simulator struct {
	cfg          config.Config
	scenario     Scenario
	engine       *sim.Engine
	pool         *resource.Pool
	horizon      int
	archive      *storage.DB // nil when archiving is disabled
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises a simulator: it loads configuration and the scenario,
// builds the calendar, pool, and parameter set, and schedules every
// production. It does not advance simulated time — call Run().
func New(opts ...Option) (*Simulator, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.scenarioPath != "" {
		cfg.ScenarioPath = o.scenarioPath
	}
	if o.horizonDays != 0 {
		cfg.HorizonDays = o.horizonDays
	}
	if o.databasePath != "" {
		cfg.DatabasePath = o.databasePath
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, true)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	scenario := Scenario{}
	if o.scenario != nil {
		scenario = *o.scenario
	} else {
		if cfg.ScenarioPath == "" {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("%w: no scenario given (set DANDORI_SCENARIO or use WithScenario)", ErrInvalidScenario)
		}
		scenario, err = LoadScenario(cfg.ScenarioPath)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, err
		}
	}
	if scenario.Start.IsZero() {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("%w: missing start date", ErrInvalidScenario)
	}

	logger.Info("dandori starting",
		"version", version, "scenario", scenario.Name, "horizon_days", cfg.HorizonDays)

	params, pool, err := buildWorld(scenario, o.quotaCount)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, err
	}

	engineCfg := sim.Config{
		Params: params,
		Pool:   pool,
		Start:  scenario.Start.Time,
		Logger: logger,
	}
	if o.resolver != nil {
		engineCfg.Resolver = &resolverAdapter{r: o.resolver}
	}
	for _, hook := range o.hooks {
		hook := hook
		engineCfg.Hooks = append(engineCfg.Hooks, func(ev sim.Event) {
			hook(toPublicEvent(ev))
		})
	}
	engine := sim.New(engineCfg)

	for _, prod := range scenario.Productions {
		ids := make([]string, 0, len(prod.Items))
		for _, item := range prod.Items {
			ids = append(ids, item.ID)
		}
		if err := engine.ScheduleProduction(prod.Project, ids, prod.Workflow); err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("production %q: %w", prod.Project, err)
		}
	}

	var archive *storage.DB
	if cfg.DatabasePath != "" {
		archive, err = storage.New(context.Background(), cfg.DatabasePath, cfg.ArchiveBatchMax)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, err
		}
	}

	return &Simulator{
		cfg:          cfg,
		scenario:     scenario,
		engine:       engine,
		pool:         pool,
		horizon:      cfg.HorizonDays,
		archive:      archive,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run plays the scenario to its horizon and returns the schedule forecast.
// When archiving is configured, the finished run is persisted before Run
// returns.
func (s *Simulator) Run(ctx context.Context) (*Report, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	tracer := telemetry.Tracer("dandori")
	ctx, span := tracer.Start(ctx, "simulate",
		trace.WithAttributes(
			attribute.String("scenario", s.scenario.Name),
			attribute.Int("horizon_days", s.horizon),
		))
	defer span.End()

	started := time.Now()
	rep, err := s.engine.Run(ctx, s.horizon)
	if err != nil {
		return nil, fmt.Errorf("run scenario %q: %w", s.scenario.Name, err)
	}

	if s.archive != nil {
		if err := s.archive.SaveReport(ctx, s.scenario.Name, s.scenario.Start.Time, s.horizon, rep); err != nil {
			// The forecast is still valid; archiving is best effort.
			s.logger.Warn("archive failed", "run_id", rep.RunID, "error", err)
		}
	}

	s.logger.Info("run complete",
		"run_id", rep.RunID,
		"scenario", s.scenario.Name,
		"events", len(rep.Events),
		"completed", rep.Completed,
		"stalls", len(rep.Stalls),
		"pending", len(rep.Pending),
		"late", len(rep.Late),
		"utilization", rep.Utilization,
		"elapsed", time.Since(started))

	return toPublicReport(s.scenario.Name, rep), nil
}

// Close releases the archive database and flushes telemetry.
func (s *Simulator) Close(ctx context.Context) error {
	var firstErr error
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			firstErr = err
		}
	}
	if err := s.otelShutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// resolverAdapter bridges the public ConflictResolver onto the engine's
// resolver port, translating resources both ways and discarding assignments
// to unknown or doubly-assigned resource IDs.
type resolverAdapter struct {
	r ConflictResolver
}

func (a *resolverAdapter) Resolve(date time.Time, tasks []sim.Task, candidates []*resource.Resource) map[int]*resource.Resource {
	pubTasks := make([]PendingTask, len(tasks))
	for i, t := range tasks {
		pubTasks[i] = PendingTask{
			ItemID:     t.ItemID,
			Stage:      t.Stage,
			Rank:       t.Rank,
			StartHours: t.StartHours,
		}
	}
	byID := make(map[string]*resource.Resource, len(candidates))
	pubCands := make([]CandidateResource, len(candidates))
	for i, r := range candidates {
		byID[r.ID()] = r
		pubCands[i] = CandidateResource{
			ID:        r.ID(),
			Name:      r.Name(),
			Type:      string(r.Type()),
			Working:   r.IsAvailable(date, 0),
			FreeHours: resource.DailyCapacityHours - r.AssignedHours(date),
		}
	}

	got := a.r.Resolve(date, pubTasks, pubCands)
	out := make(map[int]*resource.Resource, len(got))
	used := make(map[string]bool, len(got))
	for ti := range tasks {
		id, ok := got[ti]
		if !ok || used[id] {
			continue
		}
		r, known := byID[id]
		if !known {
			continue
		}
		out[ti] = r
		used[id] = true
	}
	return out
}

func toPublicEvent(ev sim.Event) Event {
	return Event{
		ID:         ev.ID,
		ItemID:     ev.ItemID,
		Stage:      ev.Stage,
		Start:      ev.Start,
		End:        ev.End,
		ResourceID: ev.ResourceID,
		Resource:   ev.Resource,
		BidHours:   ev.BidHours,
	}
}

func toPublicReport(scenario string, rep *sim.Report) *Report {
	out := &Report{
		RunID:       rep.RunID,
		Scenario:    scenario,
		Events:      make([]Event, 0, len(rep.Events)),
		Completed:   rep.Completed,
		FinishedAt:  rep.FinishedAt,
		Utilization: rep.Utilization,
	}
	for _, ev := range rep.Events {
		out.Events = append(out.Events, toPublicEvent(ev))
	}
	for _, s := range rep.Stalls {
		out.Stalls = append(out.Stalls, Stall{
			ItemID:       s.ItemID,
			Stage:        s.Stage,
			ResourceType: string(s.ResourceType),
			At:           s.At,
		})
	}
	for _, p := range rep.Pending {
		out.Pending = append(out.Pending, PendingItem{ItemID: p.ItemID, Stage: p.Stage})
	}
	for _, l := range rep.Late {
		out.Late = append(out.Late, LateItem{
			ItemID:     l.ItemID,
			ProjectID:  l.ProjectID,
			Deadline:   l.Deadline,
			FinishedAt: l.FinishedAt,
		})
	}
	return out
}
