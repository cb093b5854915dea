// Package sim is the discrete-event scheduling core: it advances a shared
// simulated clock, runs one cooperative process per production item through
// its workflow's stages, and resolves resource contention through a
// pluggable conflict resolver.
//
// All item processes are logically concurrent but execute single-threaded in
// a strict event order (see wakeQueue); given identical inputs and resolver,
// a run is reproducible bit for bit.
package sim

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/dandori/internal/calendar"
	"github.com/ashita-ai/dandori/internal/resource"
	"github.com/ashita-ai/dandori/internal/workflow"
)

var simMeter = otel.GetMeterProvider().Meter("dandori/sim")

var (
	// ErrNoCreativeInput is returned when a scheduled item has no registered
	// creative-input date.
	ErrNoCreativeInput = errors.New("sim: no creative-input date for item")

	// ErrDuplicateItem is returned when an item is scheduled twice.
	ErrDuplicateItem = errors.New("sim: item already scheduled")

	// ErrRunFinished is returned when Run is invoked a second time on the
	// same engine. Build a fresh engine per run; the resource ledgers are
	// append-only.
	ErrRunFinished = errors.New("sim: engine already ran")
)

// StageHook observes each completed stage event as it is emitted. Hooks run
// synchronously inside the simulation step and must not block.
type StageHook func(Event)

type processState int

const (
	stateWaitingInput processState = iota
	stateAwaitingResource
	stateInProgress
	stateComplete
)

// process is one item's workflow execution: an explicit state machine holding
// its own stage cursor, driven by the engine's wake queue.
type process struct {
	seq       int // registration order; doubles as scheduling priority
	projectID string
	itemID    string
	wf        *workflow.Definition
	level     workflow.Level
	stageIdx  int
	state     processState
	gen       int64

	inPending   bool
	arrivalRank int

	// Current stage while in progress.
	res        *resource.Resource
	bid        float64
	stageStart time.Time
	stageEnd   time.Time

	lastEnd time.Time // end of the most recently completed stage
}

func (p *process) stage() (string, workflow.Stage) {
	name := p.wf.StageOrder()[p.stageIdx]
	s, _ := p.wf.Stage(name)
	return name, s
}

// reservation is a one-shot claim on a resource for a specific workday,
// granted by the conflict resolver. The engine's first-fit scan skips
// resources reserved for other processes, which is what makes a resolver
// match preferential rather than advisory.
type reservation struct {
	res *resource.Resource
	day time.Time
}

// Config wires an Engine. Params and Pool are required; zero values of the
// rest get defaults.
type Config struct {
	Params   *workflow.Params
	Pool     *resource.Pool
	Start    time.Time // simulation day zero; normalized to UTC midnight
	Resolver Resolver  // nil means PriorityMatcher
	Logger   *slog.Logger
	Hooks    []StageHook
}

// Engine owns the simulated clock, the wake queue, and the event list for
// one run. It reads Params, mutates Pool through the allocation API only,
// and is not safe for concurrent use — the concurrency is simulated.
type Engine struct {
	params   *workflow.Params
	pool     *resource.Pool
	clock    *Clock
	resolver Resolver
	logger   *slog.Logger
	hooks    []StageHook

	queue   wakeQueue
	pushSeq int64

	procs        []*process
	byItem       map[string]*process
	pending      map[resource.Type][]*process
	reservations map[*process]reservation
	reservedBy   map[*resource.Resource]*process
	arrival      int

	events []Event
	stalls []Stall
	ran    bool
}

// New builds an engine over the given parameters and pool.
func New(cfg Config) *Engine {
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = PriorityMatcher{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		params:       cfg.Params,
		pool:         cfg.Pool,
		clock:        NewClock(cfg.Start),
		resolver:     resolver,
		logger:       logger,
		hooks:        cfg.Hooks,
		byItem:       make(map[string]*process),
		pending:      make(map[resource.Type][]*process),
		reservations: make(map[*process]reservation),
		reservedBy:   make(map[*resource.Resource]*process),
	}
}

// Clock exposes the engine's simulated-time source.
func (e *Engine) Clock() *Clock { return e.clock }

// Schedule registers one item process executing the named workflow.
// Configuration problems (unknown workflow, missing complexity entry or
// creative-input date, unregistered stage resource type) surface here,
// before any simulated time advances.
func (e *Engine) Schedule(projectID, itemID, workflowName string) error {
	if _, exists := e.byItem[itemID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateItem, itemID)
	}
	wf, err := e.params.Workflow(workflowName)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", itemID, err)
	}
	comp, ok := e.params.Complexity(itemID)
	if !ok {
		return fmt.Errorf("schedule %q: %w", itemID, workflow.ErrUnknownComplexity)
	}
	input, ok := e.params.CreativeInput(itemID)
	if !ok {
		return fmt.Errorf("schedule %q: %w", itemID, ErrNoCreativeInput)
	}
	for _, name := range wf.StageOrder() {
		s, _ := wf.Stage(name)
		if err := e.pool.Types().Validate(s.ResourceType); err != nil {
			return fmt.Errorf("schedule %q: stage %q: %w", itemID, name, err)
		}
	}

	p := &process{
		seq:       len(e.procs),
		projectID: projectID,
		itemID:    itemID,
		wf:        wf,
		level:     comp.Level,
		state:     stateWaitingInput,
	}
	e.procs = append(e.procs, p)
	e.byItem[itemID] = p

	// The first stage cannot start before the creative input arrives.
	at := input
	if at.Before(e.clock.Start()) {
		at = e.clock.Start()
	}
	e.wake(p, at)
	return nil
}

// ScheduleProduction registers every item of a project against one workflow,
// in the given order. Order matters: it fixes scheduling priority.
func (e *Engine) ScheduleProduction(projectID string, itemIDs []string, workflowName string) error {
	for _, id := range itemIDs {
		if err := e.Schedule(projectID, id, workflowName); err != nil {
			return err
		}
	}
	return nil
}

// Run drives the simulation until the horizon (untilDays after day zero) or
// until no process has a pending wakeup, whichever comes first. Items still
// mid-workflow at the end are reported, not failed.
func (e *Engine) Run(ctx context.Context, untilDays int) (*Report, error) {
	if e.ran {
		return nil, ErrRunFinished
	}
	e.ran = true
	horizon := e.clock.Horizon(untilDays)

	for e.queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next := e.queue[0]
		if next.at.After(horizon) {
			break
		}
		w := heap.Pop(&e.queue).(*wakeup)
		if w.gen != w.proc.gen {
			continue // superseded by a later reschedule
		}
		e.clock.advanceTo(w.at)
		if err := e.step(ctx, w.proc); err != nil {
			return nil, err
		}
	}

	return e.report(), nil
}

func (e *Engine) report() *Report {
	rep := &Report{
		RunID:      uuid.New(),
		Events:     e.events,
		Stalls:     e.stalls,
		FinishedAt: e.clock.Now(),
	}
	for _, p := range e.procs {
		if p.state == stateComplete {
			rep.Completed++
			// Finishing any time on the deadline day is on time.
			if deadline, ok := e.params.DeliveryDeadline(p.projectID); ok && p.lastEnd.After(deadline.Add(24*time.Hour)) {
				rep.Late = append(rep.Late, LateItem{
					ItemID:     p.itemID,
					ProjectID:  p.projectID,
					Deadline:   deadline,
					FinishedAt: p.lastEnd,
				})
			}
			continue
		}
		name, _ := p.stage()
		rep.Pending = append(rep.Pending, PendingItem{ItemID: p.itemID, Stage: name})
	}
	rep.Utilization = e.pool.Utilization(e.clock.Start(), e.clock.Now())
	return rep
}

func (e *Engine) wake(p *process, at time.Time) {
	p.gen++
	e.pushSeq++
	heap.Push(&e.queue, &wakeup{at: at, proc: p, gen: p.gen, pushSeq: e.pushSeq})
}

func (e *Engine) step(ctx context.Context, p *process) error {
	switch p.state {
	case stateWaitingInput:
		input, _ := e.params.CreativeInput(p.itemID)
		if e.clock.Now().Before(input) {
			e.wake(p, input)
			return nil
		}
		p.state = stateAwaitingResource
		return e.attemptStage(ctx, p)
	case stateAwaitingResource:
		return e.attemptStage(ctx, p)
	case stateInProgress:
		return e.completeStage(ctx, p)
	default:
		return nil
	}
}

// attemptStage requests a resource for the process's current stage at the
// current simulated time. On contention it consults the resolver once; a
// resolution means an immediate re-attempt at the same timestamp, anything
// else means a stall and a retry one simulated day later.
func (e *Engine) attemptStage(ctx context.Context, p *process) error {
	name, stage := p.stage()
	now := e.clock.Now()
	day := calendar.DateOf(now)

	// Nothing allocates on a non-working day; sleep to the next workday
	// instead of burning a stall on the calendar.
	if !e.pool.Calendar().IsWorkday(day) {
		next, err := e.pool.Calendar().NextWorkday(day)
		if err != nil {
			return fmt.Errorf("item %q stage %q: %w", p.itemID, name, err)
		}
		e.wake(p, next)
		return nil
	}

	started, err := e.tryStart(p, stage, now, day)
	if err != nil {
		return err
	}
	if started {
		return nil
	}

	e.enqueuePending(stage.ResourceType, p)
	resolved, err := e.resolveConflict(ctx, stage.ResourceType, day)
	if err != nil {
		return err
	}
	if resolved {
		// Re-attempt at the same simulated time; a reservation made for this
		// process for today is consumed here.
		started, err = e.tryStart(p, stage, now, day)
		if err != nil {
			return err
		}
		if started {
			return nil
		}
	}

	e.recordStall(ctx, p, name, stage.ResourceType, now)
	e.wake(p, now.Add(24*time.Hour))
	return nil
}

// tryStart books the stage, honoring reservations in both directions: a
// reservation held by this process is consumed first, and the first-fit scan
// skips resources reserved for someone else. On success the process goes
// in-progress and a completion wakeup is scheduled.
func (e *Engine) tryStart(p *process, stage workflow.Stage, now, day time.Time) (bool, error) {
	bid := stage.BidHours(p.level)
	chunk := bid
	if chunk > resource.DailyCapacityHours {
		chunk = resource.DailyCapacityHours
	}

	var (
		res    *resource.Resource
		booked resource.Booking
	)

	if rv, held := e.reservations[p]; held && !day.Before(rv.day) {
		e.releaseReservation(p)
		if day.Equal(rv.day) {
			b, ok, err := e.pool.BookOn(rv.res, day, bid)
			if err != nil {
				return false, err
			}
			if ok {
				res, booked = rv.res, b
			}
		}
		// A reservation past its day expired unused; fall back to the scan.
	}

	if res == nil {
		for _, r := range e.pool.OfType(stage.ResourceType) {
			if holder, taken := e.reservedBy[r]; taken && holder != p {
				continue
			}
			if !r.IsAvailable(day, chunk) {
				continue
			}
			b, err := r.BookEffort(day, bid)
			if err != nil {
				return false, err
			}
			res, booked = r, b
			break
		}
		if res == nil {
			return false, nil
		}
	}

	e.removePending(stage.ResourceType, p)
	p.res = res
	p.bid = bid
	p.stageStart = now
	if booked.SingleDay() {
		p.stageEnd = now.Add(time.Duration(bid * float64(time.Hour)))
	} else {
		p.stageEnd = booked.LastDay.Add(time.Duration(booked.LastDayHours * float64(time.Hour)))
	}
	p.state = stateInProgress
	e.wake(p, p.stageEnd)
	return true, nil
}

// completeStage emits the stage's event and advances the state machine.
func (e *Engine) completeStage(ctx context.Context, p *process) error {
	name, _ := p.stage()
	ev := Event{
		ID:         uuid.New(),
		ItemID:     p.itemID,
		Stage:      name,
		Start:      p.stageStart,
		End:        p.stageEnd,
		ResourceID: p.res.ID(),
		Resource:   p.res.Name(),
		BidHours:   p.bid,
	}
	e.events = append(e.events, ev)
	for _, hook := range e.hooks {
		hook(ev)
	}
	if c, err := simMeter.Int64Counter("sim.stages_completed"); err == nil {
		c.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("stage", name)))
	}
	p.lastEnd = p.stageEnd
	p.res = nil

	if next := p.wf.NextStage(name); next == "" {
		p.state = stateComplete
		return nil
	}
	p.stageIdx++
	p.state = stateAwaitingResource
	return e.attemptStage(ctx, p)
}

func (e *Engine) enqueuePending(typ resource.Type, p *process) {
	if p.inPending {
		return
	}
	p.inPending = true
	p.arrivalRank = e.arrival
	e.arrival++
	e.pending[typ] = append(e.pending[typ], p)
}

func (e *Engine) removePending(typ resource.Type, p *process) {
	if !p.inPending {
		return
	}
	p.inPending = false
	list := e.pending[typ]
	for i, q := range list {
		if q == p {
			e.pending[typ] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (e *Engine) releaseReservation(p *process) {
	if rv, ok := e.reservations[p]; ok {
		delete(e.reservations, p)
		delete(e.reservedBy, rv.res)
	}
}

// resolveConflict hands the pending requests for a resource type to the
// resolver, matching against the next workday's capacity (today's is already
// exhausted — that is why we are here). Matched processes get one-shot
// reservations and a wakeup on the matched day.
func (e *Engine) resolveConflict(ctx context.Context, typ resource.Type, day time.Time) (bool, error) {
	matchDay, err := e.pool.Calendar().NextWorkday(day)
	if err != nil {
		return false, err
	}

	var (
		tasks []Task
		procs []*process
	)
	for _, p := range e.pending[typ] {
		if _, held := e.reservations[p]; held {
			continue // already matched, reservation not yet consumed
		}
		name, stage := p.stage()
		bid := stage.BidHours(p.level)
		chunk := bid
		if chunk > resource.DailyCapacityHours {
			chunk = resource.DailyCapacityHours
		}
		tasks = append(tasks, Task{
			ItemID:     p.itemID,
			Stage:      name,
			Rank:       p.arrivalRank,
			StartHours: chunk,
		})
		procs = append(procs, p)
	}

	var candidates []*resource.Resource
	for _, r := range e.pool.OfType(typ) {
		if _, taken := e.reservedBy[r]; !taken {
			candidates = append(candidates, r)
		}
	}

	assigned := e.resolver.Resolve(matchDay, tasks, candidates)
	if len(assigned) == 0 {
		return false, nil
	}
	for ti := range procs {
		r, ok := assigned[ti]
		if !ok {
			continue
		}
		p := procs[ti]
		e.reservations[p] = reservation{res: r, day: matchDay}
		e.reservedBy[r] = p
		e.logger.Debug("conflict resolved",
			"item", p.itemID, "stage", tasks[ti].Stage, "resource", r.ID(), "for_day", matchDay)
		if p.state == stateAwaitingResource {
			e.wake(p, matchDay)
		}
	}
	if c, err := simMeter.Int64Counter("sim.conflicts_resolved"); err == nil {
		c.Add(ctx, int64(len(assigned)), otelmetric.WithAttributes(attribute.String("resource_type", string(typ))))
	}
	return true, nil
}

func (e *Engine) recordStall(ctx context.Context, p *process, stage string, typ resource.Type, now time.Time) {
	e.stalls = append(e.stalls, Stall{ItemID: p.itemID, Stage: stage, ResourceType: typ, At: now})
	e.logger.Warn("item stalled",
		"item", p.itemID, "stage", stage, "resource_type", string(typ), "sim_time", now)
	if c, err := simMeter.Int64Counter("sim.stalls"); err == nil {
		c.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("resource_type", string(typ))))
	}
}
