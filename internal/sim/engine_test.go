package sim_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/dandori/internal/calendar"
	"github.com/ashita-ai/dandori/internal/resource"
	"github.com/ashita-ai/dandori/internal/sim"
	"github.com/ashita-ai/dandori/internal/workflow"
)

var (
	monday    = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	tuesday   = monday.AddDate(0, 0, 1)
	wednesday = monday.AddDate(0, 0, 2)
	saturday  = monday.AddDate(0, 0, 5)
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// assetParams defines a two-stage workflow: design (2h) then animate (3h),
// both on quota resources.
func assetParams(t *testing.T) *workflow.Params {
	t.Helper()
	wf, err := workflow.NewDefinition("asset", []workflow.Stage{
		{Name: "design", DefaultHours: 2, ResourceType: resource.TypeQuota},
		{Name: "animate", DefaultHours: 3, ResourceType: resource.TypeQuota},
	})
	require.NoError(t, err)
	p := workflow.NewParams()
	p.AddWorkflow(wf)
	return p
}

// soloParams defines a single-stage workflow with one 8h quota stage.
func soloParams(t *testing.T) *workflow.Params {
	t.Helper()
	wf, err := workflow.NewDefinition("solo", []workflow.Stage{
		{Name: "solo", DefaultHours: 8, ResourceType: resource.TypeQuota},
	})
	require.NoError(t, err)
	p := workflow.NewParams()
	p.AddWorkflow(wf)
	return p
}

func addItem(t *testing.T, p *workflow.Params, itemID string, input time.Time) {
	t.Helper()
	p.AddCreativeInput(itemID, input)
	require.NoError(t, p.DefineComplexity(itemID, workflow.LevelLow, nil))
}

func quotaPool(t *testing.T, cal *calendar.Calendar, ids ...string) *resource.Pool {
	t.Helper()
	pool := resource.NewPool(cal)
	for _, id := range ids {
		_, err := pool.AddResource(id, "artist "+id, resource.TypeQuota)
		require.NoError(t, err)
	}
	return pool
}

func TestEngineSingleItemRunsStagesInOrder(t *testing.T) {
	cal := calendar.New("studio")
	params := assetParams(t)
	addItem(t, params, "cut-01", monday)
	pool := quotaPool(t, cal, "a1")

	eng := sim.New(sim.Config{Params: params, Pool: pool, Start: monday, Logger: quietLogger()})
	require.NoError(t, eng.Schedule("proj", "cut-01", "asset"))

	rep, err := eng.Run(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, rep.Events, 2)
	design, animate := rep.Events[0], rep.Events[1]
	assert.Equal(t, "design", design.Stage)
	assert.Equal(t, "animate", animate.Stage)
	assert.Equal(t, monday, design.Start)
	assert.Equal(t, monday.Add(2*time.Hour), design.End)
	assert.Equal(t, design.End, animate.Start)
	assert.Equal(t, monday.Add(5*time.Hour), animate.End)
	assert.Equal(t, "a1", design.ResourceID)

	assert.Equal(t, 1, rep.Completed)
	assert.Empty(t, rep.Stalls)
	assert.Empty(t, rep.Pending)
	assert.True(t, rep.Quiescent())
	assert.Greater(t, rep.Utilization, 0.0)
}

func TestEngineWaitsForCreativeInput(t *testing.T) {
	cal := calendar.New("studio")
	params := assetParams(t)
	addItem(t, params, "cut-01", wednesday)
	pool := quotaPool(t, cal, "a1")

	eng := sim.New(sim.Config{Params: params, Pool: pool, Start: monday, Logger: quietLogger()})
	require.NoError(t, eng.Schedule("proj", "cut-01", "asset"))

	rep, err := eng.Run(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, rep.Events, 2)
	assert.Equal(t, wednesday, rep.Events[0].Start)
}

func TestEngineWeekendInputSlidesToWorkday(t *testing.T) {
	cal := calendar.New("studio")
	params := assetParams(t)
	addItem(t, params, "cut-01", saturday)
	pool := quotaPool(t, cal, "a1")

	eng := sim.New(sim.Config{Params: params, Pool: pool, Start: monday, Logger: quietLogger()})
	require.NoError(t, eng.Schedule("proj", "cut-01", "asset"))

	rep, err := eng.Run(context.Background(), 14)
	require.NoError(t, err)

	require.Len(t, rep.Events, 2)
	// The weekend attempt sleeps to the next workday instead of stalling.
	assert.Equal(t, monday.AddDate(0, 0, 7), rep.Events[0].Start)
	assert.Empty(t, rep.Stalls)
}

func TestEngineContentionStallsThenRetries(t *testing.T) {
	cal := calendar.New("studio")
	params := soloParams(t)
	addItem(t, params, "cut-01", monday)
	addItem(t, params, "cut-02", monday)
	pool := quotaPool(t, cal, "a1")

	eng := sim.New(sim.Config{Params: params, Pool: pool, Start: monday, Logger: quietLogger()})
	require.NoError(t, eng.ScheduleProduction("proj", []string{"cut-01", "cut-02"}, "solo"))

	rep, err := eng.Run(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, rep.Events, 2)
	first, second := rep.Events[0], rep.Events[1]
	assert.Equal(t, "cut-01", first.ItemID)
	assert.Equal(t, monday, first.Start)
	assert.Equal(t, "cut-02", second.ItemID)
	assert.Equal(t, tuesday, second.Start)

	require.Len(t, rep.Stalls, 1)
	assert.Equal(t, "cut-02", rep.Stalls[0].ItemID)
	assert.Equal(t, monday, rep.Stalls[0].At)
	assert.Equal(t, 2, rep.Completed)
	assert.True(t, rep.Quiescent())
}

func TestEngineResolverReservationBlocksFirstFit(t *testing.T) {
	cal := calendar.New("studio")
	params := workflow.NewParams()

	prep, err := workflow.NewDefinition("prepped", []workflow.Stage{
		{Name: "prep", DefaultHours: 8, ResourceType: resource.TypeSupport},
		{Name: "final", DefaultHours: 8, ResourceType: resource.TypeQuota},
	})
	require.NoError(t, err)
	solo, err := workflow.NewDefinition("solo", []workflow.Stage{
		{Name: "solo", DefaultHours: 8, ResourceType: resource.TypeQuota},
	})
	require.NoError(t, err)
	params.AddWorkflow(prep)
	params.AddWorkflow(solo)
	for _, id := range []string{"cut-a", "cut-b", "cut-c"} {
		addItem(t, params, id, monday)
	}

	pool := resource.NewPool(cal)
	_, err = pool.AddResource("s1", "coordinator", resource.TypeSupport)
	require.NoError(t, err)
	_, err = pool.AddResource("q1", "artist", resource.TypeQuota)
	require.NoError(t, err)

	eng := sim.New(sim.Config{Params: params, Pool: pool, Start: monday, Logger: quietLogger()})
	require.NoError(t, eng.Schedule("proj", "cut-a", "prepped"))
	require.NoError(t, eng.Schedule("proj", "cut-b", "solo"))
	require.NoError(t, eng.Schedule("proj", "cut-c", "solo"))

	rep, err := eng.Run(context.Background(), 10)
	require.NoError(t, err)

	// Monday: cut-a preps on s1, cut-b takes q1, cut-c stalls and reserves q1
	// for Tuesday. cut-a's final stage, attempted Monday evening, must not
	// jump the queue: Tuesday belongs to cut-c.
	require.Len(t, rep.Events, 4)
	byItem := map[string]map[string]sim.Event{}
	for _, ev := range rep.Events {
		if byItem[ev.ItemID] == nil {
			byItem[ev.ItemID] = map[string]sim.Event{}
		}
		byItem[ev.ItemID][ev.Stage] = ev
	}
	assert.Equal(t, monday, byItem["cut-b"]["solo"].Start)
	assert.Equal(t, tuesday, byItem["cut-c"]["solo"].Start)
	assert.True(t, byItem["cut-a"]["final"].Start.After(tuesday.Add(7*time.Hour)),
		"cut-a final should run after cut-c's reserved Tuesday")
	assert.Equal(t, 3, rep.Completed)
	assert.NotEmpty(t, rep.Stalls)
}

// lastPick is a trivial resolver that always grants the first pending task
// the last candidate, exercising the custom-resolver extension point.
type lastPick struct{}

func (lastPick) Resolve(_ time.Time, tasks []sim.Task, candidates []*resource.Resource) map[int]*resource.Resource {
	out := make(map[int]*resource.Resource)
	if len(tasks) > 0 && len(candidates) > 0 {
		out[0] = candidates[len(candidates)-1]
	}
	return out
}

func TestEngineCustomResolverPicksResource(t *testing.T) {
	cal := calendar.New("studio")
	params := soloParams(t)
	for _, id := range []string{"cut-01", "cut-02", "cut-03"} {
		addItem(t, params, id, monday)
	}
	pool := quotaPool(t, cal, "a1", "a2")

	eng := sim.New(sim.Config{
		Params:   params,
		Pool:     pool,
		Start:    monday,
		Resolver: lastPick{},
		Logger:   quietLogger(),
	})
	require.NoError(t, eng.ScheduleProduction("proj", []string{"cut-01", "cut-02", "cut-03"}, "solo"))

	rep, err := eng.Run(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, rep.Events, 3)
	var third sim.Event
	for _, ev := range rep.Events {
		if ev.ItemID == "cut-03" {
			third = ev
		}
	}
	// Plain first-fit would put cut-03 on a1 Tuesday; the resolver granted a2.
	assert.Equal(t, "a2", third.ResourceID)
	assert.Equal(t, tuesday, third.Start)
}

func TestEngineHorizonLeavesPending(t *testing.T) {
	cal := calendar.New("studio")
	params := assetParams(t)
	addItem(t, params, "cut-01", wednesday)
	pool := quotaPool(t, cal, "a1")

	eng := sim.New(sim.Config{Params: params, Pool: pool, Start: monday, Logger: quietLogger()})
	require.NoError(t, eng.Schedule("proj", "cut-01", "asset"))

	rep, err := eng.Run(context.Background(), 1)
	require.NoError(t, err)

	assert.Empty(t, rep.Events)
	assert.Equal(t, 0, rep.Completed)
	require.Len(t, rep.Pending, 1)
	assert.Equal(t, "cut-01", rep.Pending[0].ItemID)
	assert.Equal(t, "design", rep.Pending[0].Stage)
	assert.False(t, rep.Quiescent())
}

func TestEngineDeliveryDeadlines(t *testing.T) {
	cal := calendar.New("studio")
	params := soloParams(t)
	addItem(t, params, "on-time", monday)
	addItem(t, params, "too-late", monday)
	params.SetDeliveryDeadline("proj-ok", monday)
	params.SetDeliveryDeadline("proj-late", monday)
	pool := quotaPool(t, cal, "a1")

	eng := sim.New(sim.Config{Params: params, Pool: pool, Start: monday, Logger: quietLogger()})
	require.NoError(t, eng.Schedule("proj-ok", "on-time", "solo"))
	require.NoError(t, eng.Schedule("proj-late", "too-late", "solo"))

	rep, err := eng.Run(context.Background(), 10)
	require.NoError(t, err)

	// on-time finishes Monday 08:00, within its deadline day; too-late got
	// pushed to Tuesday by contention.
	assert.Equal(t, 2, rep.Completed)
	require.Len(t, rep.Late, 1)
	assert.Equal(t, "too-late", rep.Late[0].ItemID)
	assert.Equal(t, "proj-late", rep.Late[0].ProjectID)
	assert.Equal(t, tuesday.Add(8*time.Hour), rep.Late[0].FinishedAt)
}

func TestEngineScheduleValidation(t *testing.T) {
	cal := calendar.New("studio")
	params := assetParams(t)
	addItem(t, params, "cut-01", monday)
	pool := quotaPool(t, cal, "a1")

	eng := sim.New(sim.Config{Params: params, Pool: pool, Start: monday, Logger: quietLogger()})

	t.Run("unknown workflow", func(t *testing.T) {
		err := eng.Schedule("proj", "cut-01", "nope")
		assert.ErrorIs(t, err, workflow.ErrUnknownWorkflow)
	})

	t.Run("missing complexity", func(t *testing.T) {
		params.AddCreativeInput("cut-02", monday)
		err := eng.Schedule("proj", "cut-02", "asset")
		assert.ErrorIs(t, err, workflow.ErrUnknownComplexity)
	})

	t.Run("missing creative input", func(t *testing.T) {
		require.NoError(t, params.DefineComplexity("cut-03", workflow.LevelLow, nil))
		err := eng.Schedule("proj", "cut-03", "asset")
		assert.ErrorIs(t, err, sim.ErrNoCreativeInput)
	})

	t.Run("unregistered stage resource type", func(t *testing.T) {
		wf, err := workflow.NewDefinition("render", []workflow.Stage{
			{Name: "render", DefaultHours: 4, ResourceType: resource.Type("render_farm")},
		})
		require.NoError(t, err)
		params.AddWorkflow(wf)
		addItem(t, params, "cut-04", monday)
		err = eng.Schedule("proj", "cut-04", "render")
		assert.ErrorIs(t, err, resource.ErrUnknownType)
	})

	t.Run("duplicate item", func(t *testing.T) {
		require.NoError(t, eng.Schedule("proj", "cut-01", "asset"))
		err := eng.Schedule("proj", "cut-01", "asset")
		assert.ErrorIs(t, err, sim.ErrDuplicateItem)
	})
}

func TestEngineRunIsSingleUse(t *testing.T) {
	cal := calendar.New("studio")
	params := assetParams(t)
	addItem(t, params, "cut-01", monday)
	pool := quotaPool(t, cal, "a1")

	eng := sim.New(sim.Config{Params: params, Pool: pool, Start: monday, Logger: quietLogger()})
	require.NoError(t, eng.Schedule("proj", "cut-01", "asset"))

	_, err := eng.Run(context.Background(), 10)
	require.NoError(t, err)
	_, err = eng.Run(context.Background(), 10)
	assert.ErrorIs(t, err, sim.ErrRunFinished)
}

func TestEngineDegenerateCalendarErrors(t *testing.T) {
	cal := calendar.New("idle")
	cal.SetWorkDays() // no working days at all
	params := assetParams(t)
	addItem(t, params, "cut-01", monday)
	pool := quotaPool(t, cal, "a1")

	eng := sim.New(sim.Config{Params: params, Pool: pool, Start: monday, Logger: quietLogger()})
	require.NoError(t, eng.Schedule("proj", "cut-01", "asset"))

	_, err := eng.Run(context.Background(), 10)
	assert.ErrorIs(t, err, calendar.ErrNoWorkdays)
}

func TestEngineCancellation(t *testing.T) {
	cal := calendar.New("studio")
	params := assetParams(t)
	addItem(t, params, "cut-01", monday)
	pool := quotaPool(t, cal, "a1")

	eng := sim.New(sim.Config{Params: params, Pool: pool, Start: monday, Logger: quietLogger()})
	require.NoError(t, eng.Schedule("proj", "cut-01", "asset"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := eng.Run(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineStageHooks(t *testing.T) {
	cal := calendar.New("studio")
	params := assetParams(t)
	addItem(t, params, "cut-01", monday)
	pool := quotaPool(t, cal, "a1")

	var seen []sim.Event
	eng := sim.New(sim.Config{
		Params: params,
		Pool:   pool,
		Start:  monday,
		Logger: quietLogger(),
		Hooks:  []sim.StageHook{func(ev sim.Event) { seen = append(seen, ev) }},
	})
	require.NoError(t, eng.Schedule("proj", "cut-01", "asset"))

	rep, err := eng.Run(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, rep.Events, seen)
}

func TestEngineDeterministicReplay(t *testing.T) {
	build := func() *sim.Engine {
		cal := calendar.New("studio")
		params := soloParams(t)
		for _, id := range []string{"cut-01", "cut-02", "cut-03", "cut-04"} {
			addItem(t, params, id, monday)
		}
		pool := quotaPool(t, cal, "a1", "a2")
		eng := sim.New(sim.Config{Params: params, Pool: pool, Start: monday, Logger: quietLogger()})
		require.NoError(t, eng.ScheduleProduction("proj", []string{"cut-01", "cut-02", "cut-03", "cut-04"}, "solo"))
		return eng
	}

	rep1, err := build().Run(context.Background(), 20)
	require.NoError(t, err)
	rep2, err := build().Run(context.Background(), 20)
	require.NoError(t, err)

	require.Equal(t, len(rep1.Events), len(rep2.Events))
	for i := range rep1.Events {
		a, b := rep1.Events[i], rep2.Events[i]
		assert.Equal(t, a.ItemID, b.ItemID)
		assert.Equal(t, a.Stage, b.Stage)
		assert.Equal(t, a.Start, b.Start)
		assert.Equal(t, a.End, b.End)
		assert.Equal(t, a.ResourceID, b.ResourceID)
	}
	assert.Equal(t, rep1.Stalls, rep2.Stalls)
}
