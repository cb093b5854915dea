package sim

import (
	"sort"
	"time"

	"github.com/ashita-ai/dandori/internal/resource"
)

// Task is one pending stage request competing for an exhausted resource type.
// Rank is the arrival order of the request: the first item to ask for a stage
// outranks later arrivals.
type Task struct {
	ItemID     string
	Stage      string
	Rank       int
	StartHours float64 // hours the task must book on its first day
}

// Resolver assigns contested tasks to resources when first-fit allocation
// comes up empty. It returns a matching from task index to resource; tasks
// absent from the map stay stalled. Implementations must be deterministic:
// the engine replays runs and expects identical assignments.
type Resolver interface {
	Resolve(date time.Time, tasks []Task, candidates []*resource.Resource) map[int]*resource.Resource
}

// PriorityMatcher is the default Resolver: a minimum-cost maximum-cardinality
// matching on the task/resource bipartite graph where every edge of a task
// costs its priority rank. Because cost depends only on the task, augmenting
// in rank order yields the minimum-cost result without a general flow solver:
// no later augmentation ever unseats an earlier (cheaper) task, it only
// reroutes which resource serves it.
type PriorityMatcher struct{}

// Resolve matches tasks to candidate resources, one task per resource and
// one resource per task. An edge exists where the resource can take the
// task's first-day hours on the given date.
func (PriorityMatcher) Resolve(date time.Time, tasks []Task, candidates []*resource.Resource) map[int]*resource.Resource {
	if len(tasks) == 0 || len(candidates) == 0 {
		return nil
	}

	// Edges per task, in candidate registration order.
	adj := make([][]int, len(tasks))
	for ti, t := range tasks {
		for ci, r := range candidates {
			if r.IsAvailable(date, t.StartHours) {
				adj[ti] = append(adj[ti], ci)
			}
		}
	}

	order := make([]int, len(tasks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return tasks[order[a]].Rank < tasks[order[b]].Rank
	})

	matchC := make([]int, len(candidates)) // candidate -> task, -1 when free
	for i := range matchC {
		matchC[i] = -1
	}

	var augment func(ti int, seen []bool) bool
	augment = func(ti int, seen []bool) bool {
		for _, ci := range adj[ti] {
			if seen[ci] {
				continue
			}
			seen[ci] = true
			if matchC[ci] == -1 || augment(matchC[ci], seen) {
				matchC[ci] = ti
				return true
			}
		}
		return false
	}

	for _, ti := range order {
		augment(ti, make([]bool, len(candidates)))
	}

	assigned := make(map[int]*resource.Resource)
	for ci, ti := range matchC {
		if ti >= 0 {
			assigned[ti] = candidates[ci]
		}
	}
	return assigned
}
