package dandori

import "time"

// ConflictResolver decides which competing items get scarce capacity.
// When provided via WithResolver, replaces the built-in priority matcher.
//
// Resolve receives the items waiting on one resource type and the candidate
// resources for the given day, and returns a partial assignment: task index
// to resource ID. Unknown resource IDs and duplicate assignments are
// discarded. Implementations must be deterministic for a given input —
// run reproducibility depends on it.
type ConflictResolver interface {
	Resolve(date time.Time, tasks []PendingTask, candidates []CandidateResource) map[int]string
}

// StageHook observes each completed stage event as it is emitted, in
// simulated-time order. Hooks run synchronously inside the simulation step —
// they must not block. Multiple hooks may be registered; all receive every
// event.
type StageHook func(Event)
