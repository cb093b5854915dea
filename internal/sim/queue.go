package sim

import "time"

// wakeup is one scheduled resume of an item process. gen guards against
// stale wakeups: re-scheduling a process bumps its generation, and the pop
// loop discards wakeups whose generation no longer matches.
type wakeup struct {
	at      time.Time
	proc    *process
	gen     int64
	pushSeq int64
}

// wakeQueue is a min-heap keyed by (wake time, process registration order,
// push order). The tie-breaks give the deterministic resume order the
// engine guarantees: everything due at one timestamp advances before time
// moves, in registration/priority order.
type wakeQueue []*wakeup

func (q wakeQueue) Len() int { return len(q) }

func (q wakeQueue) Less(i, j int) bool {
	if !q[i].at.Equal(q[j].at) {
		return q[i].at.Before(q[j].at)
	}
	if q[i].proc.seq != q[j].proc.seq {
		return q[i].proc.seq < q[j].proc.seq
	}
	return q[i].pushSeq < q[j].pushSeq
}

func (q wakeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *wakeQueue) Push(x any) { *q = append(*q, x.(*wakeup)) }

func (q *wakeQueue) Pop() any {
	old := *q
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return w
}
