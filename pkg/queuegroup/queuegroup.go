// Package queuegroup implements spec §4.10's named-queue concurrency engine:
// one group of per-key FIFOs shared by a worker pool, with round-robin
// pop_any, key-restricted pop_from, exclusive handler assignment, throttle
// and max watermarks, and a close/drain protocol. Spec §5's design notes
// call this one condition-variable-guarded state machine a correctness
// property, not an implementation detail, since pop_any's round-robin scan
// and assign_handler's blocking-until-free semantics are not naturally
// expressed with bare channels. Grounded on cuemby-warren's pkg/worker
// idiom of a single mutex guarding a name-keyed map (there, containers by
// ID; here, queues by key), generalised to a sync.Cond so blocked pops and
// pushes wake on every state change instead of polling.
package queuegroup

import (
	"sort"
	"sync"
	"time"
)

// PushResult reports how a push landed, per push's four outcomes.
type PushResult int

const (
	HasSpace PushResult = iota
	LowSpace
	Full
	Closed
)

// Nudge is the single wakeup byte a pop writes when a queue's size just
// fell to the throttle watermark, so a producer blocked on push(deadline)
// for that key can recheck promptly instead of waiting out its timeout.
type Nudge interface {
	Write() error
}

type queueState struct {
	items      []interface{}
	inProgress map[interface{}]struct{}
	active     bool
	assigned   bool
}

func (q *queueState) size() int {
	return len(q.items) + len(q.inProgress)
}

// boring reports whether this entry carries no information worth keeping:
// empty queue, empty in-progress set, active, unassigned. Per spec §4.10's
// "boring queue" garbage-collection rule.
func (q *queueState) boring() bool {
	return len(q.items) == 0 && len(q.inProgress) == 0 && q.active && !q.assigned
}

// Group is one named-queue pool: a task pipeline stage's pending work,
// keyed by collection name.
type Group struct {
	mu           sync.Mutex
	cond         *sync.Cond
	closed       bool
	throttleSize int
	maxSize      int
	queues       map[string]*queueState
	nudge        Nudge
}

// New returns an empty, open queue group. throttleSize is the watermark
// throttled pushes respect; maxSize is the hard ceiling non-throttled
// pushes respect. nudge may be nil.
func New(throttleSize, maxSize int, nudge Nudge) *Group {
	g := &Group{
		throttleSize: throttleSize,
		maxSize:      maxSize,
		queues:       make(map[string]*queueState),
		nudge:        nudge,
	}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *Group) queueFor(key string) *queueState {
	q, ok := g.queues[key]
	if !ok {
		q = &queueState{active: true}
		g.queues[key] = q
	}
	return q
}

func (g *Group) gc(key string) {
	if q, ok := g.queues[key]; ok && q.boring() {
		delete(g.queues, key)
	}
}

// waitLocked blocks on the condition until broadcast, or until deadline
// passes if deadline is non-zero. Must be called with g.mu held; returns
// with g.mu held.
func (g *Group) waitLocked(deadline time.Time) {
	if deadline.IsZero() {
		g.cond.Wait()
		return
	}
	timer := time.AfterFunc(time.Until(deadline), func() {
		g.mu.Lock()
		g.cond.Broadcast()
		g.mu.Unlock()
	})
	defer timer.Stop()
	g.cond.Wait()
}

// Push enqueues task under key, per push. allowThrottle selects which
// watermark governs fullness: the throttle size if true, the hard max if
// false. A zero deadline means decide immediately, never block; a
// non-zero deadline blocks, re-checking on every wakeup, until space frees
// or the deadline passes.
func (g *Group) Push(key string, task interface{}, allowThrottle bool, deadline time.Time) PushResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		if g.closed {
			return Closed
		}
		q := g.queueFor(key)
		limit := g.maxSize
		if allowThrottle {
			limit = g.throttleSize
		}
		if q.size() < limit {
			q.items = append(q.items, task)
			g.cond.Broadcast()
			if q.size() >= g.throttleSize {
				return LowSpace
			}
			return HasSpace
		}
		if deadline.IsZero() || !time.Now().Before(deadline) {
			return Full
		}
		g.waitLocked(deadline)
	}
}

// sortedKeys returns queue keys in ascending order, for deterministic
// round robin and handler assignment.
func (g *Group) sortedKeys() []string {
	keys := make([]string, 0, len(g.queues))
	for k := range g.queues {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// nextEligible scans queues in round-robin order starting just after
// afterKey, returning the first active, unassigned, non-empty one.
func (g *Group) nextEligible(afterKey string) (string, bool) {
	keys := g.sortedKeys()
	if len(keys) == 0 {
		return "", false
	}
	start := 0
	for i, k := range keys {
		if k > afterKey {
			start = i
			break
		}
		start = 0
	}
	for i := 0; i < len(keys); i++ {
		k := keys[(start+i)%len(keys)]
		q := g.queues[k]
		if q.active && !q.assigned && len(q.items) > 0 {
			return k, true
		}
	}
	return "", false
}

func (g *Group) anyWork() bool {
	for _, q := range g.queues {
		if q.size() > 0 {
			return true
		}
	}
	return false
}

func (g *Group) completeLocked(completedKey string, completedTask interface{}) {
	if completedTask == nil {
		return
	}
	if q, ok := g.queues[completedKey]; ok {
		delete(q.inProgress, completedTask)
		g.gc(completedKey)
		g.cond.Broadcast()
	}
}

func (g *Group) moveToInProgress(q *queueState, task interface{}) {
	if q.inProgress == nil {
		q.inProgress = make(map[interface{}]struct{})
	}
	q.inProgress[task] = struct{}{}
}

func (g *Group) maybeNudge(oldSize, newSize int) {
	if g.nudge == nil {
		return
	}
	if oldSize == g.throttleSize && newSize == g.throttleSize-1 {
		_ = g.nudge.Write()
	}
}

// PopResult is the outcome of pop_any/pop_from.
type PopResult struct {
	Task     interface{}
	Key      string
	Finished bool
}

// PopAny pops the next task from any active, unassigned, non-empty queue,
// round robin starting after lastKey, per pop_any. It blocks until such a
// queue exists or the group is closed and fully drained. If completedTask
// is non-nil it is first removed from lastKey's in-progress set.
func (g *Group) PopAny(lastKey string, completedTask interface{}) PopResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.completeLocked(lastKey, completedTask)

	for {
		if key, ok := g.nextEligible(lastKey); ok {
			q := g.queues[key]
			task := q.items[0]
			q.items = q.items[1:]
			g.moveToInProgress(q, task)
			g.maybeNudge(len(q.items)+1, len(q.items))
			g.cond.Broadcast()
			return PopResult{Task: task, Key: key}
		}
		if g.closed && !g.anyWork() {
			return PopResult{Finished: true}
		}
		g.waitLocked(time.Time{})
	}
}

// PopFrom pops the next task from key only, per pop_from. It blocks until
// a task is available, the deadline (if non-zero) passes, or the group is
// closed and that queue is fully drained. deadline.IsZero() means block
// indefinitely. A zero-value, non-finished result with a nil Task signals
// the deadline elapsed with nothing to pop, which indexing workers use to
// decide to commit and release.
func (g *Group) PopFrom(key string, deadline time.Time, completedKey string, completedTask interface{}) PopResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.completeLocked(completedKey, completedTask)

	for {
		q, ok := g.queues[key]
		if ok && q.active && len(q.items) > 0 {
			task := q.items[0]
			q.items = q.items[1:]
			g.moveToInProgress(q, task)
			g.maybeNudge(len(q.items)+1, len(q.items))
			g.cond.Broadcast()
			return PopResult{Task: task, Key: key}
		}
		if g.closed && (!ok || q.size() == 0) {
			return PopResult{Finished: true}
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return PopResult{}
		}
		g.waitLocked(deadline)
	}
}

// AssignHandler claims an active, unassigned queue for exclusive
// ownership (an indexing worker binding itself to one collection), per
// assign_handler. It blocks until one is available, returning false only
// if the group is closed with nothing left to assign.
func (g *Group) AssignHandler() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		for _, k := range g.sortedKeys() {
			q := g.queues[k]
			if q.active && !q.assigned {
				q.assigned = true
				return k, true
			}
		}
		if g.closed {
			return "", false
		}
		g.waitLocked(time.Time{})
	}
}

// UnassignHandler releases key's exclusive ownership, per
// unassign_handler, garbage collecting the entry if it is now boring.
func (g *Group) UnassignHandler(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if q, ok := g.queues[key]; ok {
		q.assigned = false
		g.gc(key)
	}
	g.cond.Broadcast()
}

// SetActive toggles whether key's queue participates in pops, per
// set_active, without affecting pushes. The entry is created if absent,
// so a key can be deactivated pre-emptively (the back-pressure edge case
// in task manager's queue_index_processed_doc).
func (g *Group) SetActive(key string, active bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	q := g.queueFor(key)
	q.active = active
	if active {
		g.cond.Broadcast()
	}
	g.gc(key)
}

// Close closes the group: pushes now return Closed, every existing key is
// forced active so its remaining items drain, and every blocked pop wakes
// to re-evaluate against the closed state.
func (g *Group) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	for _, q := range g.queues {
		q.active = true
	}
	g.cond.Broadcast()
}

// Closed reports whether Close has been called.
func (g *Group) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// WaitEmpty blocks until every queue's pending-plus-in-progress count is
// zero. Used by the task manager's join protocol to wait out a pipeline
// stage without itself closing the group.
func (g *Group) WaitEmpty() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for !g.allEmptyLocked() {
		g.waitLocked(time.Time{})
	}
}

func (g *Group) allEmptyLocked() bool {
	for _, q := range g.queues {
		if q.size() > 0 {
			return false
		}
	}
	return true
}

// GetQueuesWithSpace returns, in sorted order, every key whose current
// size is below the throttle watermark, per get_queues_with_space.
func (g *Group) GetQueuesWithSpace() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, k := range g.sortedKeys() {
		if g.queues[k].size() < g.throttleSize {
			out = append(out, k)
		}
	}
	return out
}
