// Package respqueue implements the time-ordered ResponseQueue with a global
// concurrency cap (spec §4.5).
package respqueue

import (
	"container/heap"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hrygo/swarmchat/core/chatmodel"
)

// MaxConcurrentResponses is MAX_CONCURRENT_RESPONSES (I3).
const MaxConcurrentResponses = 2

// QueueRetry is the re-arm delay when a dispatch is blocked by sleep or
// capacity (spec §4.5).
const QueueRetry = 1 * time.Second

// Dispatch is invoked once a task is ready to run. Implementations should
// call onComplete when the generation finishes (success or failure).
type Dispatch func(task chatmodel.QueuedResponse, onComplete func())

// IsSleeping reports whether new dispatches are currently suppressed.
type IsSleeping func() bool

type heapItem struct {
	task  chatmodel.QueuedResponse
	index int
}

type taskHeap []*heapItem

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	return h[i].task.ScheduledTime < h[j].task.ScheduledTime
}
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *taskHeap) Push(x any) {
	item := x.(*heapItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Queue is the ResponseQueue described in spec §4.5.
type Queue struct {
	mu sync.Mutex

	heap        taskHeap
	activeCount int
	maxConcurrent int
	cleared     bool
	processing  bool
	timer       *time.Timer

	dispatch   Dispatch
	isSleeping IsSleeping
	limiter    *rate.Limiter

	now func() time.Time
}

// Option configures a Queue at construction time.
type Option func(*Queue)

// WithRateLimiter attaches an ambient dispatch-smoothing limiter (not part
// of the spec invariants; see SPEC_FULL.md §4.5).
func WithRateLimiter(l *rate.Limiter) Option {
	return func(q *Queue) { q.limiter = l }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// New creates a Queue. dispatch is invoked (possibly concurrently, up to
// MaxConcurrentResponses) once a task's time and capacity conditions are
// met; isSleeping gates every dispatch attempt.
func New(dispatch Dispatch, isSleeping IsSleeping, opts ...Option) *Queue {
	q := &Queue{
		dispatch:      dispatch,
		isSleeping:    isSleeping,
		maxConcurrent: MaxConcurrentResponses,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds one task and triggers processing.
func (q *Queue) Enqueue(task chatmodel.QueuedResponse) {
	q.EnqueueBatch([]chatmodel.QueuedResponse{task})
}

// EnqueueBatch sort-merges tasks into the queue and triggers processing.
func (q *Queue) EnqueueBatch(tasks []chatmodel.QueuedResponse) {
	q.mu.Lock()
	if q.cleared {
		q.cleared = false
	}
	for _, t := range tasks {
		heap.Push(&q.heap, &heapItem{task: t})
	}
	q.mu.Unlock()

	q.process()
}

// process is re-entrant-safe: at most one armed processor at a time.
func (q *Queue) process() {
	q.mu.Lock()
	if q.cleared || q.heap.Len() == 0 || q.activeCount >= q.maxConcurrent {
		q.mu.Unlock()
		return
	}
	if q.processing {
		q.mu.Unlock()
		return
	}
	q.processing = true

	head := q.heap[0].task
	wait := time.Duration(head.ScheduledTime-q.now().UnixMilli()) * time.Millisecond
	q.mu.Unlock()

	if wait <= 0 {
		q.fire()
		return
	}

	q.mu.Lock()
	q.timer = time.AfterFunc(wait, q.fire)
	q.mu.Unlock()
}

// fire runs at the head task's scheduled time: it re-checks sleep and
// capacity, re-arming a retry timer if blocked, otherwise dispatching the
// head task and recursing to handle the next one.
func (q *Queue) fire() {
	q.mu.Lock()
	q.processing = false

	if q.cleared || q.heap.Len() == 0 {
		q.mu.Unlock()
		return
	}

	if (q.isSleeping != nil && q.isSleeping()) || q.activeCount >= q.maxConcurrent {
		q.processing = true
		q.timer = time.AfterFunc(QueueRetry, q.fire)
		q.mu.Unlock()
		return
	}

	if q.limiter != nil && !q.limiter.Allow() {
		q.processing = true
		q.timer = time.AfterFunc(QueueRetry, q.fire)
		q.mu.Unlock()
		return
	}

	item := heap.Pop(&q.heap).(*heapItem)
	q.activeCount++
	q.mu.Unlock()

	q.dispatch(item.task, q.onComplete)
	q.process()
}

// onComplete decrements activeCount and re-arms processing if the queue is
// non-empty.
func (q *Queue) onComplete() {
	q.mu.Lock()
	if q.activeCount > 0 {
		q.activeCount--
	}
	q.mu.Unlock()
	q.process()
}

// Clear empties the queue, cancels any pending timer, and marks the queue
// cleared so in-flight fire()/process() calls become no-ops.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.heap = nil
	q.cleared = true
	q.processing = false
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

// ActiveCount returns the current in-flight generation count.
func (q *Queue) ActiveCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.activeCount
}

// Len returns the number of pending (not yet dispatched) tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}
