package notify

import "sync"

// Priority levels for MultiQueue, drained highest-first.
const (
	HighPriority = iota
	NormalPriority
	LowPriority
)

// MultiQueue is a priority-bucketed FIFO for outbound work: items are
// deduplicated by value equality within a bucket, Get blocks until an
// item is available and moves it to an in-flight set, and Complete
// retires it. The steady-state receive path does not use it; it exists
// for publish/retry scheduling and its depth feeds the Sync indicator.
type MultiQueue[T comparable] struct {
	cond      *sync.Cond
	buckets   [][]T
	inflight  []T
	closed    bool
	zeroValue T
}

// NewMultiQueue creates a queue with the given number of priority
// buckets; priority 0 is drained first.
func NewMultiQueue[T comparable](priorities int) *MultiQueue[T] {
	return &MultiQueue[T]{
		cond:    sync.NewCond(&sync.Mutex{}),
		buckets: make([][]T, priorities),
	}
}

// Put enqueues item at the given priority and reports whether it was
// added. An equal item already waiting in that bucket makes Put a
// no-op returning false.
func (q *MultiQueue[T]) Put(item T, priority int) bool {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	for _, existing := range q.buckets[priority] {
		if existing == item {
			return false
		}
	}
	q.buckets[priority] = append(q.buckets[priority], item)
	q.cond.Signal()
	return true
}

// Get blocks until an item is available, removes it from its bucket in
// priority order, and moves it to the in-flight set. Returns the zero
// value and false after Close.
func (q *MultiQueue[T]) Get() (T, bool) {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	for {
		for priority := range q.buckets {
			if len(q.buckets[priority]) > 0 {
				item := q.buckets[priority][0]
				q.buckets[priority] = q.buckets[priority][1:]
				q.inflight = append(q.inflight, item)
				return item, true
			}
		}
		if q.closed {
			return q.zeroValue, false
		}
		q.cond.Wait()
	}
}

// Complete removes an in-flight item after its work is done.
func (q *MultiQueue[T]) Complete(item T) {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	for i, existing := range q.inflight {
		if existing == item {
			q.inflight = append(q.inflight[:i], q.inflight[i+1:]...)
			return
		}
	}
}

// Find returns the waiting items in a priority's bucket.
func (q *MultiQueue[T]) Find(priority int) []T {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	out := make([]T, len(q.buckets[priority]))
	copy(out, q.buckets[priority])
	return out
}

// Len counts waiting plus in-flight items.
func (q *MultiQueue[T]) Len() int {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	count := len(q.inflight)
	for _, bucket := range q.buckets {
		count += len(bucket)
	}
	return count
}

// Close wakes all blocked Get calls; they return false once the
// buckets are empty.
func (q *MultiQueue[T]) Close() {
	q.cond.L.Lock()
	q.closed = true
	q.cond.L.Unlock()
	q.cond.Broadcast()
}
