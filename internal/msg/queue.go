package msg

import (
	"sync"
	"time"
)

// Queue is an unbounded ordered FIFO queue. Push never blocks, so the
// producer side can never be stalled by a slow consumer. Intended for a
// single consumer; ordering is only defined per producer goroutine.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	wake  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		wake: make(chan struct{}, 1),
	}
}

// Push appends an item to the queue and wakes a waiting consumer.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// TryPop removes and returns the oldest item without waiting.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	v := q.items[0]
	q.items = q.items[1:]

	if len(q.items) > 0 {
		// Keep the wake signal armed for the remaining items
		select {
		case q.wake <- struct{}{}:
		default:
		}
	}

	return v, true
}

// Poll removes and returns the oldest item, waiting up to timeout for one to
// arrive. A non-positive timeout behaves like TryPop.
func (q *Queue[T]) Poll(timeout time.Duration) (T, bool) {
	if v, ok := q.TryPop(); ok {
		return v, true
	}

	var zero T
	if timeout <= 0 {
		return zero, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.wake:
			if v, ok := q.TryPop(); ok {
				return v, true
			}
			// Spurious wakeup: another Poll consumed the item first
		case <-timer.C:
			return zero, false
		}
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
