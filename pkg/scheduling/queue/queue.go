package queue

import (
	"context"
	"sync"

	"github.com/eapache/queue"

	"github.com/vnykmshr/goexec/pkg/concurrent/condition"
	gferrors "github.com/vnykmshr/goexec/pkg/common/errors"
)

// Unbounded reports the remaining capacity of a queue without a bound.
const Unbounded = -1

// BlockingQueue is a FIFO queue safe for concurrent use.
type BlockingQueue[T any] struct {
	mu       sync.Mutex
	items    *queue.Queue
	capacity int
	closed   bool

	notEmpty *condition.Condition
	notFull  *condition.Condition
}

// New creates a queue holding at most capacity items. A capacity of 0 (or
// less) creates an unbounded queue.
func New[T any](capacity int) *BlockingQueue[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &BlockingQueue[T]{
		items:    queue.New(),
		capacity: capacity,
		notEmpty: condition.New(),
		notFull:  condition.New(),
	}
}

func (q *BlockingQueue[T]) fullLocked() bool {
	return q.capacity > 0 && q.items.Length() >= q.capacity
}

// Push appends v, blocking while the queue is full.
func (q *BlockingQueue[T]) Push(ctx context.Context, v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.closed {
			return gferrors.ErrClosed
		}
		if !q.fullLocked() {
			break
		}
		if _, err := q.notFull.WaitContext(ctx, &q.mu); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			// hand a wake-up we may have consumed to the next producer
			if !q.fullLocked() {
				q.notFull.Signal()
			}
			return err
		}
	}

	q.items.Add(v)
	q.notEmpty.Signal()
	return nil
}

// TryPush appends v if there is room and the queue is open.
func (q *BlockingQueue[T]) TryPush(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.fullLocked() {
		return false
	}
	q.items.Add(v)
	q.notEmpty.Signal()
	return true
}

// Pop removes and returns the oldest item, blocking while the queue is
// empty. After Close, remaining items are still returned; once drained Pop
// fails with errors.ErrClosed.
func (q *BlockingQueue[T]) Pop(ctx context.Context) (T, error) {
	var zero T

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Length() == 0 {
		if q.closed {
			return zero, gferrors.ErrClosed
		}
		if _, err := q.notEmpty.WaitContext(ctx, &q.mu); err != nil {
			return zero, err
		}
		if err := ctx.Err(); err != nil {
			if q.items.Length() > 0 {
				q.notEmpty.Signal()
			}
			return zero, err
		}
	}

	return q.removeLocked(), nil
}

// TryPop removes and returns the oldest item without blocking.
func (q *BlockingQueue[T]) TryPop() (T, bool) {
	var zero T

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Length() == 0 {
		return zero, false
	}
	return q.removeLocked(), true
}

func (q *BlockingQueue[T]) removeLocked() T {
	v, _ := q.items.Remove().(T)
	q.notFull.Signal()
	return v
}

// Len returns the number of queued items.
func (q *BlockingQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Cap returns the capacity bound, 0 for an unbounded queue.
func (q *BlockingQueue[T]) Cap() int {
	return q.capacity
}

// Remaining returns how many more items fit, or Unbounded.
func (q *BlockingQueue[T]) Remaining() int {
	if q.capacity == 0 {
		return Unbounded
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity - q.items.Length()
}

// Waiting returns the number of consumers blocked in Pop.
func (q *BlockingQueue[T]) Waiting() int {
	return q.notEmpty.Waiting()
}

// Clear discards every queued item and returns how many were dropped.
func (q *BlockingQueue[T]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.items.Length()
	q.items = queue.New()
	q.notFull.Broadcast()
	return n
}

// Close stops the queue from accepting items and wakes all blocked callers.
// Close is idempotent.
func (q *BlockingQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Closed reports whether Close has been called.
func (q *BlockingQueue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
