/*
Package queue provides a goroutine-safe FIFO queue with an optional capacity
bound and blocking Push/Pop.

Items are stored in a ring buffer (github.com/eapache/queue), so steady-state
push/pop does not allocate. Blocking waits are built on
pkg/concurrent/condition and honour context cancellation.

Basic usage:

	q := queue.New[string](100) // at most 100 items; 0 means unbounded

	if err := q.Push(ctx, "job"); err != nil {
		// ctx canceled or queue closed
	}

	item, err := q.Pop(ctx) // blocks while empty

Non-blocking variants TryPush and TryPop never wait. Close wakes every
blocked caller: pushes fail with errors.ErrClosed, pops drain what is left
and then fail with errors.ErrClosed.
*/
package queue
