// Package condition provides a condition variable whose waits report how
// much of their time budget is left.
//
// sync.Cond cannot time out; Condition can, and every wait returns a Result
// that tells the caller whether it is still worth waiting again:
//
//	mu.Lock()
//	for !ready {
//		res, err := cond.WaitTimeout(&mu, time.Second)
//		if err != nil || res.TimedOut() {
//			break
//		}
//	}
//	mu.Unlock()
package condition

import (
	"context"
	"sync"
	"time"

	gferrors "github.com/vnykmshr/goexec/pkg/common/errors"
)

// Locker is a lock that can be probed without blocking. *sync.Mutex
// satisfies it.
type Locker interface {
	sync.Locker
	TryLock() bool
}

// Result describes how a wait ended.
type Result struct {
	remaining time.Duration
	bounded   bool
}

// Remaining returns the unused part of the wait budget. It is meaningless
// for unbounded waits and reported as -1.
func (r Result) Remaining() time.Duration {
	if !r.bounded {
		return -1
	}
	return r.remaining
}

// CanWait reports whether another wait with the same budget would still have
// time left. Unbounded waits can always wait again.
func (r Result) CanWait() bool {
	return !r.bounded || r.remaining > 0
}

// TimedOut reports whether the wait ran out of time.
func (r Result) TimedOut() bool {
	return r.bounded && r.remaining <= 0
}

// Condition is a condition variable with FIFO wake-up order.
type Condition struct {
	mu      sync.Mutex
	waiters []chan struct{}
}

// New returns a Condition with no waiters.
func New() *Condition {
	return &Condition{}
}

// Wait releases l, blocks until signalled and re-acquires l before
// returning. The caller must hold l.
func (c *Condition) Wait(l Locker) (Result, error) {
	return c.wait(context.Background(), l, 0)
}

// WaitTimeout is Wait bounded by timeout. A non-positive timeout waits
// until signalled.
func (c *Condition) WaitTimeout(l Locker, timeout time.Duration) (Result, error) {
	return c.wait(context.Background(), l, timeout)
}

// WaitContext is Wait bounded by ctx. A deadline on ctx makes the wait
// bounded; plain cancellation ends the wait without marking it timed out,
// so callers should also check ctx.Err().
func (c *Condition) WaitContext(ctx context.Context, l Locker) (Result, error) {
	return c.wait(ctx, l, 0)
}

func (c *Condition) wait(ctx context.Context, l Locker, timeout time.Duration) (Result, error) {
	// Only detects a lock that nobody holds; a lock held by another
	// goroutine is indistinguishable from one held by the caller.
	if l.TryLock() {
		l.Unlock()
		return Result{}, gferrors.ErrLockNotHeld
	}

	start := time.Now()
	deadline, bounded := ctx.Deadline()
	if timeout > 0 {
		if d := start.Add(timeout); !bounded || d.Before(deadline) {
			deadline = d
		}
		bounded = true
	}

	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()

	l.Unlock()

	var expired <-chan time.Time
	if bounded {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-ch:
	case <-expired:
		c.remove(ch)
	case <-ctx.Done():
		c.remove(ch)
	}

	l.Lock()

	if !bounded {
		return Result{}, nil
	}
	return Result{remaining: time.Until(deadline), bounded: true}, nil
}

// remove drops ch from the waiter list. A waiter already handed a signal is
// no longer listed, so the signal is kept rather than lost.
func (c *Condition) remove(ch chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// Signal wakes the longest-waiting goroutine, if any, and reports whether
// one was woken.
func (c *Condition) Signal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.waiters) == 0 {
		return false
	}
	ch := c.waiters[0]
	c.waiters[0] = nil
	c.waiters = c.waiters[1:]
	ch <- struct{}{}
	return true
}

// Broadcast wakes every waiting goroutine and returns how many were woken.
func (c *Condition) Broadcast() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.waiters)
	for _, ch := range c.waiters {
		ch <- struct{}{}
	}
	c.waiters = nil
	return n
}

// Waiting returns the number of goroutines currently blocked in a wait.
func (c *Condition) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
