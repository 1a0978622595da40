// Package event provides a resettable one-shot latch for signalling between
// goroutines.
//
// An Event starts unset. Set transitions it to set and releases every waiter;
// further calls to Set are no-ops until Reset returns it to the unset state.
//
//	ready := event.New()
//	go func() {
//		prepare()
//		ready.Set()
//	}()
//	if !ready.WaitTimeout(time.Second) {
//		log.Println("not ready yet")
//	}
package event

import (
	"context"
	"sync"
	"time"
)

// Event is a settable latch. The zero value is not usable; call New.
type Event struct {
	mu  sync.Mutex
	set bool
	// ch is closed while the event is set and replaced on Reset.
	ch chan struct{}
}

// New returns an unset Event.
func New() *Event {
	return &Event{ch: make(chan struct{})}
}

// IsSet reports whether the event is currently set.
func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// Set marks the event as set and wakes all waiters. It always returns true.
func (e *Event) Set() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setLocked()
	return true
}

// TrySet sets the event and reports whether this call performed the
// transition from unset to set.
func (e *Event) TrySet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set {
		return false
	}
	e.setLocked()
	return true
}

func (e *Event) setLocked() {
	if e.set {
		return
	}
	e.set = true
	close(e.ch)
}

// Reset returns the event to the unset state. It reports whether the event
// was set before the call.
func (e *Event) Reset() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.set {
		return false
	}
	e.set = false
	e.ch = make(chan struct{})
	return true
}

// Done returns a channel that is closed once the event is set. The channel
// captured before a Reset stays closed; fetch a new one after resetting.
func (e *Event) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ch
}

// Wait blocks until the event is set.
func (e *Event) Wait() bool {
	<-e.Done()
	return true
}

// WaitTimeout blocks until the event is set or timeout elapses, and reports
// whether the event was set. A non-positive timeout waits forever.
func (e *Event) WaitTimeout(timeout time.Duration) bool {
	if timeout <= 0 {
		return e.Wait()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-e.Done():
		return true
	case <-timer.C:
		return e.IsSet()
	}
}

// WaitContext blocks until the event is set or ctx is done, and reports
// whether the event was set.
func (e *Event) WaitContext(ctx context.Context) bool {
	select {
	case <-e.Done():
		return true
	case <-ctx.Done():
		return e.IsSet()
	}
}
