// Package sched provides the timer queue that drives the crossing controller.
// Every wait in the controller is expressed as a deadline armed here.
// Callbacks run one at a time, in deadline order, on whichever goroutine
// drives the loop (Run in production, Advance in tests).
package sched

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// TimerID names a logical timer. Arming an ID that is already pending
// replaces the pending deadline.
type TimerID string

// Func is a scheduled callback.
type Func func()

type entry struct {
	id       TimerID
	deadline time.Time
	interval time.Duration // > 0 for periodic timers
	fn       Func
	seq      uint64
	index    int
}

type timerHeap []*entry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Loop is a timer queue with named, non-stacking deadlines.
type Loop struct {
	mu     sync.Mutex
	timers timerHeap
	byID   map[TimerID]*entry
	seq    uint64
	now    time.Time
	clock  func() time.Time
	wake   chan struct{}
}

// New creates a Loop whose virtual time starts at start.
func New(start time.Time) *Loop {
	return &Loop{
		byID:  make(map[TimerID]*entry),
		now:   start,
		clock: time.Now,
		wake:  make(chan struct{}, 1),
	}
}

// Now returns the loop's current time. Inside a callback this is the
// deadline the callback was armed for.
func (l *Loop) Now() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now
}

// Arm schedules fn to run once after delay, replacing any pending deadline for id.
func (l *Loop) Arm(id TimerID, delay time.Duration, fn Func) {
	if delay < 0 {
		delay = 0
	}
	l.schedule(id, delay, 0, fn)
}

// Every schedules fn to run every interval, first firing one interval from
// now. It replaces any pending deadline for id.
func (l *Loop) Every(id TimerID, interval time.Duration, fn Func) {
	if interval <= 0 {
		panic("sched: non-positive interval for periodic timer " + string(id))
	}
	l.schedule(id, interval, interval, fn)
}

func (l *Loop) schedule(id TimerID, delay, interval time.Duration, fn Func) {
	l.mu.Lock()
	if old, ok := l.byID[id]; ok {
		heap.Remove(&l.timers, old.index)
	}
	l.seq++
	e := &entry{
		id:       id,
		deadline: l.now.Add(delay),
		interval: interval,
		fn:       fn,
		seq:      l.seq,
	}
	heap.Push(&l.timers, e)
	l.byID[id] = e
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Cancel removes the pending deadline for id. It reports whether one existed.
func (l *Loop) Cancel(id TimerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&l.timers, e.index)
	delete(l.byID, id)
	return true
}

// Armed reports whether id has a pending deadline.
func (l *Loop) Armed(id TimerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.byID[id]
	return ok
}

// Deadline returns the pending deadline for id.
func (l *Loop) Deadline(id TimerID) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.byID[id]
	if !ok {
		return time.Time{}, false
	}
	return e.deadline, true
}

// Next returns the earliest pending deadline.
func (l *Loop) Next() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.timers) == 0 {
		return time.Time{}, false
	}
	return l.timers[0].deadline, true
}

// popDue removes the earliest entry if it is due at or before until.
// Periodic entries are re-armed before their callback runs so the callback
// may cancel or replace them.
func (l *Loop) popDue(until time.Time) (Func, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.timers) == 0 || l.timers[0].deadline.After(until) {
		return nil, false
	}
	e := heap.Pop(&l.timers).(*entry)
	l.now = e.deadline
	if e.interval > 0 {
		l.seq++
		e.deadline = e.deadline.Add(e.interval)
		e.seq = l.seq
		heap.Push(&l.timers, e)
	} else {
		delete(l.byID, e.id)
	}
	return e.fn, true
}

// fireDue runs every callback due at or before until, then moves the
// loop's time to until. It returns the number of callbacks run.
func (l *Loop) fireDue(until time.Time) int {
	n := 0
	for {
		fn, ok := l.popDue(until)
		if !ok {
			break
		}
		fn()
		n++
	}
	l.mu.Lock()
	if until.After(l.now) {
		l.now = until
	}
	l.mu.Unlock()
	return n
}

// Advance moves virtual time forward by d, running every callback that
// falls due on the way. Callbacks armed with zero delay run in the same call.
func (l *Loop) Advance(d time.Duration) int {
	return l.fireDue(l.Now().Add(d))
}

// Run drives the loop from the wall clock until ctx is cancelled.
// It must be the only goroutine firing callbacks. Deadlines armed before
// Run are moved forward by the wall time that passed since the loop's
// current time, so their full delay counts from Run.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	now := l.clock()
	if lag := now.Sub(l.now); lag > 0 {
		for _, e := range l.timers {
			e.deadline = e.deadline.Add(lag)
		}
	}
	l.now = now
	l.mu.Unlock()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		l.fireDue(l.clock())

		var timerC <-chan time.Time
		if next, ok := l.Next(); ok {
			timer.Reset(next.Sub(l.clock()))
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timerC:
		case <-l.wake:
			timer.Stop()
		}
	}
}
