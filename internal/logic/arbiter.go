package logic

import "sync/atomic"

// Outcome describes what a button edge did to the pending request.
type Outcome string

const (
	OutcomeAccepted   Outcome = "accepted"   // slot was empty
	OutcomeOverridden Outcome = "overridden" // A replaced a pending B
	OutcomeDuplicate  Outcome = "duplicate"  // same side already pending
	OutcomeIgnored    Outcome = "ignored"    // B while A pending
)

// Arbiter holds at most one pending crossing request. Side A has strict
// priority: it overrides a pending B, and B is only accepted while the slot
// is empty.
//
// The slot is a single atomic word so button edges may arrive from any
// goroutine while the controller reads it from scheduler callbacks.
type Arbiter struct {
	pending atomic.Int32
}

// NewArbiter returns an Arbiter with no pending request.
func NewArbiter() *Arbiter {
	return &Arbiter{}
}

// OnButtonEdge records a debounced falling edge from side.
func (a *Arbiter) OnButtonEdge(side Side) Outcome {
	switch side {
	case SideA:
		prev := Side(a.pending.Swap(int32(SideA)))
		switch prev {
		case SideA:
			return OutcomeDuplicate
		case SideB:
			return OutcomeOverridden
		}
		return OutcomeAccepted
	case SideB:
		if a.pending.CompareAndSwap(int32(SideNone), int32(SideB)) {
			return OutcomeAccepted
		}
		if Side(a.pending.Load()) == SideB {
			return OutcomeDuplicate
		}
		return OutcomeIgnored
	}
	return OutcomeIgnored
}

// Pending returns the pending side without clearing it.
func (a *Arbiter) Pending() Side {
	return Side(a.pending.Load())
}

// Take returns the pending side and clears the slot.
func (a *Arbiter) Take() Side {
	return Side(a.pending.Swap(int32(SideNone)))
}
