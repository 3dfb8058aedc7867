// Package logic contains the pure crossing controller: the request arbiter,
// the phase controller and the countdown/buzzer scheduler.
// This package has NO hardware, MQTT or OS dependencies. Time only enters
// through the Scheduler it is handed.
package logic

import (
	"fmt"
	"time"

	"github.com/sweeney/pelican/internal/sched"
)

// Phase is the signal's current display state. Exactly one is active.
type Phase int

const (
	PhaseRed Phase = iota
	PhaseGreen
	PhaseYellow
	PhaseCrossingA
	PhaseCrossingB
)

// String returns the wire name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseRed:
		return "RED"
	case PhaseGreen:
		return "GREEN"
	case PhaseYellow:
		return "YELLOW"
	case PhaseCrossingA:
		return "CROSSING_A"
	case PhaseCrossingB:
		return "CROSSING_B"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Label returns the human-readable status text for the phase.
func (p Phase) Label() string {
	switch p {
	case PhaseRed:
		return "red"
	case PhaseGreen:
		return "green"
	case PhaseYellow:
		return "yellow"
	case PhaseCrossingA:
		return "crossing A"
	case PhaseCrossingB:
		return "crossing B"
	}
	panic(invariantf("unknown phase %d", int(p)))
}

// IsCrossing reports whether p is a pedestrian crossing phase.
func (p Phase) IsCrossing() bool {
	return p == PhaseCrossingA || p == PhaseCrossingB
}

// Side identifies a pedestrian button. SideNone means no request.
type Side int32

const (
	SideNone Side = iota
	SideA
	SideB
)

func (s Side) String() string {
	switch s {
	case SideNone:
		return "NONE"
	case SideA:
		return "A"
	case SideB:
		return "B"
	}
	return fmt.Sprintf("Side(%d)", int32(s))
}

// ParseSide parses "A" or "B" (case-insensitive).
func ParseSide(s string) (Side, error) {
	switch s {
	case "A", "a":
		return SideA, nil
	case "B", "b":
		return SideB, nil
	}
	return SideNone, fmt.Errorf("unknown side %q", s)
}

// crossingPhase returns the crossing phase that services side.
func crossingPhase(s Side) Phase {
	switch s {
	case SideA:
		return PhaseCrossingA
	case SideB:
		return PhaseCrossingB
	}
	panic(invariantf("no crossing phase for side %s", s))
}

// Channel is one of the two audible outputs.
type Channel int

const (
	Channel1 Channel = iota + 1
	Channel2
)

func (c Channel) String() string {
	switch c {
	case Channel1:
		return "CH1"
	case Channel2:
		return "CH2"
	}
	return fmt.Sprintf("Channel(%d)", int(c))
}

// other returns the channel not equal to c. The zero value yields Channel1
// so the first pulse ever uses Channel1.
func (c Channel) other() Channel {
	if c == Channel1 {
		return Channel2
	}
	return Channel1
}

// Output is the set of side effects the core issues. Implementations must
// not block; they are called from scheduler callbacks.
type Output interface {
	// SetSignal drives the red/green indicators for phase (YELLOW = both).
	SetSignal(phase Phase)
	// SetBuzzer asserts or deasserts one audible channel.
	SetBuzzer(ch Channel, on bool)
	// RenderStatus is a best-effort display update. countdown is 0 outside
	// a running crossing countdown.
	RenderStatus(text string, countdown int)
}

// Scheduler is the subset of the timer queue used by the core.
type Scheduler interface {
	Arm(id sched.TimerID, delay time.Duration, fn sched.Func)
	Every(id sched.TimerID, interval time.Duration, fn sched.Func)
	Cancel(id sched.TimerID) bool
	Now() time.Time
}

// Timer IDs owned by the core.
const (
	TimerPhase     sched.TimerID = "phase"
	TimerCountdown sched.TimerID = "countdown"
	TimerBuzzer    sched.TimerID = "buzzer"
)

// Timing holds every duration the core uses.
type Timing struct {
	RedHold          time.Duration
	GreenHold        time.Duration
	YellowHold       time.Duration
	WarmUp           time.Duration
	CountdownSeconds int
	TickInterval     time.Duration
	BuzzerPulse      time.Duration
}

// DefaultTiming returns the timings of the reference intersection.
func DefaultTiming() Timing {
	return Timing{
		RedHold:          10 * time.Second,
		GreenHold:        10 * time.Second,
		YellowHold:       3 * time.Second,
		WarmUp:           5 * time.Second,
		CountdownSeconds: 5,
		TickInterval:     time.Second,
		BuzzerPulse:      200 * time.Millisecond,
	}
}

// CountdownState is the state of the crossing countdown. It is only active
// while the phase is a crossing phase.
type CountdownState struct {
	Active           bool
	SecondsRemaining int
	LastChannel      Channel // channel of the most recent pulse; zero before the first
	Side             Side
}

// State is a point-in-time copy of the controller state.
type State struct {
	Phase     Phase
	Pending   Side
	Countdown CountdownState
	CycleID   string // crossing cycle ID, empty outside a crossing cycle
	Crossing  Side   // side being serviced by the current crossing cycle
	Since     time.Time
}

// InvariantError reports a state the controller can never legitimately
// reach. It is raised with panic.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Msg
}

func invariantf(format string, args ...any) *InvariantError {
	return &InvariantError{Msg: fmt.Sprintf(format, args...)}
}
