package logic

import (
	"time"

	"github.com/google/uuid"
)

// stage tracks where the controller is inside a request-triggered crossing
// cycle. Regular rotation is stageRotation.
type stage int

const (
	stageRotation  stage = iota
	stageClearance       // YELLOW shown ahead of a crossing
	stageWarmUp          // crossing signal shown, countdown not yet running
	stageCountdown       // countdown running or just completed
)

func (s stage) String() string {
	switch s {
	case stageRotation:
		return "rotation"
	case stageClearance:
		return "clearance"
	case stageWarmUp:
		return "warm-up"
	case stageCountdown:
		return "countdown"
	}
	return "unknown"
}

// cycle is the controller state that drives transitions.
type cycle struct {
	phase    Phase
	stage    stage
	crossing Side
}

// transition is the result of one evaluation.
type transition struct {
	next           cycle
	hold           time.Duration // delay until the next evaluation
	beginCycle     bool
	startCountdown bool
	endCycle       bool
}

// acceptsRequests reports whether a pending request may be serviced from c.
func (c cycle) acceptsRequests() bool {
	return c.stage == stageRotation && (c.phase == PhaseRed || c.phase == PhaseGreen)
}

// nextTransition is the phase table. req is the request taken from the
// arbiter, SideNone when there was none or cur does not accept requests.
func nextTransition(cur cycle, req Side, t Timing) transition {
	switch cur.stage {
	case stageRotation:
		if req != SideNone {
			if !cur.acceptsRequests() {
				panic(invariantf("request %s serviced from %s", req, cur.phase))
			}
			return transition{
				next:       cycle{phase: PhaseYellow, stage: stageClearance, crossing: req},
				hold:       t.YellowHold,
				beginCycle: true,
			}
		}
		switch cur.phase {
		case PhaseRed:
			return transition{next: cycle{phase: PhaseGreen}, hold: t.GreenHold}
		case PhaseGreen:
			return transition{next: cycle{phase: PhaseYellow}, hold: t.YellowHold}
		case PhaseYellow:
			return transition{next: cycle{phase: PhaseRed}, hold: t.RedHold}
		case PhaseCrossingA, PhaseCrossingB:
			panic(invariantf("%s outside a crossing cycle", cur.phase))
		}
	case stageClearance:
		return transition{
			next: cycle{phase: crossingPhase(cur.crossing), stage: stageWarmUp, crossing: cur.crossing},
			hold: t.WarmUp,
		}
	case stageWarmUp:
		return transition{
			next:           cycle{phase: cur.phase, stage: stageCountdown, crossing: cur.crossing},
			startCountdown: true,
		}
	case stageCountdown:
		return transition{
			next:     cycle{phase: PhaseRed},
			hold:     t.RedHold,
			endCycle: true,
		}
	}
	panic(invariantf("unknown phase %d in stage %s", int(cur.phase), cur.stage))
}

// Observer receives crossing cycle notifications. Calls are made from
// scheduler callbacks and must not block.
type Observer interface {
	CycleStarted(id string, side Side)
	CycleFinished(id string, side Side)
	RequestDropped(side Side)
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver registers o for cycle notifications.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, o)
	}
}

// WithCycleIDs overrides the crossing cycle ID generator.
func WithCycleIDs(gen func() string) Option {
	return func(c *Controller) {
		c.newID = gen
	}
}

// Controller is the phase state machine. It is not safe for concurrent use:
// Start, Evaluate and Snapshot run on the scheduler's goroutine.
type Controller struct {
	sched     Scheduler
	out       Output
	arbiter   *Arbiter
	timing    Timing
	countdown *Countdown
	observers []Observer
	newID     func() string

	cur     cycle
	cycleID string
	since   time.Time
	started bool
}

// NewController wires a controller to its scheduler, output and arbiter.
func NewController(s Scheduler, out Output, arbiter *Arbiter, timing Timing, opts ...Option) *Controller {
	c := &Controller{
		sched:   s,
		out:     out,
		arbiter: arbiter,
		timing:  timing,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.countdown = NewCountdown(s, out, timing, c.resume)
	return c
}

// Start shows RED and arms the first evaluation.
func (c *Controller) Start() {
	if c.started {
		panic(invariantf("controller started twice"))
	}
	c.started = true
	c.cur = cycle{phase: PhaseRed}
	c.since = c.sched.Now()
	c.out.SetSignal(PhaseRed)
	c.out.RenderStatus(PhaseRed.Label(), 0)
	c.sched.Arm(TimerPhase, c.timing.RedHold, c.Evaluate)
}

// Evaluate advances the state machine. It is a no-op while the countdown
// is running.
func (c *Controller) Evaluate() {
	c.checkInvariants()
	if c.countdown.Active() {
		return
	}

	req := SideNone
	if c.cur.acceptsRequests() {
		req = c.arbiter.Take()
	}
	c.commit(nextTransition(c.cur, req, c.timing))
}

func (c *Controller) commit(tr transition) {
	prev := c.cur
	c.cur = tr.next

	if tr.beginCycle {
		c.cycleID = c.newID()
		for _, o := range c.observers {
			o.CycleStarted(c.cycleID, tr.next.crossing)
		}
	}
	if tr.endCycle {
		if dropped := c.arbiter.Take(); dropped != SideNone {
			for _, o := range c.observers {
				o.RequestDropped(dropped)
			}
		}
		for _, o := range c.observers {
			o.CycleFinished(c.cycleID, prev.crossing)
		}
		c.cycleID = ""
	}

	if tr.next.phase != prev.phase {
		c.since = c.sched.Now()
		c.out.SetSignal(tr.next.phase)
		c.out.RenderStatus(tr.next.phase.Label(), 0)
	}

	if tr.startCountdown {
		c.countdown.Start(tr.next.crossing, c.timing.CountdownSeconds)
		return
	}
	c.sched.Arm(TimerPhase, tr.hold, c.Evaluate)
}

// resume is the countdown completion callback.
func (c *Controller) resume() {
	c.sched.Arm(TimerPhase, 0, c.Evaluate)
}

func (c *Controller) checkInvariants() {
	if !c.started {
		panic(invariantf("evaluated before start"))
	}
	cd := c.countdown.State()
	if cd.Active && !c.cur.phase.IsCrossing() {
		panic(invariantf("countdown active during %s", c.cur.phase))
	}
	if cd.Active && c.cur.stage != stageCountdown {
		panic(invariantf("countdown active in stage %s", c.cur.stage))
	}
	switch c.cur.stage {
	case stageClearance:
		if c.cur.phase != PhaseYellow {
			panic(invariantf("clearance stage during %s", c.cur.phase))
		}
	case stageWarmUp, stageCountdown:
		if c.cur.phase != crossingPhase(c.cur.crossing) {
			panic(invariantf("%s stage for side %s during %s", c.cur.stage, c.cur.crossing, c.cur.phase))
		}
	}
}

// Phase returns the active phase.
func (c *Controller) Phase() Phase {
	return c.cur.phase
}

// Snapshot returns a copy of the controller state.
func (c *Controller) Snapshot() State {
	return State{
		Phase:     c.cur.phase,
		Pending:   c.arbiter.Pending(),
		Countdown: c.countdown.State(),
		CycleID:   c.cycleID,
		Crossing:  c.cur.crossing,
		Since:     c.since,
	}
}
