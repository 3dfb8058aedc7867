package logic

// Countdown runs the audible crossing countdown: one buzzer pulse and one
// status update per tick, alternating buzzer channels on every pulse.
type Countdown struct {
	sched  Scheduler
	out    Output
	timing Timing
	onDone func()

	state   CountdownState
	buzzing Channel // channel currently asserted, zero when silent
}

// NewCountdown creates a Countdown. onDone runs from the tick that finds no
// seconds remaining, after the state has been cleared.
func NewCountdown(s Scheduler, out Output, timing Timing, onDone func()) *Countdown {
	return &Countdown{
		sched:  s,
		out:    out,
		timing: timing,
		onDone: onDone,
	}
}

// Start arms the periodic countdown tick for side. The first tick fires one
// TickInterval after Start.
func (c *Countdown) Start(side Side, seconds int) {
	if c.state.Active {
		panic(invariantf("countdown started while already active for side %s", c.state.Side))
	}
	c.state.Active = true
	c.state.SecondsRemaining = seconds
	c.state.Side = side
	c.sched.Every(TimerCountdown, c.timing.TickInterval, c.tick)
}

// Active reports whether a countdown is running.
func (c *Countdown) Active() bool {
	return c.state.Active
}

// State returns a copy of the countdown state.
func (c *Countdown) State() CountdownState {
	return c.state
}

func (c *Countdown) tick() {
	if !c.state.Active {
		panic(invariantf("countdown tick with no active countdown"))
	}
	if c.state.SecondsRemaining > 0 {
		c.pulse()
		c.out.RenderStatus(crossingPhase(c.state.Side).Label(), c.state.SecondsRemaining)
		c.state.SecondsRemaining--
		return
	}

	c.sched.Cancel(TimerCountdown)
	c.state.Active = false
	c.state.Side = SideNone
	if c.onDone != nil {
		c.onDone()
	}
}

// pulse asserts the next channel and arms its single-shot release.
func (c *Countdown) pulse() {
	if c.buzzing != 0 {
		c.sched.Cancel(TimerBuzzer)
		c.out.SetBuzzer(c.buzzing, false)
		c.buzzing = 0
	}

	ch := c.state.LastChannel.other()
	c.state.LastChannel = ch
	c.buzzing = ch
	c.out.SetBuzzer(ch, true)
	c.sched.Arm(TimerBuzzer, c.timing.BuzzerPulse, func() {
		c.out.SetBuzzer(ch, false)
		c.buzzing = 0
	})
}
