package logic

import (
	"fmt"
	"testing"
	"time"

	"github.com/sweeney/pelican/internal/sched"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type callKind string

const (
	callSignal callKind = "signal"
	callBuzzer callKind = "buzzer"
	callStatus callKind = "status"
)

type call struct {
	At        time.Duration
	Kind      callKind
	Phase     Phase
	Channel   Channel
	On        bool
	Text      string
	Countdown int
}

// recorder is an Output that timestamps every call with the loop's time.
type recorder struct {
	loop  *sched.Loop
	calls []call
}

func (r *recorder) at() time.Duration { return r.loop.Now().Sub(epoch) }

func (r *recorder) SetSignal(p Phase) {
	r.calls = append(r.calls, call{At: r.at(), Kind: callSignal, Phase: p})
}

func (r *recorder) SetBuzzer(ch Channel, on bool) {
	r.calls = append(r.calls, call{At: r.at(), Kind: callBuzzer, Channel: ch, On: on})
}

func (r *recorder) RenderStatus(text string, countdown int) {
	r.calls = append(r.calls, call{At: r.at(), Kind: callStatus, Text: text, Countdown: countdown})
}

func (r *recorder) of(kind callKind) []call {
	var out []call
	for _, c := range r.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// pulses returns the buzzer-on calls.
func (r *recorder) pulses() []call {
	var out []call
	for _, c := range r.of(callBuzzer) {
		if c.On {
			out = append(out, c)
		}
	}
	return out
}

type observed struct {
	started  []Side
	finished []Side
	dropped  []Side
	ids      []string
}

func (o *observed) CycleStarted(id string, side Side) {
	o.started = append(o.started, side)
	o.ids = append(o.ids, id)
}

func (o *observed) CycleFinished(id string, side Side) { o.finished = append(o.finished, side) }
func (o *observed) RequestDropped(side Side)           { o.dropped = append(o.dropped, side) }

type harness struct {
	loop *sched.Loop
	out  *recorder
	arb  *Arbiter
	obs  *observed
	ctrl *Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	loop := sched.New(epoch)
	h := &harness{
		loop: loop,
		out:  &recorder{loop: loop},
		arb:  NewArbiter(),
		obs:  &observed{},
	}
	n := 0
	h.ctrl = NewController(loop, h.out, h.arb, DefaultTiming(),
		WithObserver(h.obs),
		WithCycleIDs(func() string {
			n++
			return fmt.Sprintf("cycle-%d", n)
		}),
	)
	h.ctrl.Start()
	return h
}

// advanceTo moves the loop to offset from epoch.
func (h *harness) advanceTo(offset time.Duration) {
	h.loop.Advance(offset - h.loop.Now().Sub(epoch))
}

func (h *harness) signals() []Phase {
	var out []Phase
	for _, c := range h.out.of(callSignal) {
		out = append(out, c.Phase)
	}
	return out
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
