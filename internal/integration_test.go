package internal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/pelican/internal/gpio"
	"github.com/sweeney/pelican/internal/logic"
	"github.com/sweeney/pelican/internal/metrics"
	"github.com/sweeney/pelican/internal/mqtt"
	"github.com/sweeney/pelican/internal/output"
	"github.com/sweeney/pelican/internal/sched"
	"github.com/sweeney/pelican/internal/status"
	"github.com/sweeney/pelican/internal/web"
)

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// rig wires the crossing core to fake hardware and a fake broker the same
// way the daemon does, on a virtual-time loop.
type rig struct {
	loop    *sched.Loop
	arbiter *logic.Arbiter
	ctrl    *logic.Controller
	out     *gpio.FakeOutput
	in      *gpio.FakeInput
	pub     *mqtt.FakePublisher
	emitter *mqtt.Emitter
	tracker *status.Tracker
	metrics *metrics.Manager
}

func newRig(t *testing.T) *rig {
	t.Helper()
	loop := sched.New(epoch)
	r := &rig{
		loop:    loop,
		arbiter: logic.NewArbiter(),
		out:     gpio.NewFakeOutput(),
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(epoch, status.Config{}),
		metrics: metrics.NewManager(metrics.Config{Enabled: true}),
	}
	r.emitter = mqtt.NewEmitter(r.pub, 1024, loop.Now)
	r.tracker.SetPendingSource(r.arbiter.Pending)
	console := output.NewConsole(log.New(io.Discard, "", 0))

	outs := output.Tee{r.out, r.tracker, console, r.metrics, r.emitter}
	r.ctrl = logic.NewController(loop, outs, r.arbiter, logic.DefaultTiming(),
		logic.WithObserver(r.tracker),
		logic.WithObserver(r.metrics),
		logic.WithObserver(r.emitter),
	)
	r.in = gpio.NewFakeInput(func(s logic.Side) {
		outcome := r.arbiter.OnButtonEdge(s)
		r.tracker.RecordRequest(s, outcome)
		r.metrics.RecordRequest(s, outcome)
		r.emitter.RecordRequest(s, outcome)
	})
	r.ctrl.Start()
	return r
}

// at advances the loop to offset from epoch.
func (r *rig) at(offset time.Duration) {
	r.loop.Advance(offset - r.loop.Now().Sub(epoch))
}

// flush publishes everything queued on the emitter.
func (r *rig) flush() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.emitter.Run(ctx)
}

func (r *rig) payloads(t *testing.T) []mqtt.EventPayload {
	t.Helper()
	var out []mqtt.EventPayload
	for _, raw := range r.pub.Payloads() {
		var p mqtt.Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			t.Fatalf("invalid payload %s: %v", raw, err)
		}
		out = append(out, p.Pelican)
	}
	return out
}

func phasesOf(ps []mqtt.EventPayload) []string {
	var out []string
	for _, p := range ps {
		if p.Event == "PHASE" {
			out = append(out, p.Phase)
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestIntegrationRotationWithoutRequests runs the idle rotation end to end.
func TestIntegrationRotationWithoutRequests(t *testing.T) {
	r := newRig(t)
	r.at(33 * time.Second)
	r.flush()

	want := []string{"RED", "GREEN", "YELLOW", "RED", "GREEN"}
	got := phasesOf(r.payloads(t))
	if !equalStrings(got, want) {
		t.Errorf("phase events: got %v, want %v", got, want)
	}
	if r.out.Red || !r.out.Green {
		t.Errorf("LEDs at 33s: red=%v green=%v, want green only", r.out.Red, r.out.Green)
	}
	if n := len(r.out.Pulses()); n != 0 {
		t.Errorf("no buzzer expected during rotation, got %d pulses", n)
	}
}

// TestIntegrationCrossingFullFlow presses A and follows it through the
// signals, buzzers, MQTT payloads, tracker and HTTP status.
func TestIntegrationCrossingFullFlow(t *testing.T) {
	r := newRig(t)
	r.at(time.Second)
	r.in.Press(logic.SideA)

	r.at(18 * time.Second)
	if r.ctrl.Phase() != logic.PhaseCrossingA {
		t.Fatalf("phase at 18s: got %s, want CROSSING_A", r.ctrl.Phase())
	}
	if !r.out.Red || r.out.Green {
		t.Error("vehicle red should show during a crossing")
	}

	r.at(34 * time.Second)
	r.flush()

	ps := r.payloads(t)
	wantPhases := []string{"RED", "YELLOW", "CROSSING_A", "RED", "GREEN"}
	if got := phasesOf(ps); !equalStrings(got, wantPhases) {
		t.Errorf("phase events: got %v, want %v", got, wantPhases)
	}

	var kinds []string
	var countdown []int
	for _, p := range ps {
		kinds = append(kinds, p.Event)
		if p.Event == "COUNTDOWN" {
			countdown = append(countdown, p.Countdown)
			if p.Phase != "CROSSING_A" || p.CycleID == "" {
				t.Errorf("countdown payload: %+v", p)
			}
		}
		if p.Event == "REQUEST" && (p.Side != "A" || p.Outcome != "accepted") {
			t.Errorf("request payload: %+v", p)
		}
	}
	wantKinds := "PHASE REQUEST CYCLE_START PHASE PHASE COUNTDOWN COUNTDOWN COUNTDOWN COUNTDOWN COUNTDOWN CYCLE_END PHASE PHASE"
	if got := strings.Join(kinds, " "); got != wantKinds {
		t.Errorf("event order:\n got  %s\n want %s", got, wantKinds)
	}
	wantCountdown := []int{5, 4, 3, 2, 1}
	if len(countdown) != len(wantCountdown) {
		t.Fatalf("countdown values: got %v, want %v", countdown, wantCountdown)
	}
	for i := range wantCountdown {
		if countdown[i] != wantCountdown[i] {
			t.Errorf("countdown %d: got %d, want %d", i, countdown[i], wantCountdown[i])
		}
	}

	wantPulses := []logic.Channel{logic.Channel1, logic.Channel2, logic.Channel1, logic.Channel2, logic.Channel1}
	pulses := r.out.Pulses()
	if len(pulses) != len(wantPulses) {
		t.Fatalf("pulses: got %v, want %v", pulses, wantPulses)
	}
	for i := range wantPulses {
		if pulses[i] != wantPulses[i] {
			t.Errorf("pulse %d: got %s, want %s", i, pulses[i], wantPulses[i])
		}
	}
	for ch, on := range r.out.Buzzer {
		if on {
			t.Errorf("buzzer %s left on", ch)
		}
	}

	// The HTTP status reflects the finished cycle.
	srv := httptest.NewServer(web.New("", r.tracker, web.Options{}).Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()
	var st status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Status.Phase != "GREEN" || st.Status.Pending != "NONE" {
		t.Errorf("status: phase=%s pending=%s", st.Status.Phase, st.Status.Pending)
	}
	if st.Status.Counts.CrossingsA != 1 || st.Status.Counts.Pulses != 5 || st.Status.Counts.Accepted != 1 {
		t.Errorf("status counts: %+v", st.Status.Counts)
	}
}

// TestIntegrationBOverriddenByA checks that A wins when both sides press
// before the next decision point.
func TestIntegrationBOverriddenByA(t *testing.T) {
	r := newRig(t)
	r.at(2 * time.Second)
	r.in.Press(logic.SideB)
	r.at(4 * time.Second)
	r.in.Press(logic.SideA)
	r.at(5 * time.Second)
	r.in.Press(logic.SideB)

	r.at(14 * time.Second)
	if r.ctrl.Phase() != logic.PhaseCrossingA {
		t.Fatalf("phase: got %s, want CROSSING_A", r.ctrl.Phase())
	}

	c := r.tracker.Snapshot().Counts
	if c.Accepted != 1 || c.Overridden != 1 || c.Ignored != 1 {
		t.Errorf("request counts: %+v", c)
	}
}

// TestIntegrationMidCycleRequestDropped presses B during the crossing and
// expects it to be discarded when the cycle ends.
func TestIntegrationMidCycleRequestDropped(t *testing.T) {
	r := newRig(t)
	r.at(time.Second)
	r.in.Press(logic.SideA)
	r.at(20 * time.Second)
	r.in.Press(logic.SideB)
	if p := r.tracker.Snapshot().Pending; p != logic.SideB {
		t.Fatalf("pending mid-cycle: got %s, want B", p)
	}

	r.at(60 * time.Second)
	r.flush()

	snap := r.tracker.Snapshot()
	if snap.Pending != logic.SideNone {
		t.Errorf("pending after cycle: got %s, want NONE", snap.Pending)
	}
	if snap.Counts.Dropped != 1 || snap.Counts.CrossingsB != 0 {
		t.Errorf("counts: %+v", snap.Counts)
	}
	for _, phase := range phasesOf(r.payloads(t)) {
		if phase == "CROSSING_B" {
			t.Fatal("dropped request must not start a crossing")
		}
	}

	var dropped int
	for _, p := range r.payloads(t) {
		if p.Event == "REQUEST_DROPPED" {
			dropped++
			if p.Side != "B" {
				t.Errorf("dropped side: got %s, want B", p.Side)
			}
		}
	}
	if dropped != 1 {
		t.Errorf("expected 1 REQUEST_DROPPED event, got %d", dropped)
	}
}

// TestIntegrationPublishFailureDoesNotStall verifies that a failing broker
// never holds up the signals.
func TestIntegrationPublishFailureDoesNotStall(t *testing.T) {
	r := newRig(t)
	r.pub.FailPublish(errors.New("broker down"), nil)

	r.at(time.Second)
	r.in.Press(logic.SideB)
	r.at(34 * time.Second)
	r.flush()

	want := []logic.Phase{logic.PhaseRed, logic.PhaseYellow, logic.PhaseCrossingB, logic.PhaseRed, logic.PhaseGreen}
	if len(r.out.Signals) != len(want) {
		t.Fatalf("signals: got %v, want %v", r.out.Signals, want)
	}
	for i := range want {
		if r.out.Signals[i] != want[i] {
			t.Errorf("signal %d: got %s, want %s", i, r.out.Signals[i], want[i])
		}
	}
	if n := len(r.pub.Events()); n != 0 {
		t.Errorf("expected no recorded events while failing, got %d", n)
	}
}

// TestIntegrationBackToBackCrossings services a second request pressed
// after the first cycle returns to RED.
func TestIntegrationBackToBackCrossings(t *testing.T) {
	r := newRig(t)
	r.at(time.Second)
	r.in.Press(logic.SideA)
	r.at(25 * time.Second) // RED after the crossing
	r.in.Press(logic.SideB)
	r.at(70 * time.Second)
	r.flush()

	snap := r.tracker.Snapshot()
	if snap.Counts.CrossingsA != 1 || snap.Counts.CrossingsB != 1 {
		t.Errorf("crossings: %+v", snap.Counts)
	}

	var ids []string
	for _, p := range r.payloads(t) {
		if p.Event == "CYCLE_START" {
			ids = append(ids, p.CycleID)
		}
	}
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Errorf("expected two distinct cycle IDs, got %v", ids)
	}
}
