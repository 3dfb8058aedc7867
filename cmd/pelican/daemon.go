package main

import (
	"log"
	"time"

	"github.com/sweeney/pelican/internal/config"
	"github.com/sweeney/pelican/internal/logic"
	"github.com/sweeney/pelican/internal/metrics"
	"github.com/sweeney/pelican/internal/mqtt"
	"github.com/sweeney/pelican/internal/output"
	"github.com/sweeney/pelican/internal/sched"
	"github.com/sweeney/pelican/internal/status"
)

// timerHeartbeat is the loop timer that publishes HEARTBEAT events.
const timerHeartbeat sched.TimerID = "heartbeat"

// daemon wires the crossing core to its adapters. Everything reachable from
// a loop callback runs on the loop goroutine; press may be called from any
// goroutine.
type daemon struct {
	cfg     *config.Config
	loop    *sched.Loop
	arbiter *logic.Arbiter
	ctrl    *logic.Controller
	tracker *status.Tracker
	metrics *metrics.Manager

	// emitter and mqttStatus are nil when MQTT is disabled.
	emitter    *mqtt.Emitter
	mqttStatus mqtt.ConnectionStatus
}

// deps are the adapters chosen by run: real hardware and broker, or fakes.
type deps struct {
	out        logic.Output
	tracker    *status.Tracker
	emitter    *mqtt.Emitter
	mqttStatus mqtt.ConnectionStatus
	console    *output.Console
	metrics    *metrics.Manager
}

func newDaemon(cfg *config.Config, loop *sched.Loop, d deps) *daemon {
	if d.metrics == nil {
		d.metrics = metrics.NoOpManager()
	}
	if d.console == nil {
		d.console = output.NewConsole(nil)
	}
	if d.tracker == nil {
		d.tracker = status.NewTracker(loop.Now(), cfg.StatusConfig())
	}

	dm := &daemon{
		cfg:        cfg,
		loop:       loop,
		arbiter:    logic.NewArbiter(),
		tracker:    d.tracker,
		metrics:    d.metrics,
		emitter:    d.emitter,
		mqttStatus: d.mqttStatus,
	}
	dm.tracker.SetPendingSource(dm.arbiter.Pending)

	outs := output.Tee{d.out, dm.tracker, d.console, dm.metrics}
	opts := []logic.Option{
		logic.WithObserver(dm.tracker),
		logic.WithObserver(d.console),
		logic.WithObserver(dm.metrics),
	}
	if dm.emitter != nil {
		outs = append(outs, dm.emitter)
		opts = append(opts, logic.WithObserver(dm.emitter))
	}
	dm.ctrl = logic.NewController(loop, outs, dm.arbiter, cfg.LogicTiming(), opts...)
	return dm
}

// start shows RED and arms the controller and heartbeat timers. It must be
// called before the loop runs.
func (d *daemon) start() {
	d.ctrl.Start()
	if d.cfg.Heartbeat > 0 {
		d.loop.Every(timerHeartbeat, d.cfg.Heartbeat, d.heartbeat)
	}
}

// press handles one debounced button edge.
func (d *daemon) press(side logic.Side) logic.Outcome {
	outcome := d.arbiter.OnButtonEdge(side)
	log.Printf("button: side %s %s", side, outcome)
	d.tracker.RecordRequest(side, outcome)
	d.metrics.RecordRequest(side, outcome)
	if d.emitter != nil {
		d.emitter.RecordRequest(side, outcome)
	}
	return outcome
}

// refresh pulls connection and network state into the tracker.
func (d *daemon) refresh() {
	if d.mqttStatus != nil {
		connected := d.mqttStatus.IsConnected()
		d.tracker.SetMQTTConnected(connected)
		d.metrics.SetMQTTConnected(connected)
	}
	if net := readNetworkInfo(); net != nil {
		d.tracker.SetNetwork(net)
	}
}

// systemEvent builds a system event carrying the full status snapshot.
func (d *daemon) systemEvent(event, reason string) mqtt.SystemEvent {
	d.refresh()
	snap := d.tracker.Snapshot()
	return mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
}

func (d *daemon) heartbeat() {
	snap := d.tracker.Snapshot()
	log.Printf("heartbeat: uptime=%v phase=%s transitions=%d crossings=%d/%d",
		snap.Uptime().Truncate(time.Second), snap.Phase, snap.Counts.Transitions,
		snap.Counts.CrossingsA, snap.Counts.CrossingsB)
	if d.emitter != nil {
		d.emitter.PublishSystem(d.systemEvent("HEARTBEAT", ""))
	}
}
