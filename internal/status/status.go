// Package status provides a thread-safe status tracker for the crossing daemon.
// It is fed by the controller's output and observer calls and read by the
// HTTP handlers and MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/pelican/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	RedHoldMs        int64
	GreenHoldMs      int64
	YellowHoldMs     int64
	WarmUpMs         int64
	CountdownSeconds int
	BuzzerPulseMs    int64
	HeartbeatMs      int64
	Broker           string
	HTTPAddr         string
	Simulate         bool
}

// Counts tracks activity since startup.
type Counts struct {
	Transitions int
	CrossingsA  int
	CrossingsB  int
	Pulses      int
	Accepted    int
	Overridden  int
	Duplicate   int
	Ignored     int
	Dropped     int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Phase         logic.Phase
	Text          string
	Countdown     int
	Buzzing       logic.Channel // zero when silent
	Pending       logic.Side
	CycleID       string
	Crossing      logic.Side
	PhaseSince    time.Time
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	pending func() logic.Side
	now     func() time.Time
	subs    map[chan struct{}]struct{}
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now:  time.Now,
		subs: make(map[chan struct{}]struct{}),
	}
}

// SetPendingSource sets the function used to read the pending request at
// snapshot time. It must be safe for concurrent use.
func (t *Tracker) SetPendingSource(fn func() logic.Side) {
	t.mu.Lock()
	t.pending = fn
	t.mu.Unlock()
}

// update applies fn under the write lock and wakes subscribers.
func (t *Tracker) update(fn func(s *Snapshot)) {
	t.mu.Lock()
	fn(&t.snap)
	for ch := range t.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	t.mu.Unlock()
}

// SetSignal records a phase change.
func (t *Tracker) SetSignal(phase logic.Phase) {
	now := t.now()
	t.update(func(s *Snapshot) {
		s.Phase = phase
		s.PhaseSince = now
		s.Countdown = 0
		s.Counts.Transitions++
	})
}

// SetBuzzer records the active buzzer channel.
func (t *Tracker) SetBuzzer(ch logic.Channel, on bool) {
	t.update(func(s *Snapshot) {
		if on {
			s.Buzzing = ch
			s.Counts.Pulses++
		} else if s.Buzzing == ch {
			s.Buzzing = 0
		}
	})
}

// RenderStatus records the display text and countdown.
func (t *Tracker) RenderStatus(text string, countdown int) {
	t.update(func(s *Snapshot) {
		s.Text = text
		s.Countdown = countdown
	})
}

// CycleStarted records the crossing cycle being serviced.
func (t *Tracker) CycleStarted(id string, side logic.Side) {
	t.update(func(s *Snapshot) {
		s.CycleID = id
		s.Crossing = side
	})
}

// CycleFinished clears the crossing cycle and counts it.
func (t *Tracker) CycleFinished(id string, side logic.Side) {
	t.update(func(s *Snapshot) {
		s.CycleID = ""
		s.Crossing = logic.SideNone
		switch side {
		case logic.SideA:
			s.Counts.CrossingsA++
		case logic.SideB:
			s.Counts.CrossingsB++
		}
	})
}

// RequestDropped counts a request discarded at the end of a cycle.
func (t *Tracker) RequestDropped(side logic.Side) {
	t.update(func(s *Snapshot) {
		s.Counts.Dropped++
	})
}

// RecordRequest counts a button edge by its arbiter outcome.
func (t *Tracker) RecordRequest(side logic.Side, outcome logic.Outcome) {
	t.update(func(s *Snapshot) {
		switch outcome {
		case logic.OutcomeAccepted:
			s.Counts.Accepted++
		case logic.OutcomeOverridden:
			s.Counts.Overridden++
		case logic.OutcomeDuplicate:
			s.Counts.Duplicate++
		case logic.OutcomeIgnored:
			s.Counts.Ignored++
		}
	})
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.update(func(s *Snapshot) {
		s.MQTTConnected = connected
	})
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.update(func(s *Snapshot) {
		s.Network = info
	})
}

// Subscribe returns a channel that receives a value after every state
// change. Notifications coalesce; a slow reader sees at most one pending
// wake-up. Call cancel to unsubscribe.
func (t *Tracker) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()
	return ch, func() {
		t.mu.Lock()
		delete(t.subs, ch)
		t.mu.Unlock()
	}
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	pending := t.pending
	t.mu.RUnlock()
	if pending != nil {
		s.Pending = pending()
	}
	s.Now = t.now()
	return s
}
