package mqtt

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/pelican/internal/logic"
)

// outgoing is one queued message; exactly one field is set.
type outgoing struct {
	event  *Event
	system *SystemEvent
}

// Emitter turns controller output and observer calls into events and
// publishes them from its own goroutine. Enqueueing never blocks: when the
// queue is full the event is dropped and counted.
type Emitter struct {
	pub   Publisher
	queue chan outgoing
	now   func() time.Time
	lost  atomic.Int64

	mu      sync.Mutex
	phase   logic.Phase
	cycleID string
}

// NewEmitter creates an Emitter with room for size queued events.
// now stamps each event; nil means time.Now.
func NewEmitter(pub Publisher, size int, now func() time.Time) *Emitter {
	if size < 1 {
		size = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Emitter{
		pub:   pub,
		queue: make(chan outgoing, size),
		now:   now,
	}
}

func (e *Emitter) enqueue(ev Event) {
	ev.Timestamp = e.now()
	e.mu.Lock()
	ev.Phase = e.phase
	if ev.CycleID == "" {
		ev.CycleID = e.cycleID
	}
	e.mu.Unlock()

	e.push(outgoing{event: &ev}, string(ev.Type))
}

func (e *Emitter) push(m outgoing, name string) {
	select {
	case e.queue <- m:
	default:
		if e.lost.Add(1) == 1 {
			log.Printf("mqtt: event queue full, dropping %s", name)
		}
	}
}

// PublishSystem queues a system event behind any pending controller events.
func (e *Emitter) PublishSystem(ev SystemEvent) {
	e.push(outgoing{system: &ev}, ev.Event)
}

// SetSignal emits a PHASE event.
func (e *Emitter) SetSignal(phase logic.Phase) {
	e.mu.Lock()
	e.phase = phase
	e.mu.Unlock()
	e.enqueue(Event{Type: EventPhase})
}

// SetBuzzer is not published; pulses are too frequent to be useful on the bus.
func (e *Emitter) SetBuzzer(logic.Channel, bool) {}

// RenderStatus emits a COUNTDOWN event for each countdown tick.
func (e *Emitter) RenderStatus(text string, countdown int) {
	if countdown > 0 {
		e.enqueue(Event{Type: EventCountdown, Countdown: countdown})
	}
}

// CycleStarted emits CYCLE_START and tags later events with id.
func (e *Emitter) CycleStarted(id string, side logic.Side) {
	e.mu.Lock()
	e.cycleID = id
	e.mu.Unlock()
	e.enqueue(Event{Type: EventCycleStart, Side: side})
}

// CycleFinished emits CYCLE_END.
func (e *Emitter) CycleFinished(id string, side logic.Side) {
	e.enqueue(Event{Type: EventCycleEnd, Side: side, CycleID: id})
	e.mu.Lock()
	e.cycleID = ""
	e.mu.Unlock()
}

// RequestDropped emits REQUEST_DROPPED.
func (e *Emitter) RequestDropped(side logic.Side) {
	e.enqueue(Event{Type: EventRequestDropped, Side: side})
}

// RecordRequest emits a REQUEST event for a button edge.
func (e *Emitter) RecordRequest(side logic.Side, outcome logic.Outcome) {
	e.enqueue(Event{Type: EventRequest, Side: side, Outcome: outcome})
}

// Lost returns the number of events dropped because the queue was full.
func (e *Emitter) Lost() int64 {
	return e.lost.Load()
}

// Run publishes queued events until ctx is cancelled, then flushes what
// is already queued. Publish errors are logged and never stop the loop.
func (e *Emitter) Run(ctx context.Context) error {
	for {
		select {
		case m := <-e.queue:
			e.publish(m)
		case <-ctx.Done():
			for {
				select {
				case m := <-e.queue:
					e.publish(m)
				default:
					return nil
				}
			}
		}
	}
}

func (e *Emitter) publish(m outgoing) {
	if m.system != nil {
		if err := e.pub.PublishSystem(*m.system); err != nil {
			log.Printf("mqtt: publish system %s failed: %v", m.system.Event, err)
		}
		return
	}
	if err := e.pub.Publish(*m.event); err != nil {
		log.Printf("mqtt: publish %s failed: %v", m.event.Type, err)
	}
}
