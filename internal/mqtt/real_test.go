package mqtt

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/sweeney/pelican/internal/logic"
)

// newOfflinePublisher returns a RealPublisher without a paho client whose
// writes go to write.
func newOfflinePublisher(write func(bufferedMsg) error) *RealPublisher {
	p := &RealPublisher{topics: TopicsFor(""), buf: newRingBuffer(10)}
	p.write = write
	return p
}

func phaseOf(t *testing.T, m bufferedMsg) string {
	t.Helper()
	var p Payload
	if err := json.Unmarshal(m.payload, &p); err != nil {
		t.Fatalf("invalid payload %s: %v", m.payload, err)
	}
	return p.Pelican.Phase
}

func TestRealPublisherBuffersWhileDisconnected(t *testing.T) {
	var sent []bufferedMsg
	p := newOfflinePublisher(func(m bufferedMsg) error {
		sent = append(sent, m)
		return nil
	})

	if err := p.Publish(Event{Timestamp: ts, Type: EventPhase, Phase: logic.PhaseRed}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(sent) != 0 {
		t.Fatal("nothing should be written before connecting")
	}
	if p.buf.len() != 1 {
		t.Errorf("buffered: got %d, want 1", p.buf.len())
	}
}

func TestRealPublisherReplayKeepsOrder(t *testing.T) {
	var (
		p    *RealPublisher
		sent []bufferedMsg
	)
	p = newOfflinePublisher(func(m bufferedMsg) error {
		sent = append(sent, m)
		if len(sent) == 1 {
			// an event published while the backlog is still replaying
			p.Publish(Event{Timestamp: ts, Type: EventPhase, Phase: logic.PhaseGreen})
		}
		return nil
	})

	p.Publish(Event{Timestamp: ts, Type: EventPhase, Phase: logic.PhaseRed})
	p.Publish(Event{Timestamp: ts, Type: EventPhase, Phase: logic.PhaseYellow})

	p.onConnect(nil)

	want := []string{"RED", "YELLOW", "GREEN"}
	if len(sent) != len(want) {
		t.Fatalf("sent %d messages, want %d", len(sent), len(want))
	}
	for i, w := range want {
		if got := phaseOf(t, sent[i]); got != w {
			t.Errorf("message %d: got %s, want %s", i, got, w)
		}
	}
	if !p.IsConnected() {
		t.Error("publisher should be connected after replay")
	}
	if p.buf.len() != 0 {
		t.Errorf("buffer should be empty, has %d", p.buf.len())
	}

	p.Publish(Event{Timestamp: ts, Type: EventPhase, Phase: logic.PhaseYellow})
	if len(sent) != 4 {
		t.Errorf("publish after connect should write directly, sent %d", len(sent))
	}
}

func TestRealPublisherReconnect(t *testing.T) {
	var sent []bufferedMsg
	p := newOfflinePublisher(func(m bufferedMsg) error {
		sent = append(sent, m)
		return nil
	})
	var changes []bool
	p.notify = func(c bool) { changes = append(changes, c) }

	p.onConnect(nil)
	if len(sent) != 0 {
		t.Fatalf("first connect should not publish, sent %d", len(sent))
	}

	p.onConnectionLost(nil, errors.New("connection reset"))
	if p.IsConnected() {
		t.Fatal("publisher should be disconnected")
	}
	p.Publish(Event{Timestamp: ts, Type: EventPhase, Phase: logic.PhaseGreen})
	p.onConnect(nil)

	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want buffered event and RECONNECTED", len(sent))
	}
	if sent[0].topic != "traffic/pelican/events" || phaseOf(t, sent[0]) != "GREEN" {
		t.Errorf("first message: %s %s", sent[0].topic, sent[0].payload)
	}
	var sys SystemPayload
	if err := json.Unmarshal(sent[1].payload, &sys); err != nil {
		t.Fatalf("invalid system payload: %v", err)
	}
	if sent[1].topic != "traffic/pelican/system" || sys.System.Event != "RECONNECTED" || sent[1].qos != 1 {
		t.Errorf("second message: %s qos=%d %s", sent[1].topic, sent[1].qos, sent[1].payload)
	}

	wantChanges := []bool{true, false, true}
	if len(changes) != len(wantChanges) {
		t.Fatalf("connection changes: got %v, want %v", changes, wantChanges)
	}
	for i := range wantChanges {
		if changes[i] != wantChanges[i] {
			t.Errorf("change %d: got %v, want %v", i, changes[i], wantChanges[i])
		}
	}
}
