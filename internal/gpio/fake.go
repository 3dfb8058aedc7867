package gpio

import (
	"sync"

	"github.com/sweeney/pelican/internal/logic"
)

// FakeOutput is a test double that records every output call.
type FakeOutput struct {
	mu sync.Mutex

	// Signals contains every phase passed to SetSignal.
	Signals []logic.Phase

	// Buzzes contains every SetBuzzer call.
	Buzzes []BuzzerCall

	// Statuses contains every RenderStatus call.
	Statuses []StatusCall

	// Red and Green hold the current LED levels.
	Red, Green bool

	// Buzzer holds the current level of each channel.
	Buzzer map[logic.Channel]bool

	// Closed tracks if Close was called
	Closed bool
}

// BuzzerCall is one recorded SetBuzzer call.
type BuzzerCall struct {
	Channel logic.Channel
	On      bool
}

// StatusCall is one recorded RenderStatus call.
type StatusCall struct {
	Text      string
	Countdown int
}

// NewFakeOutput creates a FakeOutput with all outputs low.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{Buzzer: make(map[logic.Channel]bool)}
}

// SetSignal records the phase and updates the LED levels.
func (f *FakeOutput) SetSignal(phase logic.Phase) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Signals = append(f.Signals, phase)
	f.Red, f.Green = SignalLevels(phase)
}

// SetBuzzer records the call and updates the channel level.
func (f *FakeOutput) SetBuzzer(ch logic.Channel, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Buzzes = append(f.Buzzes, BuzzerCall{Channel: ch, On: on})
	f.Buzzer[ch] = on
}

// RenderStatus records the status update.
func (f *FakeOutput) RenderStatus(text string, countdown int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Statuses = append(f.Statuses, StatusCall{Text: text, Countdown: countdown})
}

// Close drives everything low and marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Red, f.Green = false, false
	for ch := range f.Buzzer {
		f.Buzzer[ch] = false
	}
	f.Closed = true
	return nil
}

// Pulses returns the channels of every buzzer-on call, in order.
func (f *FakeOutput) Pulses() []logic.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []logic.Channel
	for _, b := range f.Buzzes {
		if b.On {
			out = append(out, b.Channel)
		}
	}
	return out
}

// Reset clears recorded calls.
func (f *FakeOutput) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Signals = nil
	f.Buzzes = nil
	f.Statuses = nil
	f.Closed = false
}

// FakeInput stands in for the button lines in tests and simulation.
// It is safe for concurrent use.
type FakeInput struct {
	mu      sync.Mutex
	handler EdgeHandler
	closed  bool
}

// NewFakeInput creates a FakeInput that forwards presses to handler.
func NewFakeInput(handler EdgeHandler) *FakeInput {
	return &FakeInput{handler: handler}
}

// Press simulates one debounced falling edge on side.
// Presses after Close are discarded.
func (f *FakeInput) Press(side logic.Side) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed || f.handler == nil {
		return
	}
	f.handler(side)
}

// Close stops delivering presses.
func (f *FakeInput) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
