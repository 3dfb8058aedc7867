// Package gpio provides the hardware adapters around the crossing core.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"io"

	"github.com/sweeney/pelican/internal/logic"
)

// Output drives the signal LEDs and buzzers.
type Output interface {
	logic.Output
	io.Closer
}

// Input delivers debounced button presses to the handler it was built with.
type Input interface {
	io.Closer
}

// NopOutput discards every call. It stands in for the hardware when
// simulating; the console already shows what the LEDs would.
type NopOutput struct{}

// NewNopOutput creates a NopOutput.
func NewNopOutput() *NopOutput { return &NopOutput{} }

func (NopOutput) SetSignal(logic.Phase) {}
func (NopOutput) SetBuzzer(logic.Channel, bool) {}
func (NopOutput) RenderStatus(string, int) {}
func (NopOutput) Close() error { return nil }

// EdgeHandler receives one call per debounced falling edge.
type EdgeHandler func(side logic.Side)

// Pin definitions (BCM numbering)
const (
	DefaultPinRed     = 13
	DefaultPinGreen   = 11
	DefaultPinButtonA = 5 // towards the centre
	DefaultPinButtonB = 6 // towards the neighbourhood
	DefaultPinBuzzerA = 21
	DefaultPinBuzzerB = 10
)

// Pins maps each function to a line offset on the chip.
type Pins struct {
	Red     int
	Green   int
	ButtonA int
	ButtonB int
	BuzzerA int
	BuzzerB int
}

// DefaultPins returns the reference wiring.
func DefaultPins() Pins {
	return Pins{
		Red:     DefaultPinRed,
		Green:   DefaultPinGreen,
		ButtonA: DefaultPinButtonA,
		ButtonB: DefaultPinButtonB,
		BuzzerA: DefaultPinBuzzerA,
		BuzzerB: DefaultPinBuzzerB,
	}
}

// SignalLevels returns the red and green LED levels for phase.
// YELLOW is shown as both LEDs lit; crossing phases hold traffic on red.
func SignalLevels(phase logic.Phase) (red, green bool) {
	switch phase {
	case logic.PhaseGreen:
		return false, true
	case logic.PhaseYellow:
		return true, true
	default:
		return true, false
	}
}

func level(on bool) int {
	if on {
		return 1
	}
	return 0
}
