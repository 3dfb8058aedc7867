//go:build !linux

package gpio

import (
	"errors"
	"time"

	"github.com/sweeney/pelican/internal/logic"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

// NewRealOutput returns an error on non-Linux platforms.
func NewRealOutput(chip string, pins Pins) (*RealOutput, error) {
	return nil, errUnsupported
}

// SetSignal is not implemented on non-Linux platforms.
func (r *RealOutput) SetSignal(phase logic.Phase) {}

// SetBuzzer is not implemented on non-Linux platforms.
func (r *RealOutput) SetBuzzer(ch logic.Channel, on bool) {}

// RenderStatus is not implemented on non-Linux platforms.
func (r *RealOutput) RenderStatus(text string, countdown int) {}

// Close is not implemented on non-Linux platforms.
func (r *RealOutput) Close() error {
	return nil
}

// RealInput is not available on non-Linux platforms.
type RealInput struct{}

// NewRealInput returns an error on non-Linux platforms.
func NewRealInput(chip string, pins Pins, debounce time.Duration, handler EdgeHandler) (*RealInput, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealInput) Close() error {
	return nil
}
