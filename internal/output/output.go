// Package output provides fan-out and console adapters for the crossing core.
package output

import (
	"log"

	"github.com/sweeney/pelican/internal/logic"
)

// Tee forwards every output call to each of its members in order.
type Tee []logic.Output

// SetSignal forwards to every member.
func (t Tee) SetSignal(phase logic.Phase) {
	for _, o := range t {
		o.SetSignal(phase)
	}
}

// SetBuzzer forwards to every member.
func (t Tee) SetBuzzer(ch logic.Channel, on bool) {
	for _, o := range t {
		o.SetBuzzer(ch, on)
	}
}

// RenderStatus forwards to every member.
func (t Tee) RenderStatus(text string, countdown int) {
	for _, o := range t {
		o.RenderStatus(text, countdown)
	}
}

// Console writes signal changes, countdown ticks and cycle events to a logger.
type Console struct {
	logger *log.Logger
}

// NewConsole creates a Console. A nil logger uses the standard logger.
func NewConsole(logger *log.Logger) *Console {
	if logger == nil {
		logger = log.Default()
	}
	return &Console{logger: logger}
}

// SetSignal logs the new phase.
func (c *Console) SetSignal(phase logic.Phase) {
	c.logger.Printf("signal: %s", phase.Label())
}

// SetBuzzer logs pulse starts.
func (c *Console) SetBuzzer(ch logic.Channel, on bool) {
	if on {
		c.logger.Printf("buzzer: pulse %s", ch)
	}
}

// RenderStatus logs countdown ticks. Phase changes are already logged by SetSignal.
func (c *Console) RenderStatus(text string, countdown int) {
	if countdown > 0 {
		c.logger.Printf("countdown: %s %d", text, countdown)
	}
}

// CycleStarted logs the start of a crossing cycle.
func (c *Console) CycleStarted(id string, side logic.Side) {
	c.logger.Printf("crossing: cycle %s started for side %s", id, side)
}

// CycleFinished logs the end of a crossing cycle.
func (c *Console) CycleFinished(id string, side logic.Side) {
	c.logger.Printf("crossing: cycle %s finished for side %s", id, side)
}

// RequestDropped logs a request that arrived mid-cycle and was discarded.
func (c *Console) RequestDropped(side logic.Side) {
	c.logger.Printf("crossing: dropped request from side %s received mid-cycle", side)
}
