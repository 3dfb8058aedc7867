//go:build linux

package gpio

import (
	"fmt"
	"log"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/pelican/internal/logic"
)

// RealOutput drives the signal LEDs and buzzers through the Linux GPIO
// character device.
type RealOutput struct {
	chip    *gpiocdev.Chip
	red     *gpiocdev.Line
	green   *gpiocdev.Line
	buzzerA *gpiocdev.Line
	buzzerB *gpiocdev.Line
}

// NewRealOutput requests the LED and buzzer lines as outputs, all low.
func NewRealOutput(chipName string, pins Pins) (*RealOutput, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	o := &RealOutput{chip: chip}
	lines := []struct {
		name   string
		offset int
		dst    **gpiocdev.Line
	}{
		{"red", pins.Red, &o.red},
		{"green", pins.Green, &o.green},
		{"buzzer A", pins.BuzzerA, &o.buzzerA},
		{"buzzer B", pins.BuzzerB, &o.buzzerB},
	}
	for _, l := range lines {
		line, err := chip.RequestLine(l.offset, gpiocdev.AsOutput(0))
		if err != nil {
			o.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", l.name, l.offset, err)
		}
		*l.dst = line
	}
	return o, nil
}

// SetSignal drives the red and green LEDs for phase.
func (o *RealOutput) SetSignal(phase logic.Phase) {
	red, green := SignalLevels(phase)
	if err := o.red.SetValue(level(red)); err != nil {
		log.Printf("gpio: set red: %v", err)
	}
	if err := o.green.SetValue(level(green)); err != nil {
		log.Printf("gpio: set green: %v", err)
	}
}

// SetBuzzer drives buzzer A for Channel1 and buzzer B for Channel2.
func (o *RealOutput) SetBuzzer(ch logic.Channel, on bool) {
	line := o.buzzerA
	if ch == logic.Channel2 {
		line = o.buzzerB
	}
	if err := line.SetValue(level(on)); err != nil {
		log.Printf("gpio: set buzzer %s: %v", ch, err)
	}
}

// RenderStatus is a no-op: the board has no display attached.
func (o *RealOutput) RenderStatus(text string, countdown int) {}

// Close drives every line low and releases the chip.
func (o *RealOutput) Close() error {
	var errs []error
	for _, line := range []*gpiocdev.Line{o.red, o.green, o.buzzerA, o.buzzerB} {
		if line == nil {
			continue
		}
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("drive low: %w", err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealInput watches the two crossing buttons for falling edges.
type RealInput struct {
	chip    *gpiocdev.Chip
	buttonA *gpiocdev.Line
	buttonB *gpiocdev.Line
}

// NewRealInput requests the button lines as pulled-up inputs with kernel
// debounce and forwards every falling edge to handler. The handler runs on
// the gpiocdev event goroutine and must not block.
func NewRealInput(chipName string, pins Pins, debounce time.Duration, handler EdgeHandler) (*RealInput, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	onEdge := func(side logic.Side) func(gpiocdev.LineEvent) {
		return func(evt gpiocdev.LineEvent) {
			if evt.Type == gpiocdev.LineEventFallingEdge {
				handler(side)
			}
		}
	}

	in := &RealInput{chip: chip}
	in.buttonA, err = chip.RequestLine(pins.ButtonA,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithDebounce(debounce),
		gpiocdev.WithEventHandler(onEdge(logic.SideA)))
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("request button A pin %d: %w", pins.ButtonA, err)
	}

	in.buttonB, err = chip.RequestLine(pins.ButtonB,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithDebounce(debounce),
		gpiocdev.WithEventHandler(onEdge(logic.SideB)))
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("request button B pin %d: %w", pins.ButtonB, err)
	}

	return in, nil
}

// Close releases the button lines.
// Reconfigures pins to input with pull-down (matching Pi boot defaults)
// before closing.
func (r *RealInput) Close() error {
	var errs []error
	for _, line := range []*gpiocdev.Line{r.buttonA, r.buttonB} {
		if line == nil {
			continue
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line: %w", err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
