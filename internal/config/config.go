// Package config loads daemon configuration from defaults, an optional
// YAML or JSON file, PELICAN_ environment variables and flag overrides.
package config

import (
	"time"

	"github.com/sweeney/pelican/internal/gpio"
	"github.com/sweeney/pelican/internal/logic"
	"github.com/sweeney/pelican/internal/mqtt"
	"github.com/sweeney/pelican/internal/status"
)

// Config is the resolved daemon configuration.
type Config struct {
	Timing TimingConfig `mapstructure:"timing" yaml:"timing"`
	GPIO   GPIOConfig   `mapstructure:"gpio" yaml:"gpio"`
	MQTT   MQTTConfig   `mapstructure:"mqtt" yaml:"mqtt"`
	HTTP   HTTPConfig   `mapstructure:"http" yaml:"http"`

	// Heartbeat is the interval between HEARTBEAT system events. Zero disables them.
	Heartbeat time.Duration `mapstructure:"heartbeat" yaml:"heartbeat" validate:"gte=0"`
}

// TimingConfig holds the phase and countdown timings.
type TimingConfig struct {
	RedHold          time.Duration `mapstructure:"red_hold" yaml:"red_hold" validate:"gt=0"`
	GreenHold        time.Duration `mapstructure:"green_hold" yaml:"green_hold" validate:"gt=0"`
	YellowHold       time.Duration `mapstructure:"yellow_hold" yaml:"yellow_hold" validate:"gt=0"`
	WarmUp           time.Duration `mapstructure:"warm_up" yaml:"warm_up" validate:"gte=0"`
	CountdownSeconds int           `mapstructure:"countdown_seconds" yaml:"countdown_seconds" validate:"min=1,max=60"`
	TickInterval     time.Duration `mapstructure:"tick_interval" yaml:"tick_interval" validate:"gt=0"`
	BuzzerPulse      time.Duration `mapstructure:"buzzer_pulse" yaml:"buzzer_pulse" validate:"gt=0,ltfield=TickInterval"`
}

// GPIOConfig holds the chip, line offsets and input debounce.
type GPIOConfig struct {
	Chip     string        `mapstructure:"chip" yaml:"chip" validate:"required"`
	Red      int           `mapstructure:"red" yaml:"red" validate:"gte=0"`
	Green    int           `mapstructure:"green" yaml:"green" validate:"gte=0"`
	ButtonA  int           `mapstructure:"button_a" yaml:"button_a" validate:"gte=0"`
	ButtonB  int           `mapstructure:"button_b" yaml:"button_b" validate:"gte=0"`
	BuzzerA  int           `mapstructure:"buzzer_a" yaml:"buzzer_a" validate:"gte=0"`
	BuzzerB  int           `mapstructure:"buzzer_b" yaml:"buzzer_b" validate:"gte=0"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce" validate:"gte=0"`
	// Simulate replaces the GPIO adapters with fakes and console output.
	Simulate bool `mapstructure:"simulate" yaml:"simulate"`
}

// MQTTConfig configures event publishing.
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker      string `mapstructure:"broker" yaml:"broker" validate:"required_if=Enabled true"`
	ClientID    string `mapstructure:"client_id" yaml:"client_id" validate:"required_if=Enabled true"`
	TopicPrefix string `mapstructure:"topic_prefix" yaml:"topic_prefix"`
	BufferSize  int    `mapstructure:"buffer_size" yaml:"buffer_size" validate:"min=1"`
}

// HTTPConfig configures the status server. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DefaultConfig returns the configuration of the reference intersection.
func DefaultConfig() *Config {
	t := logic.DefaultTiming()
	p := gpio.DefaultPins()
	return &Config{
		Timing: TimingConfig{
			RedHold:          t.RedHold,
			GreenHold:        t.GreenHold,
			YellowHold:       t.YellowHold,
			WarmUp:           t.WarmUp,
			CountdownSeconds: t.CountdownSeconds,
			TickInterval:     t.TickInterval,
			BuzzerPulse:      t.BuzzerPulse,
		},
		GPIO: GPIOConfig{
			Chip:     "gpiochip0",
			Red:      p.Red,
			Green:    p.Green,
			ButtonA:  p.ButtonA,
			ButtonB:  p.ButtonB,
			BuzzerA:  p.BuzzerA,
			BuzzerB:  p.BuzzerB,
			Debounce: 50 * time.Millisecond,
		},
		MQTT: MQTTConfig{
			Enabled:     true,
			Broker:      "tcp://localhost:1883",
			ClientID:    "pelican",
			TopicPrefix: mqtt.DefaultTopicPrefix,
			BufferSize:  1000,
		},
		HTTP:      HTTPConfig{Addr: ":80"},
		Heartbeat: 15 * time.Minute,
	}
}

// LogicTiming converts the timing section for the controller.
func (c *Config) LogicTiming() logic.Timing {
	return logic.Timing{
		RedHold:          c.Timing.RedHold,
		GreenHold:        c.Timing.GreenHold,
		YellowHold:       c.Timing.YellowHold,
		WarmUp:           c.Timing.WarmUp,
		CountdownSeconds: c.Timing.CountdownSeconds,
		TickInterval:     c.Timing.TickInterval,
		BuzzerPulse:      c.Timing.BuzzerPulse,
	}
}

// Pins converts the GPIO section to line offsets.
func (c *Config) Pins() gpio.Pins {
	return gpio.Pins{
		Red:     c.GPIO.Red,
		Green:   c.GPIO.Green,
		ButtonA: c.GPIO.ButtonA,
		ButtonB: c.GPIO.ButtonB,
		BuzzerA: c.GPIO.BuzzerA,
		BuzzerB: c.GPIO.BuzzerB,
	}
}

// MQTTOptions converts the MQTT section for the publisher.
func (c *Config) MQTTOptions() mqtt.Options {
	return mqtt.Options{
		Broker:      c.MQTT.Broker,
		ClientID:    c.MQTT.ClientID,
		TopicPrefix: c.MQTT.TopicPrefix,
		BufferSize:  c.MQTT.BufferSize,
	}
}

// StatusConfig returns the configuration as shown on the status page.
func (c *Config) StatusConfig() status.Config {
	broker := ""
	if c.MQTT.Enabled {
		broker = c.MQTT.Broker
	}
	return status.Config{
		RedHoldMs:        c.Timing.RedHold.Milliseconds(),
		GreenHoldMs:      c.Timing.GreenHold.Milliseconds(),
		YellowHoldMs:     c.Timing.YellowHold.Milliseconds(),
		WarmUpMs:         c.Timing.WarmUp.Milliseconds(),
		CountdownSeconds: c.Timing.CountdownSeconds,
		BuzzerPulseMs:    c.Timing.BuzzerPulse.Milliseconds(),
		HeartbeatMs:      c.Heartbeat.Milliseconds(),
		Broker:           broker,
		HTTPAddr:         c.HTTP.Addr,
		Simulate:         c.GPIO.Simulate,
	}
}
