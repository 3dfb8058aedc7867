package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "PELICAN_"
	// Delimiter is the key delimiter for nested config.
	Delimiter = "."
)

// Loader resolves configuration from its sources.
type Loader struct {
	k *koanf.Koanf
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{k: koanf.New(Delimiter)}
}

// Load resolves configuration with the following priority, highest first:
//  1. overrides (command line flags, flat dot keys such as "http.addr")
//  2. environment variables (PELICAN_TIMING_RED_HOLD=12s)
//  3. the config file at path, if path is not empty
//  4. defaults
func (l *Loader) Load(path string, overrides map[string]interface{}) (*Config, error) {
	if err := l.k.Load(confmap.Provider(defaultsMap(DefaultConfig()), Delimiter), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := l.loadFile(path); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if len(overrides) > 0 {
		if err := l.k.Load(confmap.Provider(overrides, Delimiter), nil); err != nil {
			return nil, fmt.Errorf("apply overrides: %w", err)
		}
	}

	var cfg Config
	if err := l.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "mapstructure"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) loadFile(path string) error {
	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return l.k.Load(file.Provider(path), parser)
}

// loadEnv maps PELICAN_<SECTION>_<KEY> to section.key. Only the first
// underscore after the prefix separates the section, so
// PELICAN_TIMING_RED_HOLD becomes timing.red_hold.
func (l *Loader) loadEnv() error {
	return l.k.Load(env.Provider(EnvPrefix, Delimiter, envKey), nil)
}

func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + Delimiter + rest
}

// Get returns a configuration value by key.
func (l *Loader) Get(key string) interface{} {
	return l.k.Get(key)
}

// defaultsMap flattens cfg into dot keys for the confmap provider.
func defaultsMap(cfg *Config) map[string]interface{} {
	return map[string]interface{}{
		"timing.red_hold":          cfg.Timing.RedHold,
		"timing.green_hold":        cfg.Timing.GreenHold,
		"timing.yellow_hold":       cfg.Timing.YellowHold,
		"timing.warm_up":           cfg.Timing.WarmUp,
		"timing.countdown_seconds": cfg.Timing.CountdownSeconds,
		"timing.tick_interval":     cfg.Timing.TickInterval,
		"timing.buzzer_pulse":      cfg.Timing.BuzzerPulse,
		"gpio.chip":                cfg.GPIO.Chip,
		"gpio.red":                 cfg.GPIO.Red,
		"gpio.green":               cfg.GPIO.Green,
		"gpio.button_a":            cfg.GPIO.ButtonA,
		"gpio.button_b":            cfg.GPIO.ButtonB,
		"gpio.buzzer_a":            cfg.GPIO.BuzzerA,
		"gpio.buzzer_b":            cfg.GPIO.BuzzerB,
		"gpio.debounce":            cfg.GPIO.Debounce,
		"gpio.simulate":            cfg.GPIO.Simulate,
		"mqtt.enabled":             cfg.MQTT.Enabled,
		"mqtt.broker":              cfg.MQTT.Broker,
		"mqtt.client_id":           cfg.MQTT.ClientID,
		"mqtt.topic_prefix":        cfg.MQTT.TopicPrefix,
		"mqtt.buffer_size":         cfg.MQTT.BufferSize,
		"http.addr":                cfg.HTTP.Addr,
		"heartbeat":                cfg.Heartbeat,
	}
}

// YAML renders cfg as YAML with durations in Go notation.
func (c *Config) YAML() ([]byte, error) {
	return yamlv3.Marshal(c)
}
