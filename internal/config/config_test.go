package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/pelican/internal/logic"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10*time.Second, cfg.Timing.RedHold)
	assert.Equal(t, 10*time.Second, cfg.Timing.GreenHold)
	assert.Equal(t, 3*time.Second, cfg.Timing.YellowHold)
	assert.Equal(t, 5*time.Second, cfg.Timing.WarmUp)
	assert.Equal(t, 5, cfg.Timing.CountdownSeconds)
	assert.Equal(t, 200*time.Millisecond, cfg.Timing.BuzzerPulse)
	assert.Equal(t, "gpiochip0", cfg.GPIO.Chip)
	assert.Equal(t, 13, cfg.GPIO.Red)
	assert.Equal(t, "traffic/pelican", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 15*time.Minute, cfg.Heartbeat)
	assert.NoError(t, Validate(cfg))
}

func TestLogicTimingMatchesControllerDefaults(t *testing.T) {
	assert.Equal(t, logic.DefaultTiming(), DefaultConfig().LogicTiming())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pelican.yaml")
	content := `
timing:
  red_hold: 12s
  countdown_seconds: 7
gpio:
  simulate: true
mqtt:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewLoader().Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 12*time.Second, cfg.Timing.RedHold)
	assert.Equal(t, 7, cfg.Timing.CountdownSeconds)
	assert.True(t, cfg.GPIO.Simulate)
	assert.False(t, cfg.MQTT.Enabled)
	// untouched keys keep their defaults
	assert.Equal(t, 10*time.Second, cfg.Timing.GreenHold)
	assert.Equal(t, "gpiochip0", cfg.GPIO.Chip)
}

func TestLoadJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pelican.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"http":{"addr":":8080"},"heartbeat":"1m"}`), 0o644))

	cfg, err := NewLoader().Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, time.Minute, cfg.Heartbeat)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewLoader().Load(filepath.Join(dir, "missing.yaml"), nil)
	assert.Error(t, err)

	toml := filepath.Join(dir, "pelican.toml")
	require.NoError(t, os.WriteFile(toml, []byte("x = 1"), 0o644))
	_, err = NewLoader().Load(toml, nil)
	assert.ErrorContains(t, err, "unsupported config file format")
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("PELICAN_TIMING_RED_HOLD", "12s")
	t.Setenv("PELICAN_GPIO_BUTTON_A", "17")
	t.Setenv("PELICAN_MQTT_CLIENT_ID", "north-crossing")
	t.Setenv("PELICAN_HEARTBEAT", "30s")

	cfg, err := NewLoader().Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 12*time.Second, cfg.Timing.RedHold)
	assert.Equal(t, 17, cfg.GPIO.ButtonA)
	assert.Equal(t, "north-crossing", cfg.MQTT.ClientID)
	assert.Equal(t, 30*time.Second, cfg.Heartbeat)
}

func TestOverridesBeatEnvAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pelican.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":81\"\n"), 0o644))
	t.Setenv("PELICAN_HTTP_ADDR", ":82")

	cfg, err := NewLoader().Load(path, map[string]interface{}{"http.addr": ":83"})
	require.NoError(t, err)
	assert.Equal(t, ":83", cfg.HTTP.Addr)
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"PELICAN_TIMING_RED_HOLD":   "timing.red_hold",
		"PELICAN_GPIO_CHIP":         "gpio.chip",
		"PELICAN_MQTT_TOPIC_PREFIX": "mqtt.topic_prefix",
		"PELICAN_HEARTBEAT":         "heartbeat",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"zero red hold", func(c *Config) { c.Timing.RedHold = 0 }, "Timing.RedHold"},
		{"zero countdown", func(c *Config) { c.Timing.CountdownSeconds = 0 }, "Timing.CountdownSeconds"},
		{"pulse not shorter than tick", func(c *Config) { c.Timing.BuzzerPulse = time.Second }, "Timing.BuzzerPulse"},
		{"missing chip", func(c *Config) { c.GPIO.Chip = "" }, "GPIO.Chip"},
		{"shared pin", func(c *Config) { c.GPIO.BuzzerB = c.GPIO.Red }, "used by another function"},
		{"broker required when enabled", func(c *Config) { c.MQTT.Broker = "" }, "MQTT.Broker"},
		{"broker optional when disabled", func(c *Config) { c.MQTT.Enabled = false; c.MQTT.Broker = "" }, ""},
		{"empty buffer", func(c *Config) { c.MQTT.BufferSize = 0 }, "MQTT.BufferSize"},
		{"negative heartbeat", func(c *Config) { c.Heartbeat = -time.Second }, "Heartbeat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("PELICAN_TIMING_COUNTDOWN_SECONDS", "0")
	_, err := NewLoader().Load("", nil)
	assert.ErrorContains(t, err, "CountdownSeconds")
}

func TestStatusConfig(t *testing.T) {
	cfg := DefaultConfig()
	sc := cfg.StatusConfig()
	assert.Equal(t, int64(10000), sc.RedHoldMs)
	assert.Equal(t, int64(200), sc.BuzzerPulseMs)
	assert.Equal(t, "tcp://localhost:1883", sc.Broker)

	cfg.MQTT.Enabled = false
	assert.Empty(t, cfg.StatusConfig().Broker)
}

func TestYAMLRoundTrip(t *testing.T) {
	data, err := DefaultConfig().YAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "red_hold: 10s")

	var raw map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Contains(t, raw, "timing")
	assert.Contains(t, raw, "mqtt")
}
