package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Phase         string       `json:"phase"`
	Text          string       `json:"text"`
	Countdown     int          `json:"countdown"`
	Buzzer        string       `json:"buzzer,omitempty"`
	Pending       string       `json:"pending"`
	CycleID       string       `json:"cycle_id,omitempty"`
	Crossing      string       `json:"crossing,omitempty"`
	PhaseSince    string       `json:"phase_since,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of activity counts.
type CountsJSON struct {
	Transitions int `json:"transitions"`
	CrossingsA  int `json:"crossings_a"`
	CrossingsB  int `json:"crossings_b"`
	Pulses      int `json:"buzzer_pulses"`
	Accepted    int `json:"requests_accepted"`
	Overridden  int `json:"requests_overridden"`
	Duplicate   int `json:"requests_duplicate"`
	Ignored     int `json:"requests_ignored"`
	Dropped     int `json:"requests_dropped"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	RedHoldMs        int64  `json:"red_hold_ms"`
	GreenHoldMs      int64  `json:"green_hold_ms"`
	YellowHoldMs     int64  `json:"yellow_hold_ms"`
	WarmUpMs         int64  `json:"warm_up_ms"`
	CountdownSeconds int    `json:"countdown_seconds"`
	BuzzerPulseMs    int64  `json:"buzzer_pulse_ms"`
	HeartbeatMs      int64  `json:"heartbeat_ms"`
	Broker           string `json:"broker"`
	HTTPAddr         string `json:"http_addr"`
	Simulate         bool   `json:"simulate"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Phase:         snap.Phase.String(),
		Text:          snap.Text,
		Countdown:     snap.Countdown,
		Pending:       snap.Pending.String(),
		CycleID:       snap.CycleID,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Transitions: snap.Counts.Transitions,
			CrossingsA:  snap.Counts.CrossingsA,
			CrossingsB:  snap.Counts.CrossingsB,
			Pulses:      snap.Counts.Pulses,
			Accepted:    snap.Counts.Accepted,
			Overridden:  snap.Counts.Overridden,
			Duplicate:   snap.Counts.Duplicate,
			Ignored:     snap.Counts.Ignored,
			Dropped:     snap.Counts.Dropped,
		},
		Config: ConfigJSON{
			RedHoldMs:        snap.Config.RedHoldMs,
			GreenHoldMs:      snap.Config.GreenHoldMs,
			YellowHoldMs:     snap.Config.YellowHoldMs,
			WarmUpMs:         snap.Config.WarmUpMs,
			CountdownSeconds: snap.Config.CountdownSeconds,
			BuzzerPulseMs:    snap.Config.BuzzerPulseMs,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			Broker:           snap.Config.Broker,
			HTTPAddr:         snap.Config.HTTPAddr,
			Simulate:         snap.Config.Simulate,
		},
	}
	if snap.Buzzing != 0 {
		inner.Buzzer = snap.Buzzing.String()
	}
	if snap.Crossing != 0 {
		inner.Crossing = snap.Crossing.String()
	}
	if !snap.PhaseSince.IsZero() {
		inner.PhaseSince = snap.PhaseSince.UTC().Format(time.RFC3339)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatCompactJSON returns the status as single-line JSON for live streams.
func FormatCompactJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
