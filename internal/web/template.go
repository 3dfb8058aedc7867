package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/pelican/internal/logic"
	"github.com/sweeney/pelican/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"phaseClass": phaseClass,
	"ms": func(v int64) string {
		return (time.Duration(v) * time.Millisecond).String()
	},
}).Parse(indexHTML))

// phaseClass maps a phase to its CSS class.
func phaseClass(p logic.Phase) string {
	switch p {
	case logic.PhaseGreen:
		return "green"
	case logic.PhaseYellow:
		return "yellow"
	case logic.PhaseCrossingA, logic.PhaseCrossingB:
		return "crossing"
	}
	return "red"
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Pelican Crossing</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.red { color: #c00; font-weight: bold; }
.green { color: green; font-weight: bold; }
.yellow { color: #c90; font-weight: bold; }
.crossing { color: #06c; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
</style>
</head>
<body>
<h1>Pelican Crossing<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>Signal</h2>
<table>
<tr><th>Phase</th><td id="phase" class="{{phaseClass .Phase}}">{{.Phase}}</td></tr>
<tr><th>Display</th><td id="text">{{.Text}}</td></tr>
<tr><th>Countdown</th><td id="countdown">{{if gt .Countdown 0}}{{.Countdown}}{{else}}-{{end}}</td></tr>
<tr><th>Pending request</th><td id="pending">{{.Pending}}</td></tr>
<tr><th>Crossing cycle</th><td id="cycle">{{if .CycleID}}{{.CycleID}} (side {{.Crossing}}){{else}}-{{end}}</td></tr>
</table>
{{if .Simulate}}
<form method="post" action="/press?side=A" style="display:inline"><button>Press A</button></form>
<form method="post" action="/press?side=B" style="display:inline"><button>Press B</button></form>
{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Activity</h2>
<table>
<tr><th>Transitions</th><td id="transitions">{{.Counts.Transitions}}</td></tr>
<tr><th>Crossings A</th><td>{{.Counts.CrossingsA}}</td></tr>
<tr><th>Crossings B</th><td>{{.Counts.CrossingsB}}</td></tr>
<tr><th>Buzzer pulses</th><td>{{.Counts.Pulses}}</td></tr>
<tr><th>Requests accepted</th><td>{{.Counts.Accepted}}</td></tr>
<tr><th>Requests overridden</th><td>{{.Counts.Overridden}}</td></tr>
<tr><th>Requests dropped</th><td>{{.Counts.Dropped}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Red / Green / Yellow</th><td>{{ms .Config.RedHoldMs}} / {{ms .Config.GreenHoldMs}} / {{ms .Config.YellowHoldMs}}</td></tr>
<tr><th>Warm-up</th><td>{{ms .Config.WarmUpMs}}</td></tr>
<tr><th>Countdown</th><td>{{.Config.CountdownSeconds}}s</td></tr>
<tr><th>Buzzer pulse</th><td>{{ms .Config.BuzzerPulseMs}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{ms .Config.HeartbeatMs}}{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var classes = { GREEN: "green", YELLOW: "yellow", CROSSING_A: "crossing", CROSSING_B: "crossing" };

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function set(id, value) {
    document.getElementById(id).textContent = value;
  }

  function connect() {
    var scheme = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(scheme + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var s = JSON.parse(ev.data).status;
        var phase = document.getElementById("phase");
        phase.textContent = s.phase;
        phase.className = classes[s.phase] || "red";
        set("text", s.text);
        set("countdown", s.countdown > 0 ? s.countdown : "-");
        set("pending", s.pending);
        set("cycle", s.cycle_id ? s.cycle_id + " (side " + s.crossing + ")" : "-");
        set("transitions", s.counts.transitions);
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		Simulate bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Simulate: snap.Config.Simulate,
	}
	indexTmpl.Execute(w, data)
}
