package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/pillbox/internal/status"
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
	"inc": func(i int) int { return i + 1 },
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Pill Dispenser</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.waiting { color: orange; font-weight: bold; }
.dispensing { color: green; font-weight: bold; }
.idle { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Pill Dispenser</h1>

<h2>Channels</h2>
<table>
<tr><th>Channel</th><th>Time</th><th>State</th><th>Today</th></tr>
{{range .Channels}}<tr id="ch-{{inc .Index}}">
<td>{{inc .Index}}</td>
<td>{{.Schedule}}</td>
<td class="{{if .AwaitingPickup}}waiting{{else if eq (printf "%s" .Phase) "DISPENSING"}}dispensing{{else}}idle{{end}}">{{if .AwaitingPickup}}open door{{else}}{{.Phase}}{{end}}</td>
<td>{{if .DispensedToday}}dispensed{{else}}pending{{end}}</td>
</tr>
{{end}}</table>

<h2>State</h2>
<table>
<tr><th>Clock</th><td id="clock">{{if .ClockOK}}{{.WallTime.Format "2006-01-02 15:04:05"}}{{else}}unavailable{{if .ClockError}} ({{.ClockError}}){{end}}{{end}}</td></tr>
<tr><th>Override</th><td>{{.Override}}</td></tr>
<tr><th>Unlock all</th><td>{{if .UnlockAll}}active{{else}}off{{end}}</td></tr>
<tr><th>Awaiting pickup</th><td id="waiting">{{yesno (gt (len .Waiting) 0)}}</td></tr>
<tr><th>Policy</th><td>{{.Config.Policy}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .Config.Broker}}{{if .MQTTConnected}}connected{{else}}disconnected{{end}}{{else}}disabled{{end}}</td></tr>
{{if .Config.Broker}}<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Dispensed</th><td>{{.Counts.Dispensed}}</td></tr>
<tr><th>Picked up</th><td>{{.Counts.Pickups}}</td></tr>
<tr><th>Unlock all</th><td>{{.Counts.UnlockAll}}</td></tr>
<tr><th>Daily resets</th><td>{{.Counts.DailyResets}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Unlock</th><td>{{.Config.UnlockMs}}ms</td></tr>
<tr><th>Alert</th><td>{{.Config.AlertMs}}ms</td></tr>
<tr><th>Override hold</th><td>{{.Config.OverrideHoldMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>UTC offset</th><td>{{.Config.UTCOffset}}</td></tr>
<tr><th>Clock source</th><td>{{.Config.ClockSource}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has methods but the template needs plain fields.
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Waiting []int
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Waiting:  snap.AwaitingPickup(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render: %v", err)
	}
}
