package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sweeney/mattress-tracker/internal/registry"
	"github.com/sweeney/mattress-tracker/internal/status"
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
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Mattress Tracker</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.never { color: orange; }
.ago { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
form { display: inline; }
</style>
</head>
<body>
<h1>Mattress Tracker</h1>

{{range .Rows}}
<h2 id="{{.ID}}">{{.Name}}</h2>
<table>
<tr><th>Side up</th><td>{{.Side}}</td></tr>
<tr><th>Last flipped</th><td>{{if .Flipped}}{{.Flipped}} <span class="ago">({{.FlipAgo}})</span>{{else}}<span class="never">never</span>{{end}}</td></tr>
<tr><th>Rotation</th><td>{{.Rotation}}</td></tr>
<tr><th>Last rotated</th><td>{{if .Rotated}}{{.Rotated}} <span class="ago">({{.RotateAgo}})</span>{{else}}<span class="never">never</span>{{end}}</td></tr>
</table>
<form method="post" action="/api/buttons/{{.FlipButton}}/press"><button type="submit">Flip now</button></form>
<form method="post" action="/api/buttons/{{.RotateButton}}/press"><button type="submit">Rotate now</button></form>
{{else}}
<p class="never">No mattresses configured.</p>
{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Daemon</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.Format "2006-01-02 15:04:05"}}</td></tr>
<tr><th>Refresh</th><td>{{.Config.RefreshMs}}ms</td></tr>
<tr><th>Database</th><td>{{.Config.DBPath}}</td></tr>
<tr><th>Config</th><td>{{.Config.ConfigPath}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

// row is the rendered view of one mattress.
type row struct {
	ID           string
	Name         string
	Side         string
	Flipped      string
	FlipAgo      string
	Rotation     string
	Rotated      string
	RotateAgo    string
	FlipButton   string
	RotateButton string
}

func newRow(v status.MattressView) row {
	st := v.State
	r := row{
		ID:           v.ID,
		Name:         st.Names.Mattress,
		Side:         st.SideName(),
		Rotation:     st.RotationName(),
		FlipButton:   registry.EntityID(v.ID, registry.KeyFlipNow),
		RotateButton: registry.EntityID(v.ID, registry.KeyRotateNow),
	}
	if days, ok := st.DaysSinceFlip(v.Today); ok {
		r.Flipped = st.LastFlip.String()
		r.FlipAgo = ago(days)
	}
	if days, ok := st.DaysSinceRotate(v.Today); ok {
		r.Rotated = st.LastRotate.String()
		r.RotateAgo = ago(days)
	}
	return r
}

// ago describes a whole-day distance in words.
func ago(days int) string {
	if days == 0 {
		return "today"
	}
	now := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	return humanize.RelTime(now.AddDate(0, 0, -days), now, "ago", "from now")
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	rows := make([]row, 0, len(snap.Mattresses))
	for _, v := range snap.Mattresses {
		rows = append(rows, newRow(v))
	}
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Rows   []row
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Rows:     rows,
	}
	return indexTmpl.Execute(w, data)
}
