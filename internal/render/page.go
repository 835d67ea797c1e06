package render

import (
	"html/template"
	"io"

	"smartbin-dashboard/internal/model"
)

// NoHistoryMessage is shown wherever the history is empty.
const NoHistoryMessage = "No hay datos de historial disponibles."

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>Tacho inteligente</title>
<style>
body{font-family:sans-serif;margin:24px;background:#f8fafc;color:#0f172a}
.cards{display:flex;gap:16px;flex-wrap:wrap}
.card{background:#fff;border-radius:8px;padding:16px;min-width:160px;box-shadow:0 1px 3px #0002}
.card h3{margin:0 0 8px;font-size:14px;color:#475569}
.value{font-size:24px;font-weight:bold}
.error{color:#b91c1c}
iframe{border:0;width:100%;height:340px}
table{border-collapse:collapse;width:100%;background:#fff}
td,th{padding:6px 10px;border-bottom:1px solid #e2e8f0;text-align:left}
</style>
</head>
<body>
<h1>Tacho inteligente</h1>
{{if .StatusError}}<p class="error">{{.StatusError}}</p>{{end}}
<div class="cards">
<div class="card"><h3>Nivel de llenado</h3><div class="value" style="color:{{.Indicators.Hex}}">{{.Indicators.Fill}}</div></div>
<div class="card"><h3>Distancia a residuos</h3><div class="value">{{.Indicators.Distance}}</div></div>
<div class="card"><h3>Tapa</h3><div class="value">{{.Indicators.Lid}}</div>
<button id="toggle" {{if not .StatusSeen}}disabled{{end}}>Abrir / cerrar tapa</button></div>
<div class="card"><h3>Persona detectada</h3><div class="value">{{.Indicators.Person}}</div></div>
<div class="card"><h3>Vehículo</h3><div class="value">{{.Indicators.Vehicle}}</div></div>
</div>
<iframe src="/charts/gauge"></iframe>
<iframe src="/charts/trend"></iframe>
<h2>Historial</h2>
{{if .HistoryError}}<p class="error">{{.HistoryError}}</p>{{end}}
{{if .History.Empty}}<p>{{.NoHistory}}</p>{{else}}
<table>
<tr><th>Fecha</th><th>Nivel (%)</th><th>Distancia (mm)</th></tr>
{{range .History.Rows}}<tr><td>{{.Time}}</td><td>{{printf "%.2f" .Level}}</td><td>{{printf "%.0f" .DistanceMm}}</td></tr>
{{end}}</table>{{end}}
<script>
document.getElementById("toggle").onclick = function () { fetch("/api/lid/toggle", {method: "POST"}); };
(function connect() {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");
  var pending = null;
  ws.onmessage = function () {
    if (pending) return;
    pending = setTimeout(function () { location.reload(); }, 500);
  };
  ws.onclose = function () { setTimeout(connect, 5000); };
})();
</script>
</body>
</html>
`))

var messageTmpl = template.Must(template.New("message").Parse(`<!DOCTYPE html>
<html lang="es">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family:sans-serif;display:flex;align-items:center;justify-content:center;height:90vh;color:#475569">
<p>{{.Message}}</p>
</body>
</html>
`))

type dashboardData struct {
	model.Snapshot
	Indicators Indicators
	NoHistory  string
}

// Dashboard writes the dashboard page for snap.
func Dashboard(w io.Writer, snap model.Snapshot) error {
	return dashboardTmpl.Execute(w, dashboardData{
		Snapshot:   snap,
		Indicators: NewIndicators(snap.Status),
		NoHistory:  NoHistoryMessage,
	})
}

// Message writes a minimal page holding a single message.
func Message(w io.Writer, title, message string) error {
	return messageTmpl.Execute(w, struct{ Title, Message string }{title, message})
}
