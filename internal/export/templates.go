package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"doneMark": func(done bool) string {
			if done {
				return "✓"
			}
			return "○"
		},
	}
	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(reportTemplateHTML))
}

// RenderReportHTML renders the weekly report template with provided data
func RenderReportHTML(data ReportData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reportTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.ProjectName}} — {{.WeekKey}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; color: #222; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    h2 { margin-top: 1.5rem; font-size: 1.1em; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { border-collapse: collapse; width: 100%; font-size: 0.9em; }
    th, td { border: 1px solid #ccc; padding: 0.35rem 0.5rem; text-align: left; }
    th { background: #f2f2f2; }
    ul { margin: 0.25rem 0; padding-left: 1.25rem; }
    .checklist { color: #444; font-size: 0.9em; }
  </style>
</head>
<body>
  <h1>{{.ProjectName}}</h1>
  <div class="meta">Uge {{.WeekKey}} | {{formatDate .GeneratedAt "Jan 2, 2006"}}</div>

  {{if .StatusItems}}
  <h2>Status</h2>
  <ul>{{range .StatusItems}}<li>{{.}}</li>{{end}}</ul>
  {{end}}

  {{if .Challenges}}
  <h2>Udfordringer</h2>
  <ul>{{range .Challenges}}<li>{{.}}</li>{{end}}</ul>
  {{end}}

  {{if .NextSteps}}
  <h2>Næste skridt</h2>
  <ul>{{range .NextSteps}}<li>{{.}}</li>{{end}}</ul>
  {{end}}

  {{if .TableRows}}
  <h2>Overblik</h2>
  <table>
    <tr><th>Emne</th><th>Status</th><th>Kommentar</th></tr>
    {{range .TableRows}}<tr><td>{{.Title}}</td><td>{{.Status}}</td><td>{{.Comment}}</td></tr>{{end}}
  </table>
  {{end}}

  {{if .Risks}}
  <h2>Risici</h2>
  <table>
    <tr><th>Beskrivelse</th><th>Sandsynlighed</th><th>Konsekvens</th><th>Mitigering</th></tr>
    {{range .Risks}}<tr><td>{{.Description}}</td><td>{{.Probability}}</td><td>{{.Impact}}</td><td>{{.Mitigation}}</td></tr>{{end}}
  </table>
  {{end}}

  {{if .Phases}}
  <h2>Faser</h2>
  <table>
    <tr><th>Fase</th><th>Start</th><th>Slut</th></tr>
    {{range .Phases}}<tr><td>{{.Name}}</td><td>{{.StartDate}}</td><td>{{.EndDate}}</td></tr>{{end}}
  </table>
  {{end}}

  {{if .Milestones}}
  <h2>Milepæle</h2>
  <ul>{{range .Milestones}}<li>{{doneMark .Done}} {{.Text}}{{if .DueDate}} ({{.DueDate}}){{end}}</li>{{end}}</ul>
  {{end}}

  {{if .Deliverables}}
  <h2>Leverancer</h2>
  {{range .Deliverables}}
  <p>{{.Title}}</p>
  {{if .Checklist}}<ul class="checklist">{{range .Checklist}}<li>{{doneMark .Done}} {{.Text}}</li>{{end}}</ul>{{end}}
  {{end}}
  {{end}}

  {{if .KanbanTasks}}
  <h2>Opgaver</h2>
  <table>
    <tr><th>Bane</th><th>Opgave</th></tr>
    {{range .KanbanTasks}}<tr><td>{{.Lane}}</td><td>{{.Title}}</td></tr>{{end}}
  </table>
  {{end}}
</body>
</html>`
