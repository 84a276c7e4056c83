package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// exportCSV flattens the report into section/field/value rows so the
// whole report fits one file regardless of which sections are filled.
func exportCSV(data ReportData) (*Result, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	write := func(record ...string) {
		_ = w.Write(record)
	}

	write("section", "field", "value", "extra")
	write("report", "project", data.ProjectName, "")
	write("report", "week", data.WeekKey, "")
	write("report", "generated", data.GeneratedAt.Format("2006-01-02 15:04"), "")

	for _, item := range data.StatusItems {
		write("status", "item", item, "")
	}
	for _, item := range data.Challenges {
		write("challenges", "item", item, "")
	}
	for _, item := range data.NextSteps {
		write("next-steps", "item", item, "")
	}
	for _, row := range data.TableRows {
		write("table", row.Title, row.Status, row.Comment)
	}
	for _, risk := range data.Risks {
		score := strconv.Itoa(risk.Probability * risk.Impact)
		write("risks", risk.Description, score, risk.Mitigation)
	}
	for _, phase := range data.Phases {
		write("phases", phase.Name, phase.StartDate, phase.EndDate)
	}
	for _, milestone := range data.Milestones {
		write("milestones", milestone.Text, doneLabel(milestone.Done), milestone.DueDate)
	}
	for _, deliverable := range data.Deliverables {
		write("deliverables", deliverable.Title, "", "")
		for _, item := range deliverable.Checklist {
			write("deliverables", deliverable.Title, item.Text, doneLabel(item.Done))
		}
	}
	for _, task := range data.KanbanTasks {
		write("kanban", task.Lane, task.Title, "")
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: sanitizeFilename(data.ProjectName+"-"+data.WeekKey) + ".csv",
		MimeType: "text/csv",
	}, nil
}

func doneLabel(done bool) string {
	if done {
		return "done"
	}
	return "open"
}
