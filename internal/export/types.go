// Package export renders weekly reports as PDF or CSV.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF Format = "pdf"
	FormatCSV Format = "csv"
)

// Request contains parameters for an export operation
type Request struct {
	ProjectID string
	WeekKey   string
	Format    Format
}

// ReportData is the flattened weekly report handed to the renderers.
type ReportData struct {
	ProjectName string
	WeekKey     string
	GeneratedAt time.Time

	StatusItems []string
	Challenges  []string
	NextSteps   []string

	TableRows    []TableRowLine
	Risks        []RiskLine
	Phases       []PhaseLine
	Milestones   []MilestoneLine
	Deliverables []DeliverableLine
	KanbanTasks  []KanbanLine
}

type TableRowLine struct {
	Title   string
	Status  string
	Comment string
}

type RiskLine struct {
	Description string
	Probability int
	Impact      int
	Mitigation  string
}

type PhaseLine struct {
	Name      string
	StartDate string
	EndDate   string
}

type MilestoneLine struct {
	Text    string
	DueDate string
	Done    bool
}

type DeliverableLine struct {
	Title     string
	Checklist []ChecklistLine
}

type ChecklistLine struct {
	Text string
	Done bool
}

type KanbanLine struct {
	Title string
	Lane  string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
