// Package workspace implements the workspace state engine: snapshot
// assembly from storage, role-scoped projection, and transactional
// reconciliation of a desired snapshot back into storage.
package workspace

import (
	"time"

	"reportdeck/api/internal/rbac"
)

type ProjectStatus string

const (
	StatusActive    ProjectStatus = "active"
	StatusCompleted ProjectStatus = "completed"
	StatusOnHold    ProjectStatus = "on-hold"
)

type MemberGroup string

const (
	GroupCore     MemberGroup = "core"
	GroupExtended MemberGroup = "extended"
	GroupExternal MemberGroup = "external"
)

// Snapshot is the full nested representation of one workspace. It is
// assembled fresh from storage on every read and never cached.
type Snapshot struct {
	Employees []Employee `json:"employees"`
	Projects  []Project  `json:"projects"`
	Settings  *Settings  `json:"settings,omitempty"`
}

type Settings struct {
	Name         string  `json:"name"`
	HoursPerWeek float64 `json:"hoursPerWeek"`
	Revision     int64   `json:"revision"`
}

type Employee struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	// Location is the canonical location/department value. Storage keeps
	// two legacy columns (office, department) that both mirror it.
	Location       string       `json:"location"`
	WeeklyCapacity float64      `json:"weeklyCapacity"`
	Sync           EmployeeSync `json:"sync"`
}

type EmployeeSync struct {
	ExternalID   string     `json:"externalId,omitempty"`
	JobTitle     string     `json:"jobTitle,omitempty"`
	Enabled      bool       `json:"enabled,omitempty"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
}

type Project struct {
	ID      string        `json:"id"`
	Config  ProjectConfig `json:"config"`
	Status  ProjectStatus `json:"status"`
	Members []Member      `json:"members"`
	Reports []Report      `json:"reports"`

	// Projection flags, populated by Project(); never persisted.
	CanEdit    bool `json:"canEdit"`
	CanLogTime bool `json:"canLogTime"`
}

type ProjectConfig struct {
	Name         string  `json:"name"`
	StartDate    string  `json:"startDate,omitempty"`
	EndDate      string  `json:"endDate,omitempty"`
	Goal         string  `json:"goal,omitempty"`
	BusinessCase string  `json:"businessCase,omitempty"`
	Budget       float64 `json:"budget,omitempty"`
}

// Member links an employee into a project. It references the employee,
// it does not own it.
type Member struct {
	ID            string      `json:"id"`
	EmployeeID    string      `json:"employeeId"`
	Role          string      `json:"role"`
	Group         MemberGroup `json:"group"`
	IsProjectLead bool        `json:"isProjectLead"`
	TimeEntries   []TimeEntry `json:"timeEntries"`
}

// TimeEntry records hours for one ISO week (e.g. "2025-W10").
type TimeEntry struct {
	ID    string  `json:"id"`
	Week  string  `json:"week"`
	Hours float64 `json:"hours"`
}

// Report is one weekly report. WeekKey is unique within a project and
// is the stable handle the reconciler matches on to preserve report ids.
type Report struct {
	ID      string      `json:"id"`
	WeekKey string      `json:"weekKey"`
	State   ReportState `json:"state"`
}

// ReportState holds the nine independently reconciled sub-collections.
type ReportState struct {
	StatusItems    []ListItem    `json:"statusItems"`
	ChallengeItems []ListItem    `json:"challengeItems"`
	NextSteps      []ListItem    `json:"nextSteps"`
	TableRows      []TableRow    `json:"tableRows"`
	Risks          []Risk        `json:"risks"`
	Phases         []Phase       `json:"phases"`
	Milestones     []Milestone   `json:"milestones"`
	Deliverables   []Deliverable `json:"deliverables"`
	KanbanTasks    []KanbanTask  `json:"kanbanTasks"`
}

type ListItem struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

type TableRow struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Comment  string `json:"comment"`
	Position int    `json:"position"`
}

type Risk struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Probability int    `json:"probability"`
	Impact      int    `json:"impact"`
	Mitigation  string `json:"mitigation"`
	Position    int    `json:"position"`
}

type Phase struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Position  int    `json:"position"`
}

type Milestone struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	DueDate  string `json:"dueDate,omitempty"`
	Done     bool   `json:"done"`
	Position int    `json:"position"`
}

type Deliverable struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Position  int             `json:"position"`
	Checklist []ChecklistItem `json:"checklist"`
}

type ChecklistItem struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Done     bool   `json:"done"`
	Position int    `json:"position"`
}

type KanbanTask struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Lane       string `json:"lane"`
	AssigneeID string `json:"assigneeId,omitempty"`
	Position   int    `json:"position"`
}

// Clone returns a deep copy. Drafts are explicit value copies so a
// mutator can never alias the read-only snapshot it was handed.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Employees: make([]Employee, len(s.Employees)),
		Projects:  make([]Project, len(s.Projects)),
	}
	for i, e := range s.Employees {
		out.Employees[i] = e.clone()
	}
	for i, p := range s.Projects {
		out.Projects[i] = p.clone()
	}
	if s.Settings != nil {
		settings := *s.Settings
		out.Settings = &settings
	}
	return out
}

func (e Employee) clone() Employee {
	if e.Sync.LastSyncedAt != nil {
		at := *e.Sync.LastSyncedAt
		e.Sync.LastSyncedAt = &at
	}
	return e
}

func (p Project) clone() Project {
	members := make([]Member, len(p.Members))
	for i, m := range p.Members {
		members[i] = m.clone()
	}
	reports := make([]Report, len(p.Reports))
	for i, r := range p.Reports {
		reports[i] = r.clone()
	}
	p.Members = members
	p.Reports = reports
	return p
}

func (m Member) clone() Member {
	entries := make([]TimeEntry, len(m.TimeEntries))
	copy(entries, m.TimeEntries)
	m.TimeEntries = entries
	return m
}

func (r Report) clone() Report {
	state := ReportState{
		StatusItems:    append([]ListItem(nil), r.State.StatusItems...),
		ChallengeItems: append([]ListItem(nil), r.State.ChallengeItems...),
		NextSteps:      append([]ListItem(nil), r.State.NextSteps...),
		TableRows:      append([]TableRow(nil), r.State.TableRows...),
		Risks:          append([]Risk(nil), r.State.Risks...),
		Phases:         append([]Phase(nil), r.State.Phases...),
		Milestones:     append([]Milestone(nil), r.State.Milestones...),
		KanbanTasks:    append([]KanbanTask(nil), r.State.KanbanTasks...),
	}
	state.Deliverables = make([]Deliverable, len(r.State.Deliverables))
	for i, d := range r.State.Deliverables {
		d.Checklist = append([]ChecklistItem(nil), d.Checklist...)
		state.Deliverables[i] = d
	}
	r.State = state
	return r
}

// AccountRef identifies the authenticated caller before enrichment.
type AccountRef struct {
	AccountID string
	Email     string
}

// Identity is the enriched caller identity resolved against storage.
type Identity struct {
	AccountID   string
	EmployeeID  string
	Email       string
	Role        rbac.Role
	WorkspaceID string
}
