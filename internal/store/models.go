package store

import "time"

type Account struct {
	ID           string
	WorkspaceID  string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string
}

// AccountLink ties an account to the employee record it acts as.
type AccountLink struct {
	AccountID  string
	EmployeeID string
}

type SettingsRow struct {
	WorkspaceID  string
	Name         string
	HoursPerWeek float64
	Revision     int64
}

type EmployeeRow struct {
	ID          string
	WorkspaceID string
	Name        string
	Email       string
	// Location is canonical; Office and Department are legacy columns
	// kept in lockstep with it on every write.
	Location       string
	Office         string
	Department     string
	WeeklyCapacity float64
	ExternalID     string
	JobTitle       string
	SyncEnabled    bool
	LastSyncedAt   *time.Time
}

type ProjectRow struct {
	ID           string
	WorkspaceID  string
	Name         string
	StartDate    string
	EndDate      string
	Goal         string
	BusinessCase string
	Budget       float64
	Status       string
}

type MemberRow struct {
	ID            string
	ProjectID     string
	EmployeeID    string
	Role          string
	MemberGroup   string
	IsProjectLead bool
}

type TimeEntryRow struct {
	ID       string
	MemberID string
	Week     string
	Hours    float64
}

type ReportRow struct {
	ID        string
	ProjectID string
	WeekKey   string
}

type ReportItemRow struct {
	ID       string
	ReportID string
	Text     string
	Position int
}

type TableRowRow struct {
	ID       string
	ReportID string
	Title    string
	Status   string
	Comment  string
	Position int
}

type RiskRow struct {
	ID          string
	ReportID    string
	Description string
	Probability int
	Impact      int
	Mitigation  string
	Position    int
}

type PhaseRow struct {
	ID        string
	ReportID  string
	Name      string
	StartDate string
	EndDate   string
	Position  int
}

type MilestoneRow struct {
	ID       string
	ReportID string
	Text     string
	DueDate  string
	Done     bool
	Position int
}

type DeliverableRow struct {
	ID       string
	ReportID string
	Title    string
	Position int
}

type ChecklistItemRow struct {
	ID            string
	DeliverableID string
	ReportID      string
	Text          string
	Done          bool
	Position      int
}

type KanbanTaskRow struct {
	ID         string
	ReportID   string
	Title      string
	Lane       string
	AssigneeID string
	Position   int
}
