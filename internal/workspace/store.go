package workspace

import (
	"context"

	"reportdeck/api/internal/store"
)

// Store is the row-level storage surface the engine drives. The
// production implementation binds every method to one Querier, so a
// Store handed out by Runner.InTx runs entirely inside that transaction.
type Store interface {
	// ResolveIdentity enriches the authenticated account with its
	// employee linkage, role and workspace, creating the linkage row as
	// a side effect when an employee shares the account's email.
	ResolveIdentity(ctx context.Context, ref AccountRef) (Identity, error)

	GetSettings(ctx context.Context, workspaceID string) (store.SettingsRow, bool, error)
	UpsertSettings(ctx context.Context, row store.SettingsRow) error
	BumpRevision(ctx context.Context, workspaceID string) error

	ListEmployees(ctx context.Context, workspaceID string) ([]store.EmployeeRow, error)
	UpsertEmployee(ctx context.Context, row store.EmployeeRow) error

	ListProjects(ctx context.Context, workspaceID string) ([]store.ProjectRow, error)
	UpsertProject(ctx context.Context, row store.ProjectRow) error

	ListMembers(ctx context.Context, projectIDs []string) ([]store.MemberRow, error)
	UpsertMember(ctx context.Context, row store.MemberRow) error
	DeleteMember(ctx context.Context, memberID string) error

	ListTimeEntries(ctx context.Context, memberIDs []string) ([]store.TimeEntryRow, error)
	DeleteTimeEntriesByMember(ctx context.Context, memberID string) error
	InsertTimeEntry(ctx context.Context, row store.TimeEntryRow) error

	ListReports(ctx context.Context, projectIDs []string) ([]store.ReportRow, error)
	UpsertReport(ctx context.Context, row store.ReportRow) error
	// DeleteReport removes the report and, via cascade, all nine
	// sub-collections beneath it.
	DeleteReport(ctx context.Context, reportID string) error

	ListStatusItems(ctx context.Context, reportIDs []string) ([]store.ReportItemRow, error)
	DeleteStatusItemsByReport(ctx context.Context, reportID string) error
	InsertStatusItem(ctx context.Context, row store.ReportItemRow) error

	ListChallengeItems(ctx context.Context, reportIDs []string) ([]store.ReportItemRow, error)
	DeleteChallengeItemsByReport(ctx context.Context, reportID string) error
	InsertChallengeItem(ctx context.Context, row store.ReportItemRow) error

	ListNextSteps(ctx context.Context, reportIDs []string) ([]store.ReportItemRow, error)
	DeleteNextStepsByReport(ctx context.Context, reportID string) error
	InsertNextStep(ctx context.Context, row store.ReportItemRow) error

	ListTableRows(ctx context.Context, reportIDs []string) ([]store.TableRowRow, error)
	DeleteTableRowsByReport(ctx context.Context, reportID string) error
	InsertTableRow(ctx context.Context, row store.TableRowRow) error

	ListRisks(ctx context.Context, reportIDs []string) ([]store.RiskRow, error)
	DeleteRisksByReport(ctx context.Context, reportID string) error
	InsertRisk(ctx context.Context, row store.RiskRow) error

	ListPhases(ctx context.Context, reportIDs []string) ([]store.PhaseRow, error)
	DeletePhasesByReport(ctx context.Context, reportID string) error
	InsertPhase(ctx context.Context, row store.PhaseRow) error

	ListMilestones(ctx context.Context, reportIDs []string) ([]store.MilestoneRow, error)
	DeleteMilestonesByReport(ctx context.Context, reportID string) error
	InsertMilestone(ctx context.Context, row store.MilestoneRow) error

	ListDeliverables(ctx context.Context, reportIDs []string) ([]store.DeliverableRow, error)
	// DeleteDeliverablesByReport cascades to checklist items.
	DeleteDeliverablesByReport(ctx context.Context, reportID string) error
	InsertDeliverable(ctx context.Context, row store.DeliverableRow) error

	ListChecklistItems(ctx context.Context, reportIDs []string) ([]store.ChecklistItemRow, error)
	InsertChecklistItem(ctx context.Context, row store.ChecklistItemRow) error

	ListKanbanTasks(ctx context.Context, reportIDs []string) ([]store.KanbanTaskRow, error)
	DeleteKanbanTasksByReport(ctx context.Context, reportID string) error
	InsertKanbanTask(ctx context.Context, row store.KanbanTaskRow) error
}

// Runner hands out Stores. Read paths use Store(); every reconciliation
// goes through InTx so all statements share one transaction and one
// connection, released on every exit path.
type Runner interface {
	Store() Store
	InTx(ctx context.Context, fn func(Store) error) error
}
