package workspace

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgconn"

	"reportdeck/api/internal/store"
)

// memState is a full in-memory mirror of the workspace tables. memRunner
// implements transactions by running writes against a deep copy and
// swapping it in only on success, so rollback semantics hold for real.
type memState struct {
	identities  map[string]Identity
	settings    map[string]store.SettingsRow
	employees   map[string]store.EmployeeRow
	projects    map[string]store.ProjectRow
	members     map[string]store.MemberRow
	timeEntries map[string]store.TimeEntryRow
	reports     map[string]store.ReportRow
	statusItems map[string]store.ReportItemRow
	challenges  map[string]store.ReportItemRow
	nextSteps   map[string]store.ReportItemRow
	tableRows   map[string]store.TableRowRow
	risks       map[string]store.RiskRow
	phases      map[string]store.PhaseRow
	milestones  map[string]store.MilestoneRow
	delivs      map[string]store.DeliverableRow
	checklist   map[string]store.ChecklistItemRow
	kanban      map[string]store.KanbanTaskRow
}

func newMemState() *memState {
	return &memState{
		identities:  map[string]Identity{},
		settings:    map[string]store.SettingsRow{},
		employees:   map[string]store.EmployeeRow{},
		projects:    map[string]store.ProjectRow{},
		members:     map[string]store.MemberRow{},
		timeEntries: map[string]store.TimeEntryRow{},
		reports:     map[string]store.ReportRow{},
		statusItems: map[string]store.ReportItemRow{},
		challenges:  map[string]store.ReportItemRow{},
		nextSteps:   map[string]store.ReportItemRow{},
		tableRows:   map[string]store.TableRowRow{},
		risks:       map[string]store.RiskRow{},
		phases:      map[string]store.PhaseRow{},
		milestones:  map[string]store.MilestoneRow{},
		delivs:      map[string]store.DeliverableRow{},
		checklist:   map[string]store.ChecklistItemRow{},
		kanban:      map[string]store.KanbanTaskRow{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memState) clone() *memState {
	out := &memState{
		identities:  copyMap(s.identities),
		settings:    copyMap(s.settings),
		employees:   copyMap(s.employees),
		projects:    copyMap(s.projects),
		members:     copyMap(s.members),
		timeEntries: copyMap(s.timeEntries),
		reports:     copyMap(s.reports),
		statusItems: copyMap(s.statusItems),
		challenges:  copyMap(s.challenges),
		nextSteps:   copyMap(s.nextSteps),
		tableRows:   copyMap(s.tableRows),
		risks:       copyMap(s.risks),
		phases:      copyMap(s.phases),
		milestones:  copyMap(s.milestones),
		delivs:      copyMap(s.delivs),
		checklist:   copyMap(s.checklist),
		kanban:      copyMap(s.kanban),
	}
	for id, emp := range out.employees {
		if emp.LastSyncedAt != nil {
			at := *emp.LastSyncedAt
			emp.LastSyncedAt = &at
			out.employees[id] = emp
		}
	}
	return out
}

func uniqueViolation(constraint string) error {
	return fmt.Errorf("unique violation: %w", &pgconn.PgError{Code: "23505", ConstraintName: constraint})
}

type memStore struct {
	state *memState
	// failOn lets a test force a storage error on the nth call of a
	// given method name.
	failOn map[string]error
}

func (m *memStore) fail(method string) error {
	if m.failOn == nil {
		return nil
	}
	return m.failOn[method]
}

func (m *memStore) ResolveIdentity(_ context.Context, ref AccountRef) (Identity, error) {
	identity, ok := m.state.identities[ref.AccountID]
	if !ok {
		return Identity{}, errAuthRequired()
	}
	return identity, nil
}

func (m *memStore) GetSettings(_ context.Context, workspaceID string) (store.SettingsRow, bool, error) {
	row, ok := m.state.settings[workspaceID]
	return row, ok, nil
}

func (m *memStore) UpsertSettings(_ context.Context, row store.SettingsRow) error {
	if existing, ok := m.state.settings[row.WorkspaceID]; ok {
		row.Revision = existing.Revision
	}
	m.state.settings[row.WorkspaceID] = row
	return nil
}

func (m *memStore) BumpRevision(_ context.Context, workspaceID string) error {
	if row, ok := m.state.settings[workspaceID]; ok {
		row.Revision++
		m.state.settings[workspaceID] = row
	}
	return nil
}

func (m *memStore) ListEmployees(_ context.Context, workspaceID string) ([]store.EmployeeRow, error) {
	var out []store.EmployeeRow
	for _, row := range m.state.employees {
		if row.WorkspaceID == workspaceID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) UpsertEmployee(_ context.Context, row store.EmployeeRow) error {
	if err := m.fail("UpsertEmployee:" + row.Email); err != nil {
		return err
	}
	for _, other := range m.state.employees {
		if other.ID != row.ID && other.WorkspaceID == row.WorkspaceID && foldEmail(other.Email) == foldEmail(row.Email) {
			return uniqueViolation("employees_workspace_email_key")
		}
	}
	m.state.employees[row.ID] = row
	return nil
}

func (m *memStore) ListProjects(_ context.Context, workspaceID string) ([]store.ProjectRow, error) {
	var out []store.ProjectRow
	for _, row := range m.state.projects {
		if row.WorkspaceID == workspaceID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) UpsertProject(_ context.Context, row store.ProjectRow) error {
	m.state.projects[row.ID] = row
	return nil
}

func (m *memStore) ListMembers(_ context.Context, projectIDs []string) ([]store.MemberRow, error) {
	wanted := toSet(projectIDs)
	var out []store.MemberRow
	for _, row := range m.state.members {
		if wanted[row.ProjectID] {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpsertMember(_ context.Context, row store.MemberRow) error {
	m.state.members[row.ID] = row
	return nil
}

func (m *memStore) DeleteMember(_ context.Context, memberID string) error {
	delete(m.state.members, memberID)
	return nil
}

func (m *memStore) ListTimeEntries(_ context.Context, memberIDs []string) ([]store.TimeEntryRow, error) {
	wanted := toSet(memberIDs)
	var out []store.TimeEntryRow
	for _, row := range m.state.timeEntries {
		if wanted[row.MemberID] {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Week != out[j].Week {
			return out[i].Week < out[j].Week
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) DeleteTimeEntriesByMember(_ context.Context, memberID string) error {
	for id, row := range m.state.timeEntries {
		if row.MemberID == memberID {
			delete(m.state.timeEntries, id)
		}
	}
	return nil
}

func (m *memStore) InsertTimeEntry(_ context.Context, row store.TimeEntryRow) error {
	if _, exists := m.state.timeEntries[row.ID]; exists {
		return uniqueViolation("time_entries_pkey")
	}
	for _, other := range m.state.timeEntries {
		if other.MemberID == row.MemberID && other.Week == row.Week {
			return uniqueViolation("time_entries_member_week_key")
		}
	}
	m.state.timeEntries[row.ID] = row
	return nil
}

func (m *memStore) ListReports(_ context.Context, projectIDs []string) ([]store.ReportRow, error) {
	wanted := toSet(projectIDs)
	var out []store.ReportRow
	for _, row := range m.state.reports {
		if wanted[row.ProjectID] {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekKey > out[j].WeekKey })
	return out, nil
}

func (m *memStore) UpsertReport(_ context.Context, row store.ReportRow) error {
	for _, other := range m.state.reports {
		if other.ID != row.ID && other.ProjectID == row.ProjectID && other.WeekKey == row.WeekKey {
			return uniqueViolation("reports_project_week_key")
		}
	}
	m.state.reports[row.ID] = row
	return nil
}

func (m *memStore) DeleteReport(_ context.Context, reportID string) error {
	delete(m.state.reports, reportID)
	for id, row := range m.state.statusItems {
		if row.ReportID == reportID {
			delete(m.state.statusItems, id)
		}
	}
	for id, row := range m.state.challenges {
		if row.ReportID == reportID {
			delete(m.state.challenges, id)
		}
	}
	for id, row := range m.state.nextSteps {
		if row.ReportID == reportID {
			delete(m.state.nextSteps, id)
		}
	}
	for id, row := range m.state.tableRows {
		if row.ReportID == reportID {
			delete(m.state.tableRows, id)
		}
	}
	for id, row := range m.state.risks {
		if row.ReportID == reportID {
			delete(m.state.risks, id)
		}
	}
	for id, row := range m.state.phases {
		if row.ReportID == reportID {
			delete(m.state.phases, id)
		}
	}
	for id, row := range m.state.milestones {
		if row.ReportID == reportID {
			delete(m.state.milestones, id)
		}
	}
	for id, row := range m.state.delivs {
		if row.ReportID == reportID {
			delete(m.state.delivs, id)
		}
	}
	for id, row := range m.state.checklist {
		if row.ReportID == reportID {
			delete(m.state.checklist, id)
		}
	}
	for id, row := range m.state.kanban {
		if row.ReportID == reportID {
			delete(m.state.kanban, id)
		}
	}
	return nil
}

func (m *memStore) listItems(items map[string]store.ReportItemRow, reportIDs []string) []store.ReportItemRow {
	wanted := toSet(reportIDs)
	var out []store.ReportItemRow
	for _, row := range items {
		if wanted[row.ReportID] {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memStore) deleteItemsByReport(items map[string]store.ReportItemRow, reportID string) {
	for id, row := range items {
		if row.ReportID == reportID {
			delete(items, id)
		}
	}
}

func (m *memStore) insertItem(items map[string]store.ReportItemRow, row store.ReportItemRow, table string) error {
	if _, exists := items[row.ID]; exists {
		return uniqueViolation(table + "_pkey")
	}
	items[row.ID] = row
	return nil
}

func (m *memStore) ListStatusItems(_ context.Context, reportIDs []string) ([]store.ReportItemRow, error) {
	return m.listItems(m.state.statusItems, reportIDs), nil
}

func (m *memStore) DeleteStatusItemsByReport(_ context.Context, reportID string) error {
	m.deleteItemsByReport(m.state.statusItems, reportID)
	return nil
}

func (m *memStore) InsertStatusItem(_ context.Context, row store.ReportItemRow) error {
	return m.insertItem(m.state.statusItems, row, "report_status_items")
}

func (m *memStore) ListChallengeItems(_ context.Context, reportIDs []string) ([]store.ReportItemRow, error) {
	return m.listItems(m.state.challenges, reportIDs), nil
}

func (m *memStore) DeleteChallengeItemsByReport(_ context.Context, reportID string) error {
	m.deleteItemsByReport(m.state.challenges, reportID)
	return nil
}

func (m *memStore) InsertChallengeItem(_ context.Context, row store.ReportItemRow) error {
	return m.insertItem(m.state.challenges, row, "report_challenge_items")
}

func (m *memStore) ListNextSteps(_ context.Context, reportIDs []string) ([]store.ReportItemRow, error) {
	return m.listItems(m.state.nextSteps, reportIDs), nil
}

func (m *memStore) DeleteNextStepsByReport(_ context.Context, reportID string) error {
	m.deleteItemsByReport(m.state.nextSteps, reportID)
	return nil
}

func (m *memStore) InsertNextStep(_ context.Context, row store.ReportItemRow) error {
	return m.insertItem(m.state.nextSteps, row, "report_next_step_items")
}

func (m *memStore) ListTableRows(_ context.Context, reportIDs []string) ([]store.TableRowRow, error) {
	wanted := toSet(reportIDs)
	var out []store.TableRowRow
	for _, row := range m.state.tableRows {
		if wanted[row.ReportID] {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memStore) DeleteTableRowsByReport(_ context.Context, reportID string) error {
	for id, row := range m.state.tableRows {
		if row.ReportID == reportID {
			delete(m.state.tableRows, id)
		}
	}
	return nil
}

func (m *memStore) InsertTableRow(_ context.Context, row store.TableRowRow) error {
	if _, exists := m.state.tableRows[row.ID]; exists {
		return uniqueViolation("report_table_rows_pkey")
	}
	m.state.tableRows[row.ID] = row
	return nil
}

func (m *memStore) ListRisks(_ context.Context, reportIDs []string) ([]store.RiskRow, error) {
	wanted := toSet(reportIDs)
	var out []store.RiskRow
	for _, row := range m.state.risks {
		if wanted[row.ReportID] {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memStore) DeleteRisksByReport(_ context.Context, reportID string) error {
	for id, row := range m.state.risks {
		if row.ReportID == reportID {
			delete(m.state.risks, id)
		}
	}
	return nil
}

func (m *memStore) InsertRisk(_ context.Context, row store.RiskRow) error {
	if _, exists := m.state.risks[row.ID]; exists {
		return uniqueViolation("report_risks_pkey")
	}
	m.state.risks[row.ID] = row
	return nil
}

func (m *memStore) ListPhases(_ context.Context, reportIDs []string) ([]store.PhaseRow, error) {
	wanted := toSet(reportIDs)
	var out []store.PhaseRow
	for _, row := range m.state.phases {
		if wanted[row.ReportID] {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memStore) DeletePhasesByReport(_ context.Context, reportID string) error {
	for id, row := range m.state.phases {
		if row.ReportID == reportID {
			delete(m.state.phases, id)
		}
	}
	return nil
}

func (m *memStore) InsertPhase(_ context.Context, row store.PhaseRow) error {
	if _, exists := m.state.phases[row.ID]; exists {
		return uniqueViolation("report_phases_pkey")
	}
	m.state.phases[row.ID] = row
	return nil
}

func (m *memStore) ListMilestones(_ context.Context, reportIDs []string) ([]store.MilestoneRow, error) {
	wanted := toSet(reportIDs)
	var out []store.MilestoneRow
	for _, row := range m.state.milestones {
		if wanted[row.ReportID] {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) DeleteMilestonesByReport(_ context.Context, reportID string) error {
	for id, row := range m.state.milestones {
		if row.ReportID == reportID {
			delete(m.state.milestones, id)
		}
	}
	return nil
}

func (m *memStore) InsertMilestone(_ context.Context, row store.MilestoneRow) error {
	if err := m.fail("InsertMilestone"); err != nil {
		return err
	}
	if _, exists := m.state.milestones[row.ID]; exists {
		return uniqueViolation("report_milestones_pkey")
	}
	m.state.milestones[row.ID] = row
	return nil
}

func (m *memStore) ListDeliverables(_ context.Context, reportIDs []string) ([]store.DeliverableRow, error) {
	wanted := toSet(reportIDs)
	var out []store.DeliverableRow
	for _, row := range m.state.delivs {
		if wanted[row.ReportID] {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memStore) DeleteDeliverablesByReport(_ context.Context, reportID string) error {
	for id, row := range m.state.delivs {
		if row.ReportID == reportID {
			delete(m.state.delivs, id)
		}
	}
	for id, row := range m.state.checklist {
		if row.ReportID == reportID {
			delete(m.state.checklist, id)
		}
	}
	return nil
}

func (m *memStore) InsertDeliverable(_ context.Context, row store.DeliverableRow) error {
	if _, exists := m.state.delivs[row.ID]; exists {
		return uniqueViolation("report_deliverables_pkey")
	}
	m.state.delivs[row.ID] = row
	return nil
}

func (m *memStore) ListChecklistItems(_ context.Context, reportIDs []string) ([]store.ChecklistItemRow, error) {
	wanted := toSet(reportIDs)
	var out []store.ChecklistItemRow
	for _, row := range m.state.checklist {
		if wanted[row.ReportID] {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memStore) InsertChecklistItem(_ context.Context, row store.ChecklistItemRow) error {
	if _, exists := m.state.checklist[row.ID]; exists {
		return uniqueViolation("deliverable_checklist_items_pkey")
	}
	m.state.checklist[row.ID] = row
	return nil
}

func (m *memStore) ListKanbanTasks(_ context.Context, reportIDs []string) ([]store.KanbanTaskRow, error) {
	wanted := toSet(reportIDs)
	var out []store.KanbanTaskRow
	for _, row := range m.state.kanban {
		if wanted[row.ReportID] {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memStore) DeleteKanbanTasksByReport(_ context.Context, reportID string) error {
	for id, row := range m.state.kanban {
		if row.ReportID == reportID {
			delete(m.state.kanban, id)
		}
	}
	return nil
}

func (m *memStore) InsertKanbanTask(_ context.Context, row store.KanbanTaskRow) error {
	if _, exists := m.state.kanban[row.ID]; exists {
		return uniqueViolation("report_kanban_tasks_pkey")
	}
	m.state.kanban[row.ID] = row
	return nil
}

func toSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

type memRunner struct {
	state  *memState
	failOn map[string]error
}

func (r *memRunner) Store() Store {
	return &memStore{state: r.state, failOn: r.failOn}
}

func (r *memRunner) InTx(_ context.Context, fn func(Store) error) error {
	staged := r.state.clone()
	if err := fn(&memStore{state: staged, failOn: r.failOn}); err != nil {
		return err
	}
	*r.state = *staged
	return nil
}
