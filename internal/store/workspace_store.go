package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// WorkspaceStore executes the workspace engine's row-level access against
// a single Querier. Bind it to *sql.DB for autocommit reads or to an open
// *sql.Tx so a whole reconciliation shares one transaction.
type WorkspaceStore struct {
	q Querier
}

func NewWorkspaceStore(q Querier) *WorkspaceStore {
	return &WorkspaceStore{q: q}
}

var ErrAccountNotFound = errors.New("account not found")

// ResolveAccount loads the account and its employee linkage, creating
// the linkage row when an employee shares the account's email.
func (s *WorkspaceStore) ResolveAccount(ctx context.Context, accountID string) (Account, string, error) {
	var account Account
	err := s.q.QueryRowContext(ctx, `
		SELECT id, workspace_id, email, display_name, role
		FROM accounts
		WHERE id=$1
	`, accountID).Scan(&account.ID, &account.WorkspaceID, &account.Email, &account.DisplayName, &account.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, "", ErrAccountNotFound
	}
	if err != nil {
		return Account{}, "", fmt.Errorf("lookup account: %w", err)
	}

	var employeeID string
	err = s.q.QueryRowContext(ctx, `SELECT employee_id FROM account_links WHERE account_id=$1`, account.ID).Scan(&employeeID)
	if err == nil {
		return account, employeeID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Account{}, "", fmt.Errorf("lookup account link: %w", err)
	}

	err = s.q.QueryRowContext(ctx, `
		SELECT id FROM employees
		WHERE workspace_id=$1 AND LOWER(email)=LOWER($2)
	`, account.WorkspaceID, account.Email).Scan(&employeeID)
	if errors.Is(err, sql.ErrNoRows) {
		return account, "", nil
	}
	if err != nil {
		return Account{}, "", fmt.Errorf("match employee by email: %w", err)
	}

	if _, err := s.q.ExecContext(ctx, `
		INSERT INTO account_links (account_id, employee_id)
		VALUES ($1, $2)
		ON CONFLICT (account_id) DO NOTHING
	`, account.ID, employeeID); err != nil {
		return Account{}, "", fmt.Errorf("link account to employee: %w", err)
	}
	return account, employeeID, nil
}

func (s *WorkspaceStore) GetSettings(ctx context.Context, workspaceID string) (SettingsRow, bool, error) {
	var row SettingsRow
	err := s.q.QueryRowContext(ctx, `
		SELECT workspace_id, name, hours_per_week, revision
		FROM workspace_settings
		WHERE workspace_id=$1
	`, workspaceID).Scan(&row.WorkspaceID, &row.Name, &row.HoursPerWeek, &row.Revision)
	if errors.Is(err, sql.ErrNoRows) {
		return SettingsRow{}, false, nil
	}
	if err != nil {
		return SettingsRow{}, false, fmt.Errorf("get settings: %w", err)
	}
	return row, true, nil
}

func (s *WorkspaceStore) UpsertSettings(ctx context.Context, row SettingsRow) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO workspace_settings (workspace_id, name, hours_per_week, revision)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workspace_id)
		DO UPDATE SET name=EXCLUDED.name, hours_per_week=EXCLUDED.hours_per_week
	`, row.WorkspaceID, row.Name, row.HoursPerWeek, row.Revision)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) BumpRevision(ctx context.Context, workspaceID string) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE workspace_settings SET revision=revision+1 WHERE workspace_id=$1
	`, workspaceID)
	if err != nil {
		return fmt.Errorf("bump revision: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) ListEmployees(ctx context.Context, workspaceID string) ([]EmployeeRow, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, workspace_id, name, email, location, office, department,
			weekly_capacity, COALESCE(external_id, ''), COALESCE(job_title, ''), sync_enabled, last_synced_at
		FROM employees
		WHERE workspace_id=$1
		ORDER BY name ASC, id ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	items := make([]EmployeeRow, 0)
	for rows.Next() {
		var item EmployeeRow
		var syncedAt sql.NullTime
		if err := rows.Scan(
			&item.ID,
			&item.WorkspaceID,
			&item.Name,
			&item.Email,
			&item.Location,
			&item.Office,
			&item.Department,
			&item.WeeklyCapacity,
			&item.ExternalID,
			&item.JobTitle,
			&item.SyncEnabled,
			&syncedAt,
		); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		if syncedAt.Valid {
			at := syncedAt.Time
			item.LastSyncedAt = &at
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return items, nil
}

func (s *WorkspaceStore) UpsertEmployee(ctx context.Context, row EmployeeRow) error {
	var syncedAt sql.NullTime
	if row.LastSyncedAt != nil {
		syncedAt = sql.NullTime{Time: *row.LastSyncedAt, Valid: true}
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO employees (id, workspace_id, name, email, location, office, department,
			weekly_capacity, external_id, job_title, sync_enabled, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name=EXCLUDED.name,
			email=EXCLUDED.email,
			location=EXCLUDED.location,
			office=EXCLUDED.office,
			department=EXCLUDED.department,
			weekly_capacity=EXCLUDED.weekly_capacity,
			external_id=EXCLUDED.external_id,
			job_title=EXCLUDED.job_title,
			sync_enabled=EXCLUDED.sync_enabled,
			last_synced_at=EXCLUDED.last_synced_at,
			updated_at=NOW()
	`, row.ID, row.WorkspaceID, row.Name, row.Email, row.Location, row.Office, row.Department,
		row.WeeklyCapacity, row.ExternalID, row.JobTitle, row.SyncEnabled, syncedAt)
	if err != nil {
		return fmt.Errorf("upsert employee: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) ListProjects(ctx context.Context, workspaceID string) ([]ProjectRow, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, workspace_id, name, COALESCE(start_date, ''), COALESCE(end_date, ''),
			COALESCE(goal, ''), COALESCE(business_case, ''), budget, status
		FROM projects
		WHERE workspace_id=$1
		ORDER BY name ASC, id ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]ProjectRow, 0)
	for rows.Next() {
		var item ProjectRow
		if err := rows.Scan(
			&item.ID,
			&item.WorkspaceID,
			&item.Name,
			&item.StartDate,
			&item.EndDate,
			&item.Goal,
			&item.BusinessCase,
			&item.Budget,
			&item.Status,
		); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *WorkspaceStore) UpsertProject(ctx context.Context, row ProjectRow) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO projects (id, workspace_id, name, start_date, end_date, goal, business_case, budget, status)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name=EXCLUDED.name,
			start_date=EXCLUDED.start_date,
			end_date=EXCLUDED.end_date,
			goal=EXCLUDED.goal,
			business_case=EXCLUDED.business_case,
			budget=EXCLUDED.budget,
			status=EXCLUDED.status,
			updated_at=NOW()
	`, row.ID, row.WorkspaceID, row.Name, row.StartDate, row.EndDate, row.Goal, row.BusinessCase, row.Budget, row.Status)
	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) ListMembers(ctx context.Context, projectIDs []string) ([]MemberRow, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, project_id, employee_id, role, member_group, is_project_lead
		FROM project_members
		WHERE project_id = ANY($1)
		ORDER BY project_id ASC, id ASC
	`, projectIDs)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	items := make([]MemberRow, 0)
	for rows.Next() {
		var item MemberRow
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.EmployeeID, &item.Role, &item.MemberGroup, &item.IsProjectLead); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return items, nil
}

func (s *WorkspaceStore) UpsertMember(ctx context.Context, row MemberRow) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO project_members (id, project_id, employee_id, role, member_group, is_project_lead)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			employee_id=EXCLUDED.employee_id,
			role=EXCLUDED.role,
			member_group=EXCLUDED.member_group,
			is_project_lead=EXCLUDED.is_project_lead
	`, row.ID, row.ProjectID, row.EmployeeID, row.Role, row.MemberGroup, row.IsProjectLead)
	if err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) DeleteMember(ctx context.Context, memberID string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM project_members WHERE id=$1`, memberID); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) ListTimeEntries(ctx context.Context, memberIDs []string) ([]TimeEntryRow, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, member_id, week, hours
		FROM time_entries
		WHERE member_id = ANY($1)
		ORDER BY member_id ASC, week ASC
	`, memberIDs)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	items := make([]TimeEntryRow, 0)
	for rows.Next() {
		var item TimeEntryRow
		if err := rows.Scan(&item.ID, &item.MemberID, &item.Week, &item.Hours); err != nil {
			return nil, fmt.Errorf("scan time entry: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate time entries: %w", err)
	}
	return items, nil
}

func (s *WorkspaceStore) DeleteTimeEntriesByMember(ctx context.Context, memberID string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM time_entries WHERE member_id=$1`, memberID); err != nil {
		return fmt.Errorf("delete time entries: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) InsertTimeEntry(ctx context.Context, row TimeEntryRow) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO time_entries (id, member_id, week, hours)
		VALUES ($1, $2, $3, $4)
	`, row.ID, row.MemberID, row.Week, row.Hours)
	if err != nil {
		return fmt.Errorf("insert time entry: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) ListReports(ctx context.Context, projectIDs []string) ([]ReportRow, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, project_id, week_key
		FROM reports
		WHERE project_id = ANY($1)
		ORDER BY project_id ASC, week_key DESC
	`, projectIDs)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	items := make([]ReportRow, 0)
	for rows.Next() {
		var item ReportRow
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.WeekKey); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return items, nil
}

func (s *WorkspaceStore) UpsertReport(ctx context.Context, row ReportRow) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO reports (id, project_id, week_key)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET week_key=EXCLUDED.week_key, updated_at=NOW()
	`, row.ID, row.ProjectID, row.WeekKey)
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) DeleteReport(ctx context.Context, reportID string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM reports WHERE id=$1`, reportID); err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) listReportItems(ctx context.Context, table string, reportIDs []string) ([]ReportItemRow, error) {
	if len(reportIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT id, report_id, body, position
		FROM %s
		WHERE report_id = ANY($1)
		ORDER BY report_id ASC, position ASC, id ASC
	`, table)
	rows, err := s.q.QueryContext(ctx, query, reportIDs)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	items := make([]ReportItemRow, 0)
	for rows.Next() {
		var item ReportItemRow
		if err := rows.Scan(&item.ID, &item.ReportID, &item.Text, &item.Position); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return items, nil
}

func (s *WorkspaceStore) deleteByReport(ctx context.Context, table, reportID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE report_id=$1`, table)
	if _, err := s.q.ExecContext(ctx, query, reportID); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

func (s *WorkspaceStore) insertReportItem(ctx context.Context, table string, row ReportItemRow) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, report_id, body, position)
		VALUES ($1, $2, $3, $4)
	`, table)
	if _, err := s.q.ExecContext(ctx, query, row.ID, row.ReportID, row.Text, row.Position); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (s *WorkspaceStore) ListStatusItems(ctx context.Context, reportIDs []string) ([]ReportItemRow, error) {
	return s.listReportItems(ctx, "report_status_items", reportIDs)
}

func (s *WorkspaceStore) DeleteStatusItemsByReport(ctx context.Context, reportID string) error {
	return s.deleteByReport(ctx, "report_status_items", reportID)
}

func (s *WorkspaceStore) InsertStatusItem(ctx context.Context, row ReportItemRow) error {
	return s.insertReportItem(ctx, "report_status_items", row)
}

func (s *WorkspaceStore) ListChallengeItems(ctx context.Context, reportIDs []string) ([]ReportItemRow, error) {
	return s.listReportItems(ctx, "report_challenge_items", reportIDs)
}

func (s *WorkspaceStore) DeleteChallengeItemsByReport(ctx context.Context, reportID string) error {
	return s.deleteByReport(ctx, "report_challenge_items", reportID)
}

func (s *WorkspaceStore) InsertChallengeItem(ctx context.Context, row ReportItemRow) error {
	return s.insertReportItem(ctx, "report_challenge_items", row)
}

func (s *WorkspaceStore) ListNextSteps(ctx context.Context, reportIDs []string) ([]ReportItemRow, error) {
	return s.listReportItems(ctx, "report_next_step_items", reportIDs)
}

func (s *WorkspaceStore) DeleteNextStepsByReport(ctx context.Context, reportID string) error {
	return s.deleteByReport(ctx, "report_next_step_items", reportID)
}

func (s *WorkspaceStore) InsertNextStep(ctx context.Context, row ReportItemRow) error {
	return s.insertReportItem(ctx, "report_next_step_items", row)
}

func (s *WorkspaceStore) ListTableRows(ctx context.Context, reportIDs []string) ([]TableRowRow, error) {
	if len(reportIDs) == 0 {
		return nil, nil
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, report_id, title, status, COALESCE(comment, ''), position
		FROM report_table_rows
		WHERE report_id = ANY($1)
		ORDER BY report_id ASC, position ASC, id ASC
	`, reportIDs)
	if err != nil {
		return nil, fmt.Errorf("list table rows: %w", err)
	}
	defer rows.Close()

	items := make([]TableRowRow, 0)
	for rows.Next() {
		var item TableRowRow
		if err := rows.Scan(&item.ID, &item.ReportID, &item.Title, &item.Status, &item.Comment, &item.Position); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}
	return items, nil
}

func (s *WorkspaceStore) DeleteTableRowsByReport(ctx context.Context, reportID string) error {
	return s.deleteByReport(ctx, "report_table_rows", reportID)
}

func (s *WorkspaceStore) InsertTableRow(ctx context.Context, row TableRowRow) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO report_table_rows (id, report_id, title, status, comment, position)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
	`, row.ID, row.ReportID, row.Title, row.Status, row.Comment, row.Position)
	if err != nil {
		return fmt.Errorf("insert table row: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) ListRisks(ctx context.Context, reportIDs []string) ([]RiskRow, error) {
	if len(reportIDs) == 0 {
		return nil, nil
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, report_id, description, probability, impact, COALESCE(mitigation, ''), position
		FROM report_risks
		WHERE report_id = ANY($1)
		ORDER BY report_id ASC, position ASC, id ASC
	`, reportIDs)
	if err != nil {
		return nil, fmt.Errorf("list risks: %w", err)
	}
	defer rows.Close()

	items := make([]RiskRow, 0)
	for rows.Next() {
		var item RiskRow
		if err := rows.Scan(&item.ID, &item.ReportID, &item.Description, &item.Probability, &item.Impact, &item.Mitigation, &item.Position); err != nil {
			return nil, fmt.Errorf("scan risk: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate risks: %w", err)
	}
	return items, nil
}

func (s *WorkspaceStore) DeleteRisksByReport(ctx context.Context, reportID string) error {
	return s.deleteByReport(ctx, "report_risks", reportID)
}

func (s *WorkspaceStore) InsertRisk(ctx context.Context, row RiskRow) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO report_risks (id, report_id, description, probability, impact, mitigation, position)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	`, row.ID, row.ReportID, row.Description, row.Probability, row.Impact, row.Mitigation, row.Position)
	if err != nil {
		return fmt.Errorf("insert risk: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) ListPhases(ctx context.Context, reportIDs []string) ([]PhaseRow, error) {
	if len(reportIDs) == 0 {
		return nil, nil
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, report_id, name, COALESCE(start_date, ''), COALESCE(end_date, ''), position
		FROM report_phases
		WHERE report_id = ANY($1)
		ORDER BY report_id ASC, position ASC, id ASC
	`, reportIDs)
	if err != nil {
		return nil, fmt.Errorf("list phases: %w", err)
	}
	defer rows.Close()

	items := make([]PhaseRow, 0)
	for rows.Next() {
		var item PhaseRow
		if err := rows.Scan(&item.ID, &item.ReportID, &item.Name, &item.StartDate, &item.EndDate, &item.Position); err != nil {
			return nil, fmt.Errorf("scan phase: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate phases: %w", err)
	}
	return items, nil
}

func (s *WorkspaceStore) DeletePhasesByReport(ctx context.Context, reportID string) error {
	return s.deleteByReport(ctx, "report_phases", reportID)
}

func (s *WorkspaceStore) InsertPhase(ctx context.Context, row PhaseRow) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO report_phases (id, report_id, name, start_date, end_date, position)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
	`, row.ID, row.ReportID, row.Name, row.StartDate, row.EndDate, row.Position)
	if err != nil {
		return fmt.Errorf("insert phase: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) ListMilestones(ctx context.Context, reportIDs []string) ([]MilestoneRow, error) {
	if len(reportIDs) == 0 {
		return nil, nil
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, report_id, body, COALESCE(due_date, ''), done, position
		FROM report_milestones
		WHERE report_id = ANY($1)
		ORDER BY report_id ASC, position ASC, id ASC
	`, reportIDs)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	defer rows.Close()

	items := make([]MilestoneRow, 0)
	for rows.Next() {
		var item MilestoneRow
		if err := rows.Scan(&item.ID, &item.ReportID, &item.Text, &item.DueDate, &item.Done, &item.Position); err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate milestones: %w", err)
	}
	return items, nil
}

func (s *WorkspaceStore) DeleteMilestonesByReport(ctx context.Context, reportID string) error {
	return s.deleteByReport(ctx, "report_milestones", reportID)
}

func (s *WorkspaceStore) InsertMilestone(ctx context.Context, row MilestoneRow) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO report_milestones (id, report_id, body, due_date, done, position)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
	`, row.ID, row.ReportID, row.Text, row.DueDate, row.Done, row.Position)
	if err != nil {
		return fmt.Errorf("insert milestone: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) ListDeliverables(ctx context.Context, reportIDs []string) ([]DeliverableRow, error) {
	if len(reportIDs) == 0 {
		return nil, nil
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, report_id, title, position
		FROM report_deliverables
		WHERE report_id = ANY($1)
		ORDER BY report_id ASC, position ASC, id ASC
	`, reportIDs)
	if err != nil {
		return nil, fmt.Errorf("list deliverables: %w", err)
	}
	defer rows.Close()

	items := make([]DeliverableRow, 0)
	for rows.Next() {
		var item DeliverableRow
		if err := rows.Scan(&item.ID, &item.ReportID, &item.Title, &item.Position); err != nil {
			return nil, fmt.Errorf("scan deliverable: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliverables: %w", err)
	}
	return items, nil
}

// DeleteDeliverablesByReport removes the report's deliverables; checklist
// rows go with them via ON DELETE CASCADE.
func (s *WorkspaceStore) DeleteDeliverablesByReport(ctx context.Context, reportID string) error {
	return s.deleteByReport(ctx, "report_deliverables", reportID)
}

func (s *WorkspaceStore) InsertDeliverable(ctx context.Context, row DeliverableRow) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO report_deliverables (id, report_id, title, position)
		VALUES ($1, $2, $3, $4)
	`, row.ID, row.ReportID, row.Title, row.Position)
	if err != nil {
		return fmt.Errorf("insert deliverable: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) ListChecklistItems(ctx context.Context, reportIDs []string) ([]ChecklistItemRow, error) {
	if len(reportIDs) == 0 {
		return nil, nil
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, deliverable_id, report_id, body, done, position
		FROM deliverable_checklist_items
		WHERE report_id = ANY($1)
		ORDER BY deliverable_id ASC, position ASC, id ASC
	`, reportIDs)
	if err != nil {
		return nil, fmt.Errorf("list checklist items: %w", err)
	}
	defer rows.Close()

	items := make([]ChecklistItemRow, 0)
	for rows.Next() {
		var item ChecklistItemRow
		if err := rows.Scan(&item.ID, &item.DeliverableID, &item.ReportID, &item.Text, &item.Done, &item.Position); err != nil {
			return nil, fmt.Errorf("scan checklist item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checklist items: %w", err)
	}
	return items, nil
}

func (s *WorkspaceStore) InsertChecklistItem(ctx context.Context, row ChecklistItemRow) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO deliverable_checklist_items (id, deliverable_id, report_id, body, done, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, row.ID, row.DeliverableID, row.ReportID, row.Text, row.Done, row.Position)
	if err != nil {
		return fmt.Errorf("insert checklist item: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) ListKanbanTasks(ctx context.Context, reportIDs []string) ([]KanbanTaskRow, error) {
	if len(reportIDs) == 0 {
		return nil, nil
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, report_id, title, lane, COALESCE(assignee_id, ''), position
		FROM report_kanban_tasks
		WHERE report_id = ANY($1)
		ORDER BY report_id ASC, lane ASC, position ASC, id ASC
	`, reportIDs)
	if err != nil {
		return nil, fmt.Errorf("list kanban tasks: %w", err)
	}
	defer rows.Close()

	items := make([]KanbanTaskRow, 0)
	for rows.Next() {
		var item KanbanTaskRow
		if err := rows.Scan(&item.ID, &item.ReportID, &item.Title, &item.Lane, &item.AssigneeID, &item.Position); err != nil {
			return nil, fmt.Errorf("scan kanban task: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kanban tasks: %w", err)
	}
	return items, nil
}

func (s *WorkspaceStore) DeleteKanbanTasksByReport(ctx context.Context, reportID string) error {
	return s.deleteByReport(ctx, "report_kanban_tasks", reportID)
}

func (s *WorkspaceStore) InsertKanbanTask(ctx context.Context, row KanbanTaskRow) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO report_kanban_tasks (id, report_id, title, lane, assignee_id, position)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
	`, row.ID, row.ReportID, row.Title, row.Lane, row.AssigneeID, row.Position)
	if err != nil {
		return fmt.Errorf("insert kanban task: %w", err)
	}
	return nil
}

// normalizeEmail is what the employees unique index applies.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
