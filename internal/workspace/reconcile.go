package workspace

import (
	"context"
	"strings"

	"reportdeck/api/internal/rbac"
	"reportdeck/api/internal/store"
)

// reconciler carries the state of one write: the open-transaction store,
// the resolved caller, the persisted baseline, the (cloned) desired tree
// and the id bookkeeping. It lives for exactly one Engine.WriteWorkspace
// call.
type reconciler struct {
	st       Store
	identity Identity
	baseline *Snapshot
	desired  *Snapshot
	alloc    *Allocator
	editable map[string]bool

	baselineEmployees  map[string]Employee // by id
	employeesByEmail   map[string]string   // folded email -> id
	reconciledEmployee map[string]bool     // ids written or known this pass
}

// reconcile drives the whole write path inside the caller's transaction.
// Any returned error aborts the transaction; storage is untouched.
func (e *Engine) reconcile(ctx context.Context, st Store, desired *Snapshot, identity Identity) error {
	baseline, err := loadSnapshot(ctx, st, identity.WorkspaceID)
	if err != nil {
		return err
	}

	r := &reconciler{
		st:       st,
		identity: identity,
		baseline: baseline,
		desired:  desired.Clone(),
		alloc:    NewAllocator(e.newID),
	}
	r.seedAllocator()
	r.indexBaseline()
	r.assignProjectIDs()

	r.editable = editableProjects(baseline, identity)
	if e.AllowLeadSelfPromotion {
		applyLeadPromotionPolicy(r.desired, identity, r.editable)
	}

	if err := r.reconcileEmployees(ctx); err != nil {
		return err
	}
	for i := range r.desired.Projects {
		p := &r.desired.Projects[i]
		if !r.writable(p.ID) {
			continue
		}
		if err := r.reconcileProject(ctx, p); err != nil {
			return err
		}
	}
	if err := r.reconcileSettings(ctx); err != nil {
		return err
	}
	return r.st.BumpRevision(ctx, identity.WorkspaceID)
}

// seedAllocator reserves every id already persisted so fresh allocations
// can never collide with them in-process.
func (r *reconciler) seedAllocator() {
	for _, e := range r.baseline.Employees {
		r.alloc.Reserve(e.ID)
	}
	for _, p := range r.baseline.Projects {
		r.alloc.Reserve(p.ID)
		for _, m := range p.Members {
			r.alloc.Reserve(m.ID)
			for _, t := range m.TimeEntries {
				r.alloc.Reserve(t.ID)
			}
		}
		for _, rep := range p.Reports {
			r.alloc.Reserve(rep.ID)
			for _, id := range reportChildIDs(rep) {
				r.alloc.Reserve(id)
			}
		}
	}
}

func (r *reconciler) indexBaseline() {
	r.baselineEmployees = make(map[string]Employee, len(r.baseline.Employees))
	r.employeesByEmail = make(map[string]string, len(r.baseline.Employees))
	r.reconciledEmployee = make(map[string]bool)
	for _, e := range r.baseline.Employees {
		r.baselineEmployees[e.ID] = e
		r.employeesByEmail[foldEmail(e.Email)] = e.ID
	}
}

// assignProjectIDs gives every payload project a definitive id before
// authorization and employee scoping key off of it. Existing ids pass
// through untouched; new projects get their candidate id when it is
// free, a fresh one otherwise.
func (r *reconciler) assignProjectIDs() {
	existing := make(map[string]bool, len(r.baseline.Projects))
	for _, p := range r.baseline.Projects {
		existing[p.ID] = true
	}
	for i := range r.desired.Projects {
		p := &r.desired.Projects[i]
		if existing[p.ID] {
			continue
		}
		p.ID = r.alloc.EnsureStableID(p.ID)
	}
}

func (r *reconciler) writable(projectID string) bool {
	return r.identity.Role == rbac.RoleAdmin || r.editable[projectID]
}

func (r *reconciler) reconcileEmployees(ctx context.Context) error {
	globalWrite := r.identity.Role == rbac.RoleAdmin

	referenced := make(map[string]bool)
	for _, p := range r.desired.Projects {
		if !r.writable(p.ID) {
			continue
		}
		for _, m := range p.Members {
			referenced[m.EmployeeID] = true
		}
	}

	seenEmails := make(map[string]string)
	remap := make(map[string]string)
	for i := range r.desired.Employees {
		emp := &r.desired.Employees[i]
		payloadID := emp.ID

		if emp.Name == "" || emp.Email == "" {
			return errInvalid("employee requires name and email")
		}
		if emp.WeeklyCapacity < 0 {
			return errInvalid("employee %s: weekly capacity must not be negative", emp.Email)
		}

		// Match the persisted row by id first, then by email so renamed
		// payload entries still land on the existing employee.
		existing, known := r.baselineEmployees[emp.ID]
		if !known {
			if matchedID, ok := r.employeesByEmail[foldEmail(emp.Email)]; ok {
				existing, known = r.baselineEmployees[matchedID], true
				emp.ID = matchedID
			}
		}

		if !globalWrite && !referenced[payloadID] {
			continue
		}

		if !known {
			emp.ID = r.alloc.EnsureStableID(emp.ID)
		}
		if payloadID != "" && payloadID != emp.ID {
			remap[payloadID] = emp.ID
		}

		if prior, dup := seenEmails[foldEmail(emp.Email)]; dup && prior != emp.ID {
			return errConflict("duplicate employee email %s", emp.Email)
		}
		seenEmails[foldEmail(emp.Email)] = emp.ID

		if known && emp.Sync == (EmployeeSync{}) {
			// Payload did not override sync metadata; keep what is stored.
			emp.Sync = existing.Sync
		}

		if err := r.upsertEmployee(ctx, *emp); err != nil {
			return err
		}
		r.reconciledEmployee[emp.ID] = true
	}

	// Member rows in the payload may still point at an employee id that
	// was remapped above (email match or collision); repair them.
	if len(remap) > 0 {
		for i := range r.desired.Projects {
			p := &r.desired.Projects[i]
			for j := range p.Members {
				if mapped, ok := remap[p.Members[j].EmployeeID]; ok {
					p.Members[j].EmployeeID = mapped
				}
			}
		}
	}
	return nil
}

func (r *reconciler) upsertEmployee(ctx context.Context, emp Employee) error {
	row := store.EmployeeRow{
		ID:          emp.ID,
		WorkspaceID: r.identity.WorkspaceID,
		Name:        emp.Name,
		Email:       emp.Email,
		Location:    emp.Location,
		// Legacy columns mirror the canonical value on every write.
		Office:         emp.Location,
		Department:     emp.Location,
		WeeklyCapacity: emp.WeeklyCapacity,
		ExternalID:     emp.Sync.ExternalID,
		JobTitle:       emp.Sync.JobTitle,
		SyncEnabled:    emp.Sync.Enabled,
		LastSyncedAt:   emp.Sync.LastSyncedAt,
	}
	if err := r.st.UpsertEmployee(ctx, row); err != nil {
		if store.IsUniqueViolation(err) {
			return errConflict("employee email %s already in use", emp.Email)
		}
		return err
	}
	return nil
}

func (r *reconciler) reconcileProject(ctx context.Context, p *Project) error {
	if p.Config.Name == "" {
		return errInvalid("project %s requires a name", p.ID)
	}
	status := p.Status
	if status == "" {
		status = StatusActive
	}
	switch status {
	case StatusActive, StatusCompleted, StatusOnHold:
	default:
		return errInvalid("project %s: unknown status %q", p.ID, p.Status)
	}

	if err := r.st.UpsertProject(ctx, store.ProjectRow{
		ID:           p.ID,
		WorkspaceID:  r.identity.WorkspaceID,
		Name:         p.Config.Name,
		StartDate:    p.Config.StartDate,
		EndDate:      p.Config.EndDate,
		Goal:         p.Config.Goal,
		BusinessCase: p.Config.BusinessCase,
		Budget:       p.Config.Budget,
		Status:       string(status),
	}); err != nil {
		return err
	}

	var base *Project
	for i := range r.baseline.Projects {
		if r.baseline.Projects[i].ID == p.ID {
			base = &r.baseline.Projects[i]
			break
		}
	}

	if err := r.reconcileMembers(ctx, p, base); err != nil {
		return err
	}
	return r.reconcileReports(ctx, p, base)
}

// reconcileMembers fully replaces the project's member list: absent
// members are deleted, present ones upserted, and each member's time
// entries are rewritten wholesale rather than diffed.
func (r *reconciler) reconcileMembers(ctx context.Context, p *Project, base *Project) error {
	baseMembers := make(map[string]Member)
	if base != nil {
		for _, m := range base.Members {
			baseMembers[m.ID] = m
		}
	}

	kept := make(map[string]bool, len(p.Members))
	for i := range p.Members {
		m := &p.Members[i]

		if m.EmployeeID == "" {
			return errInvalid("project %s: member without employee reference", p.ID)
		}
		if !r.employeeExists(m.EmployeeID) {
			return errNotFound("employee %s not found for project %s", m.EmployeeID, p.ID)
		}
		if m.Group == "" {
			m.Group = GroupCore
		}
		switch m.Group {
		case GroupCore, GroupExtended, GroupExternal:
		default:
			return errInvalid("project %s: unknown member group %q", p.ID, m.Group)
		}

		if _, known := baseMembers[m.ID]; !known {
			m.ID = r.alloc.EnsureStableID(m.ID)
		}
		kept[m.ID] = true

		if err := r.st.UpsertMember(ctx, store.MemberRow{
			ID:            m.ID,
			ProjectID:     p.ID,
			EmployeeID:    m.EmployeeID,
			Role:          m.Role,
			MemberGroup:   string(m.Group),
			IsProjectLead: m.IsProjectLead,
		}); err != nil {
			return err
		}

		if err := r.st.DeleteTimeEntriesByMember(ctx, m.ID); err != nil {
			return err
		}
		for _, entry := range m.TimeEntries {
			if entry.Week == "" {
				return errInvalid("project %s: time entry without week", p.ID)
			}
			id := r.alloc.EnsureStableID(entry.ID)
			memberID := m.ID
			week := entry.Week
			hours := entry.Hours
			if _, err := r.insertWithRetry(ctx, id, func(id string) error {
				return r.st.InsertTimeEntry(ctx, store.TimeEntryRow{ID: id, MemberID: memberID, Week: week, Hours: hours})
			}); err != nil {
				return err
			}
		}
	}

	for id := range baseMembers {
		if kept[id] {
			continue
		}
		if err := r.st.DeleteTimeEntriesByMember(ctx, id); err != nil {
			return err
		}
		if err := r.st.DeleteMember(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *reconciler) employeeExists(employeeID string) bool {
	if r.reconciledEmployee[employeeID] {
		return true
	}
	_, ok := r.baselineEmployees[employeeID]
	return ok
}

// reconcileReports fully replaces the project's report list. Reports are
// matched to storage by weekKey so their ids survive, and every one of
// the nine sub-collections is rewritten as an arena keyed by previously
// seen child ids: a known id is kept, anything else gets a fresh slot.
func (r *reconciler) reconcileReports(ctx context.Context, p *Project, base *Project) error {
	baseByWeek := make(map[string]Report)
	if base != nil {
		for _, rep := range base.Reports {
			baseByWeek[rep.WeekKey] = rep
		}
	}

	seenWeeks := make(map[string]bool, len(p.Reports))
	for i := range p.Reports {
		rep := &p.Reports[i]
		if rep.WeekKey == "" {
			return errInvalid("project %s: report without week key", p.ID)
		}
		if seenWeeks[rep.WeekKey] {
			return errInvalid("project %s: duplicate report week %s", p.ID, rep.WeekKey)
		}
		seenWeeks[rep.WeekKey] = true

		existing, known := baseByWeek[rep.WeekKey]
		if known {
			rep.ID = existing.ID
		} else {
			rep.ID = r.alloc.EnsureStableID(rep.ID)
		}

		if err := r.st.UpsertReport(ctx, store.ReportRow{ID: rep.ID, ProjectID: p.ID, WeekKey: rep.WeekKey}); err != nil {
			if store.IsUniqueViolation(err) {
				return errConflict("project %s: report for week %s already exists", p.ID, rep.WeekKey)
			}
			return err
		}

		knownIDs := make(map[string]bool)
		if known {
			for _, id := range reportChildIDs(existing) {
				knownIDs[id] = true
			}
		}
		if err := r.reconcileReportState(ctx, rep, knownIDs); err != nil {
			return err
		}
	}

	for week, rep := range baseByWeek {
		if seenWeeks[week] {
			continue
		}
		if err := r.st.DeleteReport(ctx, rep.ID); err != nil {
			return err
		}
	}
	return nil
}

// childID keeps a candidate id only when the report already owned it;
// everything else is a genuinely new entry and gets a fresh slot.
func (r *reconciler) childID(candidate string, known map[string]bool) string {
	if candidate != "" && known[candidate] {
		return candidate
	}
	return r.alloc.Fresh()
}

func (r *reconciler) reconcileReportState(ctx context.Context, rep *Report, known map[string]bool) error {
	reportID := rep.ID

	if err := r.st.DeleteStatusItemsByReport(ctx, reportID); err != nil {
		return err
	}
	for i := range rep.State.StatusItems {
		item := &rep.State.StatusItems[i]
		id, err := r.insertWithRetry(ctx, r.childID(item.ID, known), func(id string) error {
			return r.st.InsertStatusItem(ctx, store.ReportItemRow{ID: id, ReportID: reportID, Text: item.Text, Position: item.Position})
		})
		if err != nil {
			return err
		}
		item.ID = id
	}

	if err := r.st.DeleteChallengeItemsByReport(ctx, reportID); err != nil {
		return err
	}
	for i := range rep.State.ChallengeItems {
		item := &rep.State.ChallengeItems[i]
		id, err := r.insertWithRetry(ctx, r.childID(item.ID, known), func(id string) error {
			return r.st.InsertChallengeItem(ctx, store.ReportItemRow{ID: id, ReportID: reportID, Text: item.Text, Position: item.Position})
		})
		if err != nil {
			return err
		}
		item.ID = id
	}

	if err := r.st.DeleteNextStepsByReport(ctx, reportID); err != nil {
		return err
	}
	for i := range rep.State.NextSteps {
		item := &rep.State.NextSteps[i]
		id, err := r.insertWithRetry(ctx, r.childID(item.ID, known), func(id string) error {
			return r.st.InsertNextStep(ctx, store.ReportItemRow{ID: id, ReportID: reportID, Text: item.Text, Position: item.Position})
		})
		if err != nil {
			return err
		}
		item.ID = id
	}

	if err := r.st.DeleteTableRowsByReport(ctx, reportID); err != nil {
		return err
	}
	for i := range rep.State.TableRows {
		row := &rep.State.TableRows[i]
		id, err := r.insertWithRetry(ctx, r.childID(row.ID, known), func(id string) error {
			return r.st.InsertTableRow(ctx, store.TableRowRow{
				ID: id, ReportID: reportID,
				Title: row.Title, Status: row.Status, Comment: row.Comment, Position: row.Position,
			})
		})
		if err != nil {
			return err
		}
		row.ID = id
	}

	if err := r.st.DeleteRisksByReport(ctx, reportID); err != nil {
		return err
	}
	for i := range rep.State.Risks {
		risk := &rep.State.Risks[i]
		id, err := r.insertWithRetry(ctx, r.childID(risk.ID, known), func(id string) error {
			return r.st.InsertRisk(ctx, store.RiskRow{
				ID: id, ReportID: reportID,
				Description: risk.Description, Probability: risk.Probability,
				Impact: risk.Impact, Mitigation: risk.Mitigation, Position: risk.Position,
			})
		})
		if err != nil {
			return err
		}
		risk.ID = id
	}

	if err := r.st.DeletePhasesByReport(ctx, reportID); err != nil {
		return err
	}
	for i := range rep.State.Phases {
		phase := &rep.State.Phases[i]
		id, err := r.insertWithRetry(ctx, r.childID(phase.ID, known), func(id string) error {
			return r.st.InsertPhase(ctx, store.PhaseRow{
				ID: id, ReportID: reportID,
				Name: phase.Name, StartDate: phase.StartDate, EndDate: phase.EndDate, Position: phase.Position,
			})
		})
		if err != nil {
			return err
		}
		phase.ID = id
	}

	if err := r.st.DeleteMilestonesByReport(ctx, reportID); err != nil {
		return err
	}
	for i := range rep.State.Milestones {
		ms := &rep.State.Milestones[i]
		id, err := r.insertWithRetry(ctx, r.childID(ms.ID, known), func(id string) error {
			return r.st.InsertMilestone(ctx, store.MilestoneRow{
				ID: id, ReportID: reportID,
				Text: ms.Text, DueDate: ms.DueDate, Done: ms.Done, Position: ms.Position,
			})
		})
		if err != nil {
			return err
		}
		ms.ID = id
	}

	if err := r.st.DeleteDeliverablesByReport(ctx, reportID); err != nil {
		return err
	}
	for i := range rep.State.Deliverables {
		d := &rep.State.Deliverables[i]
		id, err := r.insertWithRetry(ctx, r.childID(d.ID, known), func(id string) error {
			return r.st.InsertDeliverable(ctx, store.DeliverableRow{ID: id, ReportID: reportID, Title: d.Title, Position: d.Position})
		})
		if err != nil {
			return err
		}
		d.ID = id
		for j := range d.Checklist {
			item := &d.Checklist[j]
			itemID, err := r.insertWithRetry(ctx, r.childID(item.ID, known), func(id string) error {
				return r.st.InsertChecklistItem(ctx, store.ChecklistItemRow{
					ID: id, DeliverableID: d.ID, ReportID: reportID,
					Text: item.Text, Done: item.Done, Position: item.Position,
				})
			})
			if err != nil {
				return err
			}
			item.ID = itemID
		}
	}

	if err := r.st.DeleteKanbanTasksByReport(ctx, reportID); err != nil {
		return err
	}
	for i := range rep.State.KanbanTasks {
		task := &rep.State.KanbanTasks[i]
		id, err := r.insertWithRetry(ctx, r.childID(task.ID, known), func(id string) error {
			return r.st.InsertKanbanTask(ctx, store.KanbanTaskRow{
				ID: id, ReportID: reportID,
				Title: task.Title, Lane: task.Lane, AssigneeID: task.AssigneeID, Position: task.Position,
			})
		})
		if err != nil {
			return err
		}
		task.ID = id
	}

	return nil
}

func (r *reconciler) reconcileSettings(ctx context.Context) error {
	if r.desired.Settings == nil {
		return nil
	}
	current, ok, err := r.st.GetSettings(ctx, r.identity.WorkspaceID)
	if err != nil {
		return err
	}
	row := store.SettingsRow{
		WorkspaceID:  r.identity.WorkspaceID,
		Name:         r.desired.Settings.Name,
		HoursPerWeek: r.desired.Settings.HoursPerWeek,
	}
	if ok {
		row.Revision = current.Revision
	}
	return r.st.UpsertSettings(ctx, row)
}

// insertWithRetry runs insert under id; on a unique violation the id is
// released, regenerated and the insert retried, up to insertAttempts
// total tries before the failure escalates to Conflict.
func (r *reconciler) insertWithRetry(ctx context.Context, id string, insert func(id string) error) (string, error) {
	for attempt := 1; ; attempt++ {
		err := insert(id)
		if err == nil {
			return id, nil
		}
		if !store.IsUniqueViolation(err) {
			return "", err
		}
		if attempt >= insertAttempts {
			return "", errConflict("id collision not resolved after %d attempts", insertAttempts)
		}
		r.alloc.Release(id)
		id = r.alloc.Fresh()
	}
}

func reportChildIDs(rep Report) []string {
	var ids []string
	for _, item := range rep.State.StatusItems {
		ids = append(ids, item.ID)
	}
	for _, item := range rep.State.ChallengeItems {
		ids = append(ids, item.ID)
	}
	for _, item := range rep.State.NextSteps {
		ids = append(ids, item.ID)
	}
	for _, row := range rep.State.TableRows {
		ids = append(ids, row.ID)
	}
	for _, risk := range rep.State.Risks {
		ids = append(ids, risk.ID)
	}
	for _, phase := range rep.State.Phases {
		ids = append(ids, phase.ID)
	}
	for _, ms := range rep.State.Milestones {
		ids = append(ids, ms.ID)
	}
	for _, d := range rep.State.Deliverables {
		ids = append(ids, d.ID)
		for _, item := range d.Checklist {
			ids = append(ids, item.ID)
		}
	}
	for _, task := range rep.State.KanbanTasks {
		ids = append(ids, task.ID)
	}
	return ids
}

func foldEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
