package workspace

import (
	"context"
	"sort"
)

// loadSnapshot assembles the full nested workspace tree from storage.
// It only needs a Store, so the reconciler can call it on its open
// transaction to establish the diff baseline, and reads can call it on
// the autocommit store. Nothing is cached between calls.
func loadSnapshot(ctx context.Context, st Store, workspaceID string) (*Snapshot, error) {
	employees, err := st.ListEmployees(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	projects, err := st.ListProjects(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	projectIDs := make([]string, 0, len(projects))
	for _, p := range projects {
		projectIDs = append(projectIDs, p.ID)
	}

	members, err := st.ListMembers(ctx, projectIDs)
	if err != nil {
		return nil, err
	}
	memberIDs := make([]string, 0, len(members))
	for _, m := range members {
		memberIDs = append(memberIDs, m.ID)
	}
	timeEntries, err := st.ListTimeEntries(ctx, memberIDs)
	if err != nil {
		return nil, err
	}

	reports, err := st.ListReports(ctx, projectIDs)
	if err != nil {
		return nil, err
	}
	reportIDs := make([]string, 0, len(reports))
	for _, r := range reports {
		reportIDs = append(reportIDs, r.ID)
	}

	statusItems, err := st.ListStatusItems(ctx, reportIDs)
	if err != nil {
		return nil, err
	}
	challengeItems, err := st.ListChallengeItems(ctx, reportIDs)
	if err != nil {
		return nil, err
	}
	nextSteps, err := st.ListNextSteps(ctx, reportIDs)
	if err != nil {
		return nil, err
	}
	tableRows, err := st.ListTableRows(ctx, reportIDs)
	if err != nil {
		return nil, err
	}
	risks, err := st.ListRisks(ctx, reportIDs)
	if err != nil {
		return nil, err
	}
	phases, err := st.ListPhases(ctx, reportIDs)
	if err != nil {
		return nil, err
	}
	milestones, err := st.ListMilestones(ctx, reportIDs)
	if err != nil {
		return nil, err
	}
	deliverables, err := st.ListDeliverables(ctx, reportIDs)
	if err != nil {
		return nil, err
	}
	checklistItems, err := st.ListChecklistItems(ctx, reportIDs)
	if err != nil {
		return nil, err
	}
	kanbanTasks, err := st.ListKanbanTasks(ctx, reportIDs)
	if err != nil {
		return nil, err
	}

	entriesByMember := make(map[string][]TimeEntry)
	for _, row := range timeEntries {
		entriesByMember[row.MemberID] = append(entriesByMember[row.MemberID], TimeEntry{
			ID:    row.ID,
			Week:  row.Week,
			Hours: row.Hours,
		})
	}

	membersByProject := make(map[string][]Member)
	for _, row := range members {
		member := Member{
			ID:            row.ID,
			EmployeeID:    row.EmployeeID,
			Role:          row.Role,
			Group:         MemberGroup(row.MemberGroup),
			IsProjectLead: row.IsProjectLead,
			TimeEntries:   entriesByMember[row.ID],
		}
		if member.TimeEntries == nil {
			member.TimeEntries = []TimeEntry{}
		}
		membersByProject[row.ProjectID] = append(membersByProject[row.ProjectID], member)
	}

	states := make(map[string]*ReportState, len(reports))
	for _, row := range reports {
		states[row.ID] = &ReportState{
			StatusItems:    []ListItem{},
			ChallengeItems: []ListItem{},
			NextSteps:      []ListItem{},
			TableRows:      []TableRow{},
			Risks:          []Risk{},
			Phases:         []Phase{},
			Milestones:     []Milestone{},
			Deliverables:   []Deliverable{},
			KanbanTasks:    []KanbanTask{},
		}
	}
	for _, row := range statusItems {
		if state := states[row.ReportID]; state != nil {
			state.StatusItems = append(state.StatusItems, ListItem{ID: row.ID, Text: row.Text, Position: row.Position})
		}
	}
	for _, row := range challengeItems {
		if state := states[row.ReportID]; state != nil {
			state.ChallengeItems = append(state.ChallengeItems, ListItem{ID: row.ID, Text: row.Text, Position: row.Position})
		}
	}
	for _, row := range nextSteps {
		if state := states[row.ReportID]; state != nil {
			state.NextSteps = append(state.NextSteps, ListItem{ID: row.ID, Text: row.Text, Position: row.Position})
		}
	}
	for _, row := range tableRows {
		if state := states[row.ReportID]; state != nil {
			state.TableRows = append(state.TableRows, TableRow{
				ID:       row.ID,
				Title:    row.Title,
				Status:   row.Status,
				Comment:  row.Comment,
				Position: row.Position,
			})
		}
	}
	for _, row := range risks {
		if state := states[row.ReportID]; state != nil {
			state.Risks = append(state.Risks, Risk{
				ID:          row.ID,
				Description: row.Description,
				Probability: row.Probability,
				Impact:      row.Impact,
				Mitigation:  row.Mitigation,
				Position:    row.Position,
			})
		}
	}
	for _, row := range phases {
		if state := states[row.ReportID]; state != nil {
			state.Phases = append(state.Phases, Phase{
				ID:        row.ID,
				Name:      row.Name,
				StartDate: row.StartDate,
				EndDate:   row.EndDate,
				Position:  row.Position,
			})
		}
	}
	for _, row := range milestones {
		if state := states[row.ReportID]; state != nil {
			state.Milestones = append(state.Milestones, Milestone{
				ID:       row.ID,
				Text:     row.Text,
				DueDate:  row.DueDate,
				Done:     row.Done,
				Position: row.Position,
			})
		}
	}
	checklistByDeliverable := make(map[string][]ChecklistItem)
	for _, row := range checklistItems {
		checklistByDeliverable[row.DeliverableID] = append(checklistByDeliverable[row.DeliverableID], ChecklistItem{
			ID:       row.ID,
			Text:     row.Text,
			Done:     row.Done,
			Position: row.Position,
		})
	}
	for _, row := range deliverables {
		if state := states[row.ReportID]; state != nil {
			checklist := checklistByDeliverable[row.ID]
			if checklist == nil {
				checklist = []ChecklistItem{}
			}
			state.Deliverables = append(state.Deliverables, Deliverable{
				ID:        row.ID,
				Title:     row.Title,
				Position:  row.Position,
				Checklist: checklist,
			})
		}
	}
	for _, row := range kanbanTasks {
		if state := states[row.ReportID]; state != nil {
			state.KanbanTasks = append(state.KanbanTasks, KanbanTask{
				ID:         row.ID,
				Title:      row.Title,
				Lane:       row.Lane,
				AssigneeID: row.AssigneeID,
				Position:   row.Position,
			})
		}
	}

	reportsByProject := make(map[string][]Report)
	for _, row := range reports {
		reportsByProject[row.ProjectID] = append(reportsByProject[row.ProjectID], Report{
			ID:      row.ID,
			WeekKey: row.WeekKey,
			State:   *states[row.ID],
		})
	}

	snapshot := &Snapshot{
		Employees: make([]Employee, 0, len(employees)),
		Projects:  make([]Project, 0, len(projects)),
	}
	for _, row := range employees {
		snapshot.Employees = append(snapshot.Employees, Employee{
			ID:             row.ID,
			Name:           row.Name,
			Email:          row.Email,
			Location:       row.Location,
			WeeklyCapacity: row.WeeklyCapacity,
			Sync: EmployeeSync{
				ExternalID:   row.ExternalID,
				JobTitle:     row.JobTitle,
				Enabled:      row.SyncEnabled,
				LastSyncedAt: row.LastSyncedAt,
			},
		})
	}
	for _, row := range projects {
		projectMembers := membersByProject[row.ID]
		if projectMembers == nil {
			projectMembers = []Member{}
		}
		sortMembers(projectMembers)
		projectReports := reportsByProject[row.ID]
		if projectReports == nil {
			projectReports = []Report{}
		}
		sort.SliceStable(projectReports, func(i, j int) bool {
			return projectReports[i].WeekKey > projectReports[j].WeekKey
		})
		snapshot.Projects = append(snapshot.Projects, Project{
			ID: row.ID,
			Config: ProjectConfig{
				Name:         row.Name,
				StartDate:    row.StartDate,
				EndDate:      row.EndDate,
				Goal:         row.Goal,
				BusinessCase: row.BusinessCase,
				Budget:       row.Budget,
			},
			Status:  ProjectStatus(row.Status),
			Members: projectMembers,
			Reports: projectReports,
		})
	}

	if settings, ok, err := st.GetSettings(ctx, workspaceID); err != nil {
		return nil, err
	} else if ok {
		snapshot.Settings = &Settings{
			Name:         settings.Name,
			HoursPerWeek: settings.HoursPerWeek,
			Revision:     settings.Revision,
		}
	}

	return snapshot, nil
}

var groupRank = map[MemberGroup]int{
	GroupCore:     0,
	GroupExtended: 1,
	GroupExternal: 2,
}

func sortMembers(members []Member) {
	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i], members[j]
		ra, ok := groupRank[a.Group]
		if !ok {
			ra = len(groupRank)
		}
		rb, ok := groupRank[b.Group]
		if !ok {
			rb = len(groupRank)
		}
		if ra != rb {
			return ra < rb
		}
		if a.Role != b.Role {
			return a.Role < b.Role
		}
		return a.ID < b.ID
	})
}
