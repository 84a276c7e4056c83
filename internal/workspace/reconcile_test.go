package workspace

import (
	"context"
	"fmt"
	"testing"

	"reportdeck/api/internal/rbac"
	"reportdeck/api/internal/store"
)

const testWorkspace = "ws-1"

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}
}

// newFixture seeds one workspace with an admin, a lead (employee
// emp-lead, lead of project p-1), a rank-and-file member (emp-member,
// assigned to p-1), a second project p-2 without the lead, and settings.
func newFixture() (*memRunner, *Engine) {
	state := newMemState()
	state.identities["acct-admin"] = Identity{AccountID: "acct-admin", Email: "admin@acme.test", Role: rbac.RoleAdmin, WorkspaceID: testWorkspace}
	state.identities["acct-lead"] = Identity{AccountID: "acct-lead", EmployeeID: "emp-lead", Email: "lead@acme.test", Role: rbac.RoleLead, WorkspaceID: testWorkspace}
	state.identities["acct-member"] = Identity{AccountID: "acct-member", EmployeeID: "emp-member", Email: "member@acme.test", Role: rbac.RoleMember, WorkspaceID: testWorkspace}

	state.settings[testWorkspace] = store.SettingsRow{WorkspaceID: testWorkspace, Name: "Acme", HoursPerWeek: 37, Revision: 0}

	state.employees["emp-lead"] = store.EmployeeRow{ID: "emp-lead", WorkspaceID: testWorkspace, Name: "Lena Lead", Email: "lead@acme.test", Location: "Copenhagen", Office: "Copenhagen", Department: "Copenhagen", WeeklyCapacity: 37}
	state.employees["emp-member"] = store.EmployeeRow{ID: "emp-member", WorkspaceID: testWorkspace, Name: "Mikkel Member", Email: "member@acme.test", Location: "Aarhus", Office: "Aarhus", Department: "Aarhus", WeeklyCapacity: 30}

	state.projects["p-1"] = store.ProjectRow{ID: "p-1", WorkspaceID: testWorkspace, Name: "Apollo", Status: "active"}
	state.projects["p-2"] = store.ProjectRow{ID: "p-2", WorkspaceID: testWorkspace, Name: "Borealis", Status: "active"}

	state.members["mem-lead"] = store.MemberRow{ID: "mem-lead", ProjectID: "p-1", EmployeeID: "emp-lead", Role: "Projektleder", MemberGroup: "core", IsProjectLead: true}
	state.members["mem-member"] = store.MemberRow{ID: "mem-member", ProjectID: "p-1", EmployeeID: "emp-member", Role: "Developer", MemberGroup: "core"}

	runner := &memRunner{state: state}
	return runner, NewEngineWithIDs(runner, seqIDs())
}

func adminRef() AccountRef  { return AccountRef{AccountID: "acct-admin", Email: "admin@acme.test"} }
func leadRef() AccountRef   { return AccountRef{AccountID: "acct-lead", Email: "lead@acme.test"} }
func memberRef() AccountRef { return AccountRef{AccountID: "acct-member", Email: "member@acme.test"} }

func findProject(t *testing.T, s *Snapshot, id string) *Project {
	t.Helper()
	for i := range s.Projects {
		if s.Projects[i].ID == id {
			return &s.Projects[i]
		}
	}
	t.Fatalf("project %s not in snapshot", id)
	return nil
}

func TestWriteWorkspaceCreatesReportWithFreshMilestoneID(t *testing.T) {
	runner, engine := newFixture()
	ctx := context.Background()

	current, err := engine.ReadWorkspace(ctx, adminRef())
	if err != nil {
		t.Fatalf("read workspace: %v", err)
	}
	p1 := findProject(t, current, "p-1")
	p1.Reports = append(p1.Reports, Report{
		WeekKey: "2025-W10",
		State: ReportState{
			Milestones: []Milestone{{Text: "Kickoff", Position: 10}},
		},
	})

	updated, err := engine.WriteWorkspace(ctx, current, adminRef())
	if err != nil {
		t.Fatalf("write workspace: %v", err)
	}

	if len(runner.state.reports) != 1 {
		t.Fatalf("expected 1 report row, got %d", len(runner.state.reports))
	}
	if len(runner.state.milestones) != 1 {
		t.Fatalf("expected 1 milestone row, got %d", len(runner.state.milestones))
	}
	var milestone store.MilestoneRow
	for _, row := range runner.state.milestones {
		milestone = row
	}
	if milestone.Text != "Kickoff" || milestone.Position != 10 {
		t.Fatalf("unexpected milestone row: %+v", milestone)
	}
	if milestone.ID == "" {
		t.Fatalf("milestone should get a freshly allocated id")
	}

	// Resubmitting the identical tree must not churn ids or rows.
	again, err := engine.WriteWorkspace(ctx, updated, adminRef())
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if len(runner.state.reports) != 1 || len(runner.state.milestones) != 1 {
		t.Fatalf("resubmit duplicated rows: %d reports, %d milestones", len(runner.state.reports), len(runner.state.milestones))
	}
	got := findProject(t, again, "p-1").Reports[0].State.Milestones[0]
	if got.ID != milestone.ID || got.Position != 10 {
		t.Fatalf("milestone identity changed on resubmit: %+v vs %+v", got, milestone)
	}
}

func TestWriteWorkspaceIsIdempotent(t *testing.T) {
	runner, engine := newFixture()
	ctx := context.Background()

	current, err := engine.ReadWorkspace(ctx, adminRef())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	first, err := engine.WriteWorkspace(ctx, current, adminRef())
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	membersBefore := copyMap(runner.state.members)

	second, err := engine.WriteWorkspace(ctx, first, adminRef())
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if len(runner.state.members) != len(membersBefore) {
		t.Fatalf("member rows changed: %d vs %d", len(runner.state.members), len(membersBefore))
	}
	for id := range membersBefore {
		if _, ok := runner.state.members[id]; !ok {
			t.Fatalf("member id %s lost on second pass", id)
		}
	}
	firstP1 := findProject(t, first, "p-1")
	secondP1 := findProject(t, second, "p-1")
	if len(firstP1.Members) != len(secondP1.Members) {
		t.Fatalf("member count drifted: %d vs %d", len(firstP1.Members), len(secondP1.Members))
	}
	for i := range firstP1.Members {
		if firstP1.Members[i].ID != secondP1.Members[i].ID {
			t.Fatalf("member id drifted at %d: %s vs %s", i, firstP1.Members[i].ID, secondP1.Members[i].ID)
		}
	}
}

func TestReconcilePreservesUntouchedMilestone(t *testing.T) {
	runner, engine := newFixture()
	ctx := context.Background()

	runner.state.reports["rep-1"] = store.ReportRow{ID: "rep-1", ProjectID: "p-1", WeekKey: "2025-W09"}
	runner.state.milestones["m1"] = store.MilestoneRow{ID: "m1", ReportID: "rep-1", Text: "Design done", Position: 10}
	runner.state.milestones["m2"] = store.MilestoneRow{ID: "m2", ReportID: "rep-1", Text: "Go live", Position: 20}

	current, err := engine.ReadWorkspace(ctx, adminRef())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	report := &findProject(t, current, "p-1").Reports[0]
	for i := range report.State.Milestones {
		if report.State.Milestones[i].ID == "m1" {
			report.State.Milestones[i].Text = "Design approved"
		}
	}

	if _, err := engine.WriteWorkspace(ctx, current, adminRef()); err != nil {
		t.Fatalf("write: %v", err)
	}

	m1, ok := runner.state.milestones["m1"]
	if !ok {
		t.Fatalf("m1 should keep its id")
	}
	if m1.Text != "Design approved" {
		t.Fatalf("m1 text not updated: %q", m1.Text)
	}
	m2, ok := runner.state.milestones["m2"]
	if !ok {
		t.Fatalf("m2 id must survive a sibling edit")
	}
	if m2.Text != "Go live" || m2.Position != 20 {
		t.Fatalf("m2 changed: %+v", m2)
	}
	if runner.state.reports["rep-1"].ID != "rep-1" {
		t.Fatalf("report id must be preserved via week key match")
	}
}

func TestMemberCallerCannotTouchForeignProject(t *testing.T) {
	runner, engine := newFixture()
	ctx := context.Background()

	payload := &Snapshot{
		Projects: []Project{{
			ID:     "p-2",
			Config: ProjectConfig{Name: "Borealis renamed"},
			Status: StatusOnHold,
		}},
	}
	if _, err := engine.WriteWorkspace(ctx, payload, memberRef()); err != nil {
		t.Fatalf("write: %v", err)
	}
	p2 := runner.state.projects["p-2"]
	if p2.Name != "Borealis" || p2.Status != "active" {
		t.Fatalf("unauthorized project edit leaked through: %+v", p2)
	}
}

func TestLeadSelfPromotionViaRoleText(t *testing.T) {
	runner, engine := newFixture()
	ctx := context.Background()

	payload := &Snapshot{
		Projects: []Project{{
			ID:     "p-2",
			Config: ProjectConfig{Name: "Borealis", Goal: "Expand north"},
			Status: StatusActive,
			Members: []Member{{
				EmployeeID: "emp-lead",
				Role:       "Projektleder",
				Group:      GroupCore,
			}},
		}},
	}
	if _, err := engine.WriteWorkspace(ctx, payload, leadRef()); err != nil {
		t.Fatalf("write: %v", err)
	}

	if runner.state.projects["p-2"].Goal != "Expand north" {
		t.Fatalf("self-promoted lead should have written p-2")
	}
	promoted := false
	for _, m := range runner.state.members {
		if m.ProjectID == "p-2" && m.EmployeeID == "emp-lead" && m.IsProjectLead {
			promoted = true
		}
	}
	if !promoted {
		t.Fatalf("caller should be flagged project lead on p-2")
	}

	// And the project now shows up in the editable set on the next read.
	view, err := engine.ReadWorkspace(ctx, leadRef())
	if err != nil {
		t.Fatalf("read after promotion: %v", err)
	}
	if !findProject(t, view, "p-2").CanEdit {
		t.Fatalf("p-2 should be editable after self-promotion")
	}
}

func TestLeadSelfPromotionSynthesizesMissingMemberEntry(t *testing.T) {
	runner, engine := newFixture()
	ctx := context.Background()

	payload := &Snapshot{
		Projects: []Project{{
			ID:     "p-2",
			Config: ProjectConfig{Name: "Borealis"},
			Status: StatusActive,
		}},
	}
	if _, err := engine.WriteWorkspace(ctx, payload, leadRef()); err != nil {
		t.Fatalf("write: %v", err)
	}
	var synthesized *store.MemberRow
	for _, m := range runner.state.members {
		if m.ProjectID == "p-2" && m.EmployeeID == "emp-lead" {
			row := m
			synthesized = &row
		}
	}
	if synthesized == nil {
		t.Fatalf("lead member entry should be synthesized on p-2")
	}
	if !synthesized.IsProjectLead {
		t.Fatalf("synthesized entry must carry the lead flag")
	}
}

func TestLeadSelfPromotionCanBeDisabled(t *testing.T) {
	runner, engine := newFixture()
	engine.AllowLeadSelfPromotion = false
	ctx := context.Background()

	payload := &Snapshot{
		Projects: []Project{{
			ID:     "p-2",
			Config: ProjectConfig{Name: "Borealis hijacked"},
			Status: StatusActive,
			Members: []Member{{
				EmployeeID: "emp-lead",
				Role:       "Projektleder",
				Group:      GroupCore,
			}},
		}},
	}
	if _, err := engine.WriteWorkspace(ctx, payload, leadRef()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if runner.state.projects["p-2"].Name != "Borealis" {
		t.Fatalf("promotion disabled: p-2 must stay unchanged")
	}
}

func TestDuplicateEmailRollsBackWholePayload(t *testing.T) {
	runner, engine := newFixture()
	ctx := context.Background()

	payload := &Snapshot{
		Employees: []Employee{
			{Name: "Nina New", Email: "nina@acme.test", WeeklyCapacity: 37},
			// Same address as Nina under a different casing.
			{Name: "Nina Duplicate", Email: " NINA@acme.test", WeeklyCapacity: 37},
			{Name: "Ole New", Email: "ole@acme.test", WeeklyCapacity: 37},
		},
		Projects: []Project{{
			ID:     "p-1",
			Config: ProjectConfig{Name: "Apollo renamed"},
			Status: StatusActive,
			Members: []Member{
				{ID: "mem-lead", EmployeeID: "emp-lead", Role: "Projektleder", Group: GroupCore, IsProjectLead: true},
			},
		}},
	}

	_, err := engine.WriteWorkspace(ctx, payload, adminRef())
	if err == nil {
		t.Fatalf("duplicate email must fail the write")
	}
	de, ok := AsDomainError(err)
	if !ok || de.Status != 409 {
		t.Fatalf("want 409 conflict, got %v", err)
	}

	if len(runner.state.employees) != 2 {
		t.Fatalf("no employee from the payload may survive: %d rows", len(runner.state.employees))
	}
	if runner.state.projects["p-1"].Name != "Apollo" {
		t.Fatalf("co-submitted project change must roll back too")
	}
	if len(runner.state.members) != 2 {
		t.Fatalf("member replacement must roll back: %d rows", len(runner.state.members))
	}
}

func TestPayloadEmployeeMatchedByEmailKeepsRowIdentity(t *testing.T) {
	runner, engine := newFixture()
	ctx := context.Background()

	payload := &Snapshot{
		Employees: []Employee{{
			Name:           "Lena Lead",
			Email:          "Lead@Acme.test",
			Location:       "Odense",
			WeeklyCapacity: 32,
		}},
	}
	if _, err := engine.WriteWorkspace(ctx, payload, adminRef()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(runner.state.employees) != 2 {
		t.Fatalf("email match must not create a new employee: %d rows", len(runner.state.employees))
	}
	lead := runner.state.employees["emp-lead"]
	if lead.Location != "Odense" || lead.Office != "Odense" || lead.Department != "Odense" {
		t.Fatalf("canonical location must mirror into both legacy columns: %+v", lead)
	}
	if lead.WeeklyCapacity != 32 {
		t.Fatalf("capacity not updated: %v", lead.WeeklyCapacity)
	}
}

func TestSyncMetadataPreservedWhenPayloadOmitsIt(t *testing.T) {
	runner, engine := newFixture()
	ctx := context.Background()

	seeded := runner.state.employees["emp-lead"]
	seeded.ExternalID = "ext-77"
	seeded.JobTitle = "Principal"
	seeded.SyncEnabled = true
	runner.state.employees["emp-lead"] = seeded

	payload := &Snapshot{
		Employees: []Employee{{
			ID:             "emp-lead",
			Name:           "Lena Lead",
			Email:          "lead@acme.test",
			Location:       "Copenhagen",
			WeeklyCapacity: 37,
		}},
	}
	if _, err := engine.WriteWorkspace(ctx, payload, adminRef()); err != nil {
		t.Fatalf("write: %v", err)
	}
	lead := runner.state.employees["emp-lead"]
	if lead.ExternalID != "ext-77" || lead.JobTitle != "Principal" || !lead.SyncEnabled {
		t.Fatalf("sync metadata must survive an omitting payload: %+v", lead)
	}
}

func TestReportsAbsentFromPayloadAreDeleted(t *testing.T) {
	runner, engine := newFixture()
	ctx := context.Background()

	runner.state.reports["rep-old"] = store.ReportRow{ID: "rep-old", ProjectID: "p-1", WeekKey: "2025-W01"}
	runner.state.statusItems["si-old"] = store.ReportItemRow{ID: "si-old", ReportID: "rep-old", Text: "On track", Position: 10}

	current, err := engine.ReadWorkspace(ctx, adminRef())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	findProject(t, current, "p-1").Reports = []Report{}

	if _, err := engine.WriteWorkspace(ctx, current, adminRef()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(runner.state.reports) != 0 {
		t.Fatalf("absent report must be deleted")
	}
	if len(runner.state.statusItems) != 0 {
		t.Fatalf("report children must be deleted with the report")
	}
}

func TestTimeEntriesAreFullyReplaced(t *testing.T) {
	runner, engine := newFixture()
	ctx := context.Background()

	runner.state.timeEntries["te-1"] = store.TimeEntryRow{ID: "te-1", MemberID: "mem-member", Week: "2025-W08", Hours: 10}
	runner.state.timeEntries["te-2"] = store.TimeEntryRow{ID: "te-2", MemberID: "mem-member", Week: "2025-W09", Hours: 12}

	current, err := engine.ReadWorkspace(ctx, adminRef())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	p1 := findProject(t, current, "p-1")
	for i := range p1.Members {
		if p1.Members[i].ID == "mem-member" {
			p1.Members[i].TimeEntries = []TimeEntry{{Week: "2025-W09", Hours: 15}}
		}
	}
	if _, err := engine.WriteWorkspace(ctx, current, adminRef()); err != nil {
		t.Fatalf("write: %v", err)
	}

	var remaining []store.TimeEntryRow
	for _, row := range runner.state.timeEntries {
		if row.MemberID == "mem-member" {
			remaining = append(remaining, row)
		}
	}
	if len(remaining) != 1 {
		t.Fatalf("time entries must be replaced wholesale: %d rows", len(remaining))
	}
	if remaining[0].Week != "2025-W09" || remaining[0].Hours != 15 {
		t.Fatalf("unexpected surviving entry: %+v", remaining[0])
	}
}

func TestMemberMissingEmployeeReferenceFails(t *testing.T) {
	_, engine := newFixture()
	ctx := context.Background()

	payload := &Snapshot{
		Projects: []Project{{
			ID:     "p-1",
			Config: ProjectConfig{Name: "Apollo"},
			Status: StatusActive,
			Members: []Member{
				{EmployeeID: "emp-ghost", Role: "Developer", Group: GroupCore},
			},
		}},
	}
	_, err := engine.WriteWorkspace(ctx, payload, adminRef())
	de, ok := AsDomainError(err)
	if !ok || de.Status != 404 {
		t.Fatalf("want 404 for dangling employee reference, got %v", err)
	}
}

func TestMalformedPayloadRejectedBeforeWrites(t *testing.T) {
	runner, engine := newFixture()
	ctx := context.Background()

	payload := &Snapshot{
		Projects: []Project{{
			ID:     "p-1",
			Config: ProjectConfig{},
			Status: StatusActive,
		}},
	}
	_, err := engine.WriteWorkspace(ctx, payload, adminRef())
	de, ok := AsDomainError(err)
	if !ok || de.Status != 400 {
		t.Fatalf("want 400 for nameless project, got %v", err)
	}
	if runner.state.projects["p-1"].Name != "Apollo" {
		t.Fatalf("invalid payload must not write")
	}
}

func TestWriteBumpsWorkspaceRevision(t *testing.T) {
	runner, engine := newFixture()
	ctx := context.Background()

	current, err := engine.ReadWorkspace(ctx, adminRef())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, err := engine.WriteWorkspace(ctx, current, adminRef()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := runner.state.settings[testWorkspace].Revision; got != 1 {
		t.Fatalf("revision should bump to 1, got %d", got)
	}
}

func TestUnauthenticatedCallsRejected(t *testing.T) {
	_, engine := newFixture()
	ctx := context.Background()

	_, err := engine.ReadWorkspace(ctx, AccountRef{})
	if de, ok := AsDomainError(err); !ok || de.Status != 401 {
		t.Fatalf("read without identity: want 401, got %v", err)
	}
	_, err = engine.WriteWorkspace(ctx, &Snapshot{}, AccountRef{})
	if de, ok := AsDomainError(err); !ok || de.Status != 401 {
		t.Fatalf("write without identity: want 401, got %v", err)
	}
}
