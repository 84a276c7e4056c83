package app

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"reportdeck/api/internal/auth"
	"reportdeck/api/internal/authpw"
	"reportdeck/api/internal/config"
	"reportdeck/api/internal/export"
	"reportdeck/api/internal/rbac"
	"reportdeck/api/internal/search"
	"reportdeck/api/internal/store"
	"reportdeck/api/internal/util"
	"reportdeck/api/internal/workspace"
)

// Session is an authenticated caller, reconstructed from the access
// token on every request.
type Session struct {
	Token        string
	RefreshToken string
	AccountID    string
	Email        string
	DisplayName  string
	Role         string
	WorkspaceID  string
	JTI          string
	ExpiresAt    time.Time
}

func (s Session) ref() workspace.AccountRef {
	return workspace.AccountRef{AccountID: s.AccountID, Email: s.Email}
}

// accountStore is the slice of store.AuthStore the service needs.
type accountStore interface {
	GetAccountByEmail(ctx context.Context, email string) (store.Account, error)
	GetAccountByID(ctx context.Context, id string) (store.Account, error)
	SaveRefreshSession(ctx context.Context, tokenHash, accountID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.Account, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
	Ping(ctx context.Context) error
}

// refreshStore is the Redis-backed session store; nil falls back to the
// Postgres refresh tables on accountStore.
type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, account store.Account, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.Account, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg       config.Config
	accounts  accountStore
	sessions  refreshStore
	passwords *authpw.Service
	engine    *workspace.Engine
	runner    workspace.Runner
	search    *search.Service
	exporter  *export.Service
}

func NewService(
	cfg config.Config,
	accounts accountStore,
	sessions refreshStore,
	passwords *authpw.Service,
	runner workspace.Runner,
	searchService *search.Service,
	exporter *export.Service,
) *Service {
	return &Service{
		cfg:       cfg,
		accounts:  accounts,
		sessions:  sessions,
		passwords: passwords,
		engine:    workspace.NewEngine(runner),
		runner:    runner,
		search:    searchService,
		exporter:  exporter,
	}
}

// Engine exposes the workspace engine for configuration at startup.
func (s *Service) Engine() *workspace.Engine {
	return s.engine
}

// Bootstrap seeds the workspace and admin account on an empty database
// and warms the search index.
func (s *Service) Bootstrap(ctx context.Context) error {
	created, err := s.passwords.Bootstrap(ctx, authpw.BootstrapRequest{
		WorkspaceID:   "default",
		WorkspaceName: "Workspace",
		AdminEmail:    s.cfg.BootstrapEmail,
		AdminPassword: s.cfg.BootstrapPassword,
		AdminName:     s.cfg.BootstrapName,
	})
	if err != nil {
		return err
	}
	if created {
		log.Printf("bootstrap: seeded admin account %s", s.cfg.BootstrapEmail)
	}

	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.accounts.Ping(ctx)
}

// SignIn verifies credentials and issues an access/refresh token pair.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	account, err := s.passwords.SignIn(ctx, authpw.SignInRequest{Email: email, Password: password})
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil)
	}
	return s.issueSession(ctx, account)
}

// Refresh rotates a refresh token: the old one is revoked and a fresh
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)

	var account store.Account
	var err error
	if s.sessions != nil {
		account, err = s.sessions.LookupRefreshSession(ctx, tokenHash)
	} else {
		account, err = s.accounts.LookupRefreshSession(ctx, tokenHash)
	}
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
	}

	if s.sessions != nil {
		err = s.sessions.RevokeRefreshSession(ctx, tokenHash)
	} else {
		err = s.accounts.RevokeRefreshSession(ctx, tokenHash)
	}
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, account)
}

func (s *Service) issueSession(ctx context.Context, account store.Account) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	// Employee linkage is best effort at issue time; the engine
	// re-resolves it on every workspace call anyway.
	employeeID := ""
	if identity, err := s.runner.Store().ResolveIdentity(ctx, workspace.AccountRef{AccountID: account.ID, Email: account.Email}); err == nil {
		employeeID = identity.EmployeeID
	}

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:        account.ID,
		Name:       account.DisplayName,
		Role:       account.Role,
		EmployeeID: employeeID,
		JTI:        jti,
		Exp:        expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	refreshHash := auth.HashToken(refresh)
	if s.sessions != nil {
		err = s.sessions.SaveRefreshSession(ctx, refreshHash, account, refreshExpires)
	} else {
		err = s.accounts.SaveRefreshSession(ctx, refreshHash, account.ID, refreshExpires)
	}
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		AccountID:    account.ID,
		Email:        account.Email,
		DisplayName:  account.DisplayName,
		Role:         account.Role,
		WorkspaceID:  account.WorkspaceID,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken validates an access token and rehydrates the caller.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.accounts.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	account, err := s.accounts.GetAccountByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:       token,
		AccountID:   account.ID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		Role:        account.Role,
		WorkspaceID: account.WorkspaceID,
		JTI:         claims.JTI,
		ExpiresAt:   time.Unix(claims.Exp, 0),
	}, nil
}

// SignOut revokes the access token and, when given, the refresh token.
func (s *Service) SignOut(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.accounts.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		tokenHash := auth.HashToken(refreshToken)
		if s.sessions != nil {
			_ = s.sessions.RevokeRefreshSession(ctx, tokenHash)
		} else {
			_ = s.accounts.RevokeRefreshSession(ctx, tokenHash)
		}
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// CreateAccount lets an admin provision a sign-in for a colleague.
func (s *Service) CreateAccount(ctx context.Context, session Session, input CreateAccountInput) (store.Account, error) {
	if !s.Can(session.Role, rbac.ActionAdmin) {
		return store.Account{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	account, err := s.passwords.CreateAccount(ctx, authpw.CreateAccountRequest{
		WorkspaceID: session.WorkspaceID,
		Email:       input.Email,
		Password:    input.Password,
		DisplayName: input.DisplayName,
		Role:        input.Role,
	})
	if err != nil {
		return store.Account{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	return account, nil
}

// ReadWorkspace returns the caller's projected workspace view.
func (s *Service) ReadWorkspace(ctx context.Context, session Session) (*workspace.Snapshot, error) {
	return s.engine.ReadWorkspace(ctx, session.ref())
}

// WriteWorkspace reconciles the submitted snapshot and reindexes the
// writable slice of the result.
func (s *Service) WriteWorkspace(ctx context.Context, session Session, desired *workspace.Snapshot) (*workspace.Snapshot, error) {
	var previous *workspace.Snapshot
	if s.search != nil {
		previous, _ = s.engine.ReadWorkspace(ctx, session.ref())
	}
	updated, err := s.engine.WriteWorkspace(ctx, desired, session.ref())
	if err != nil {
		return nil, err
	}
	s.pruneIndex(previous, updated)
	s.reindexSnapshot(updated)
	return updated, nil
}

// pruneIndex drops search documents for projects, reports and employees
// that were visible before a write but are gone from the updated view.
func (s *Service) pruneIndex(previous, updated *workspace.Snapshot) {
	if s.search == nil || previous == nil || updated == nil {
		return
	}
	keepProjects := make(map[string]bool, len(updated.Projects))
	keepReports := make(map[string]bool)
	for _, p := range updated.Projects {
		keepProjects[p.ID] = true
		for _, r := range p.Reports {
			keepReports[r.ID] = true
		}
	}
	for _, p := range previous.Projects {
		if !keepProjects[p.ID] {
			s.search.DeleteProject(p.ID)
		}
		for _, r := range p.Reports {
			if !keepReports[r.ID] {
				s.search.DeleteReport(r.ID)
			}
		}
	}
	keepEmployees := make(map[string]bool, len(updated.Employees))
	for _, e := range updated.Employees {
		keepEmployees[e.ID] = true
	}
	for _, e := range previous.Employees {
		if !keepEmployees[e.ID] {
			s.search.DeleteEmployee(e.ID)
		}
	}
}

// CreateProject appends a new project via the draft path and returns
// the updated view plus the new project's id.
func (s *Service) CreateProject(ctx context.Context, session Session, input ProjectInput) (*workspace.Snapshot, string, error) {
	updated, result, err := s.engine.DraftMutate(ctx, session.ref(), func(draft, current *workspace.Snapshot, mctx workspace.MutatorContext) (any, error) {
		project := workspace.Project{
			ID:      mctx.NewID(),
			Config:  input.Config,
			Status:  input.Status,
			Members: input.Members,
			Reports: []workspace.Report{},
		}
		if project.Status == "" {
			project.Status = workspace.StatusActive
		}
		draft.Projects = append(draft.Projects, project)
		return project.ID, nil
	})
	if err != nil {
		return nil, "", err
	}
	s.reindexSnapshot(updated)
	return updated, result.(string), nil
}

// UpdateProject rewrites one project's config, status and members.
func (s *Service) UpdateProject(ctx context.Context, session Session, projectID string, input ProjectInput) (*workspace.Snapshot, error) {
	updated, _, err := s.engine.DraftMutate(ctx, session.ref(), func(draft, current *workspace.Snapshot, mctx workspace.MutatorContext) (any, error) {
		project := findProject(draft, projectID)
		if project == nil {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Project not found", nil)
		}
		project.Config = input.Config
		if input.Status != "" {
			project.Status = input.Status
		}
		if input.Members != nil {
			project.Members = input.Members
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	s.reindexSnapshot(updated)
	return updated, nil
}

// UpsertReport replaces (or creates) the report for one week.
func (s *Service) UpsertReport(ctx context.Context, session Session, projectID, weekKey string, state workspace.ReportState) (*workspace.Snapshot, error) {
	if strings.TrimSpace(weekKey) == "" {
		return nil, domainError(http.StatusBadRequest, "INVALID_PAYLOAD", "weekKey is required", nil)
	}
	updated, _, err := s.engine.DraftMutate(ctx, session.ref(), func(draft, current *workspace.Snapshot, mctx workspace.MutatorContext) (any, error) {
		project := findProject(draft, projectID)
		if project == nil {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Project not found", nil)
		}
		for i := range project.Reports {
			if project.Reports[i].WeekKey == weekKey {
				project.Reports[i].State = state
				return nil, nil
			}
		}
		project.Reports = append(project.Reports, workspace.Report{WeekKey: weekKey, State: state})
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	s.reindexSnapshot(updated)
	return updated, nil
}

// UpdateEmployee rewrites one employee through the draft path.
func (s *Service) UpdateEmployee(ctx context.Context, session Session, employeeID string, input EmployeeInput) (*workspace.Snapshot, error) {
	updated, _, err := s.engine.DraftMutate(ctx, session.ref(), func(draft, current *workspace.Snapshot, mctx workspace.MutatorContext) (any, error) {
		for i := range draft.Employees {
			if draft.Employees[i].ID != employeeID {
				continue
			}
			draft.Employees[i].Name = input.Name
			draft.Employees[i].Email = input.Email
			draft.Employees[i].Location = input.Location
			draft.Employees[i].WeeklyCapacity = input.WeeklyCapacity
			return nil, nil
		}
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Employee not found", nil)
	})
	if err != nil {
		return nil, err
	}
	s.reindexSnapshot(updated)
	return updated, nil
}

// LogTime records hours for the caller on one project and week. Hours
// of zero removes the entry. Unlike the draft operations this does not
// require edit rights, only assignment, so it writes the member's time
// entries directly.
func (s *Service) LogTime(ctx context.Context, session Session, projectID, week string, hours float64) error {
	if strings.TrimSpace(week) == "" {
		return domainError(http.StatusBadRequest, "INVALID_PAYLOAD", "week is required", nil)
	}
	if hours < 0 {
		return domainError(http.StatusBadRequest, "INVALID_PAYLOAD", "hours must not be negative", nil)
	}

	view, err := s.engine.ReadWorkspace(ctx, session.ref())
	if err != nil {
		return err
	}
	project := findProject(view, projectID)
	if project == nil {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Project not found", nil)
	}
	if !project.CanLogTime {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Not assigned to this project", nil)
	}

	identity, err := s.runner.Store().ResolveIdentity(ctx, session.ref())
	if err != nil {
		return err
	}
	var member *workspace.Member
	for i := range project.Members {
		if project.Members[i].EmployeeID == identity.EmployeeID {
			member = &project.Members[i]
			break
		}
	}
	if member == nil {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Not assigned to this project", nil)
	}

	// Rewrite the member's entries wholesale, reusing known entry ids.
	entries := make([]workspace.TimeEntry, 0, len(member.TimeEntries)+1)
	found := false
	for _, entry := range member.TimeEntries {
		if entry.Week == week {
			found = true
			if hours == 0 {
				continue
			}
			entry.Hours = hours
		}
		entries = append(entries, entry)
	}
	if !found && hours > 0 {
		entries = append(entries, workspace.TimeEntry{ID: util.NewID(""), Week: week, Hours: hours})
	}

	return s.runner.InTx(ctx, func(st workspace.Store) error {
		if err := st.DeleteTimeEntriesByMember(ctx, member.ID); err != nil {
			return err
		}
		for _, entry := range entries {
			if err := st.InsertTimeEntry(ctx, store.TimeEntryRow{
				ID:       entry.ID,
				MemberID: member.ID,
				Week:     entry.Week,
				Hours:    entry.Hours,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Search runs a scoped full-text query over the workspace.
func (s *Service) Search(ctx context.Context, session Session, q search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}, nil
	}
	if rbac.Normalize(session.Role) == rbac.RoleMember {
		view, err := s.engine.ReadWorkspace(ctx, session.ref())
		if err != nil {
			return search.Response{}, err
		}
		allowed := make([]string, 0, len(view.Projects))
		for _, p := range view.Projects {
			allowed = append(allowed, p.ID)
		}
		q.AllowedProjects = allowed
	}
	return s.search.Search(q), nil
}

// ExportReport renders one weekly report as PDF or CSV.
func (s *Service) ExportReport(ctx context.Context, session Session, projectID, weekKey string, format export.Format) (*export.Result, error) {
	view, err := s.engine.ReadWorkspace(ctx, session.ref())
	if err != nil {
		return nil, err
	}
	project := findProject(view, projectID)
	if project == nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Project not found", nil)
	}
	for _, report := range project.Reports {
		if report.WeekKey != weekKey {
			continue
		}
		return s.exporter.Export(reportData(project, report), format)
	}
	return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Report not found", nil)
}

// reindexSnapshot pushes the caller-visible projects and reports into
// the search index. Fire-and-forget; search lag is acceptable.
func (s *Service) reindexSnapshot(snapshot *workspace.Snapshot) {
	if s.search == nil || snapshot == nil {
		return
	}
	for _, p := range snapshot.Projects {
		s.search.IndexProject(search.ProjectRecord{
			ID:           p.ID,
			Name:         p.Config.Name,
			Goal:         p.Config.Goal,
			BusinessCase: p.Config.BusinessCase,
			Status:       string(p.Status),
		})
		for _, report := range p.Reports {
			s.search.IndexReport(search.ReportRecord{
				ID:          report.ID,
				ProjectID:   p.ID,
				ProjectName: p.Config.Name,
				WeekKey:     report.WeekKey,
				Body:        reportBody(report),
			})
		}
	}
	for _, e := range snapshot.Employees {
		s.search.IndexEmployee(search.EmployeeRecord{
			ID:       e.ID,
			Name:     e.Name,
			Email:    e.Email,
			Location: e.Location,
			JobTitle: e.Sync.JobTitle,
		})
	}
}

func reportBody(report workspace.Report) string {
	var parts []string
	for _, item := range report.State.StatusItems {
		parts = append(parts, item.Text)
	}
	for _, item := range report.State.ChallengeItems {
		parts = append(parts, item.Text)
	}
	for _, item := range report.State.NextSteps {
		parts = append(parts, item.Text)
	}
	return strings.Join(parts, " ")
}

func reportData(project *workspace.Project, report workspace.Report) export.ReportData {
	data := export.ReportData{
		ProjectName: project.Config.Name,
		WeekKey:     report.WeekKey,
		GeneratedAt: time.Now(),
	}
	for _, item := range report.State.StatusItems {
		data.StatusItems = append(data.StatusItems, item.Text)
	}
	for _, item := range report.State.ChallengeItems {
		data.Challenges = append(data.Challenges, item.Text)
	}
	for _, item := range report.State.NextSteps {
		data.NextSteps = append(data.NextSteps, item.Text)
	}
	for _, row := range report.State.TableRows {
		data.TableRows = append(data.TableRows, export.TableRowLine{Title: row.Title, Status: row.Status, Comment: row.Comment})
	}
	for _, risk := range report.State.Risks {
		data.Risks = append(data.Risks, export.RiskLine{
			Description: risk.Description,
			Probability: risk.Probability,
			Impact:      risk.Impact,
			Mitigation:  risk.Mitigation,
		})
	}
	for _, phase := range report.State.Phases {
		data.Phases = append(data.Phases, export.PhaseLine{Name: phase.Name, StartDate: phase.StartDate, EndDate: phase.EndDate})
	}
	for _, milestone := range report.State.Milestones {
		data.Milestones = append(data.Milestones, export.MilestoneLine{Text: milestone.Text, DueDate: milestone.DueDate, Done: milestone.Done})
	}
	for _, deliverable := range report.State.Deliverables {
		line := export.DeliverableLine{Title: deliverable.Title}
		for _, item := range deliverable.Checklist {
			line.Checklist = append(line.Checklist, export.ChecklistLine{Text: item.Text, Done: item.Done})
		}
		data.Deliverables = append(data.Deliverables, line)
	}
	for _, task := range report.State.KanbanTasks {
		data.KanbanTasks = append(data.KanbanTasks, export.KanbanLine{Title: task.Title, Lane: task.Lane})
	}
	return data
}

func findProject(snapshot *workspace.Snapshot, projectID string) *workspace.Project {
	for i := range snapshot.Projects {
		if snapshot.Projects[i].ID == projectID {
			return &snapshot.Projects[i]
		}
	}
	return nil
}

// ProjectInput is the payload for project create/update.
type ProjectInput struct {
	Config  workspace.ProjectConfig `json:"config"`
	Status  workspace.ProjectStatus `json:"status"`
	Members []workspace.Member      `json:"members"`
}

// EmployeeInput is the payload for employee update.
type EmployeeInput struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Location       string  `json:"location"`
	WeeklyCapacity float64 `json:"weeklyCapacity"`
}

// CreateAccountInput is the payload for admin account provisioning.
type CreateAccountInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}
