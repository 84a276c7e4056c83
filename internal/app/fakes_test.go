package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"reportdeck/api/internal/authpw"
	"reportdeck/api/internal/config"
	"reportdeck/api/internal/export"
	"reportdeck/api/internal/store"
	"reportdeck/api/internal/workspace"
)

// stubStore satisfies workspace.Store with canned rows. App tests only
// exercise the read path through the engine; reconciliation has its own
// coverage in the workspace package.
type stubStore struct {
	identity    workspace.Identity
	identityErr error

	settings    store.SettingsRow
	hasSettings bool
	employees   []store.EmployeeRow
	projects    []store.ProjectRow
	members     []store.MemberRow
	timeEntries []store.TimeEntryRow
	reports     []store.ReportRow

	insertedTimeEntries []store.TimeEntryRow
	deletedTimeMembers  []string
}

func (s *stubStore) ResolveIdentity(_ context.Context, _ workspace.AccountRef) (workspace.Identity, error) {
	if s.identityErr != nil {
		return workspace.Identity{}, s.identityErr
	}
	return s.identity, nil
}

func (s *stubStore) GetSettings(_ context.Context, _ string) (store.SettingsRow, bool, error) {
	return s.settings, s.hasSettings, nil
}
func (s *stubStore) UpsertSettings(_ context.Context, _ store.SettingsRow) error { return nil }
func (s *stubStore) BumpRevision(_ context.Context, _ string) error              { return nil }

func (s *stubStore) ListEmployees(_ context.Context, _ string) ([]store.EmployeeRow, error) {
	return s.employees, nil
}
func (s *stubStore) UpsertEmployee(_ context.Context, _ store.EmployeeRow) error { return nil }

func (s *stubStore) ListProjects(_ context.Context, _ string) ([]store.ProjectRow, error) {
	return s.projects, nil
}
func (s *stubStore) UpsertProject(_ context.Context, _ store.ProjectRow) error { return nil }

func (s *stubStore) ListMembers(_ context.Context, _ []string) ([]store.MemberRow, error) {
	return s.members, nil
}
func (s *stubStore) UpsertMember(_ context.Context, _ store.MemberRow) error { return nil }
func (s *stubStore) DeleteMember(_ context.Context, _ string) error          { return nil }

func (s *stubStore) ListTimeEntries(_ context.Context, _ []string) ([]store.TimeEntryRow, error) {
	return s.timeEntries, nil
}
func (s *stubStore) DeleteTimeEntriesByMember(_ context.Context, memberID string) error {
	s.deletedTimeMembers = append(s.deletedTimeMembers, memberID)
	return nil
}
func (s *stubStore) InsertTimeEntry(_ context.Context, row store.TimeEntryRow) error {
	s.insertedTimeEntries = append(s.insertedTimeEntries, row)
	return nil
}

func (s *stubStore) ListReports(_ context.Context, _ []string) ([]store.ReportRow, error) {
	return s.reports, nil
}
func (s *stubStore) UpsertReport(_ context.Context, _ store.ReportRow) error { return nil }
func (s *stubStore) DeleteReport(_ context.Context, _ string) error          { return nil }

func (s *stubStore) ListStatusItems(_ context.Context, _ []string) ([]store.ReportItemRow, error) {
	return nil, nil
}
func (s *stubStore) DeleteStatusItemsByReport(_ context.Context, _ string) error { return nil }
func (s *stubStore) InsertStatusItem(_ context.Context, _ store.ReportItemRow) error {
	return nil
}

func (s *stubStore) ListChallengeItems(_ context.Context, _ []string) ([]store.ReportItemRow, error) {
	return nil, nil
}
func (s *stubStore) DeleteChallengeItemsByReport(_ context.Context, _ string) error { return nil }
func (s *stubStore) InsertChallengeItem(_ context.Context, _ store.ReportItemRow) error {
	return nil
}

func (s *stubStore) ListNextSteps(_ context.Context, _ []string) ([]store.ReportItemRow, error) {
	return nil, nil
}
func (s *stubStore) DeleteNextStepsByReport(_ context.Context, _ string) error { return nil }
func (s *stubStore) InsertNextStep(_ context.Context, _ store.ReportItemRow) error {
	return nil
}

func (s *stubStore) ListTableRows(_ context.Context, _ []string) ([]store.TableRowRow, error) {
	return nil, nil
}
func (s *stubStore) DeleteTableRowsByReport(_ context.Context, _ string) error { return nil }
func (s *stubStore) InsertTableRow(_ context.Context, _ store.TableRowRow) error {
	return nil
}

func (s *stubStore) ListRisks(_ context.Context, _ []string) ([]store.RiskRow, error) {
	return nil, nil
}
func (s *stubStore) DeleteRisksByReport(_ context.Context, _ string) error { return nil }
func (s *stubStore) InsertRisk(_ context.Context, _ store.RiskRow) error   { return nil }

func (s *stubStore) ListPhases(_ context.Context, _ []string) ([]store.PhaseRow, error) {
	return nil, nil
}
func (s *stubStore) DeletePhasesByReport(_ context.Context, _ string) error { return nil }
func (s *stubStore) InsertPhase(_ context.Context, _ store.PhaseRow) error  { return nil }

func (s *stubStore) ListMilestones(_ context.Context, _ []string) ([]store.MilestoneRow, error) {
	return nil, nil
}
func (s *stubStore) DeleteMilestonesByReport(_ context.Context, _ string) error { return nil }
func (s *stubStore) InsertMilestone(_ context.Context, _ store.MilestoneRow) error {
	return nil
}

func (s *stubStore) ListDeliverables(_ context.Context, _ []string) ([]store.DeliverableRow, error) {
	return nil, nil
}
func (s *stubStore) DeleteDeliverablesByReport(_ context.Context, _ string) error { return nil }
func (s *stubStore) InsertDeliverable(_ context.Context, _ store.DeliverableRow) error {
	return nil
}

func (s *stubStore) ListChecklistItems(_ context.Context, _ []string) ([]store.ChecklistItemRow, error) {
	return nil, nil
}
func (s *stubStore) InsertChecklistItem(_ context.Context, _ store.ChecklistItemRow) error {
	return nil
}

func (s *stubStore) ListKanbanTasks(_ context.Context, _ []string) ([]store.KanbanTaskRow, error) {
	return nil, nil
}
func (s *stubStore) DeleteKanbanTasksByReport(_ context.Context, _ string) error { return nil }
func (s *stubStore) InsertKanbanTask(_ context.Context, _ store.KanbanTaskRow) error {
	return nil
}

type stubRunner struct {
	st *stubStore
}

func (r *stubRunner) Store() workspace.Store { return r.st }

func (r *stubRunner) InTx(_ context.Context, fn func(workspace.Store) error) error {
	return fn(r.st)
}

// fakeAccounts backs both the session layer and the password service.
type fakeAccounts struct {
	mu         sync.Mutex
	byID       map[string]store.Account
	byEmail    map[string]store.Account
	refresh    map[string]refreshEntry
	revoked    map[string]bool
	workspaces map[string]string
	pingErr    error
}

type refreshEntry struct {
	accountID string
	expiresAt time.Time
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		byID:       map[string]store.Account{},
		byEmail:    map[string]store.Account{},
		refresh:    map[string]refreshEntry{},
		revoked:    map[string]bool{},
		workspaces: map[string]string{},
	}
}

func (f *fakeAccounts) add(account store.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[account.ID] = account
	f.byEmail[account.Email] = account
}

func (f *fakeAccounts) GetAccountByEmail(_ context.Context, email string) (store.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.byEmail[email]
	if !ok {
		return store.Account{}, errors.New("account not found")
	}
	return account, nil
}

func (f *fakeAccounts) GetAccountByID(_ context.Context, id string) (store.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.byID[id]
	if !ok {
		return store.Account{}, errors.New("account not found")
	}
	return account, nil
}

func (f *fakeAccounts) CreateAccount(_ context.Context, account store.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byEmail[account.Email]; exists {
		return errors.New("duplicate email")
	}
	f.byID[account.ID] = account
	f.byEmail[account.Email] = account
	return nil
}

func (f *fakeAccounts) CountAccounts(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID), nil
}

func (f *fakeAccounts) EnsureWorkspace(_ context.Context, workspaceID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workspaces[workspaceID] = name
	return nil
}

func (f *fakeAccounts) SaveRefreshSession(_ context.Context, tokenHash, accountID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[tokenHash] = refreshEntry{accountID: accountID, expiresAt: expiresAt}
	return nil
}

func (f *fakeAccounts) LookupRefreshSession(_ context.Context, tokenHash string) (store.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.refresh[tokenHash]
	if !ok || time.Now().After(entry.expiresAt) {
		return store.Account{}, errors.New("refresh session not found")
	}
	account, ok := f.byID[entry.accountID]
	if !ok {
		return store.Account{}, errors.New("account not found")
	}
	return account, nil
}

func (f *fakeAccounts) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, tokenHash)
	return nil
}

func (f *fakeAccounts) RevokeAccessToken(_ context.Context, jti string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = true
	return nil
}

func (f *fakeAccounts) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[jti], nil
}

func (f *fakeAccounts) Ping(_ context.Context) error { return f.pingErr }

func seedAccount(f *fakeAccounts, id, email, role, password string) store.Account {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	account := store.Account{
		ID:           id,
		WorkspaceID:  "ws-1",
		Email:        email,
		DisplayName:  "Avery",
		PasswordHash: string(hash),
		Role:         role,
	}
	f.add(account)
	return account
}

func newTestService(accounts *fakeAccounts, st *stubStore) *Service {
	cfg := config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}
	return NewService(cfg, accounts, nil, authpw.NewService(accounts), &stubRunner{st: st}, nil, export.NewService())
}
