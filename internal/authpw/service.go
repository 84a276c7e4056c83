// Package authpw provides email/password authentication.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"reportdeck/api/internal/store"
	"reportdeck/api/internal/util"
)

// Service provides email/password authentication. Accounts are created
// by administrators (or the bootstrap seeder); there is no self
// sign-up flow.
type Service struct {
	accounts AccountStore
}

// AccountStore defines the storage interface for auth
type AccountStore interface {
	GetAccountByEmail(ctx context.Context, email string) (store.Account, error)
	GetAccountByID(ctx context.Context, id string) (store.Account, error)
	CreateAccount(ctx context.Context, account store.Account) error
	CountAccounts(ctx context.Context) (int, error)
	EnsureWorkspace(ctx context.Context, workspaceID, name string) error
}

// NewService creates a new auth service
func NewService(accounts AccountStore) *Service {
	return &Service{accounts: accounts}
}

// SignInRequest contains sign-in parameters
type SignInRequest struct {
	Email    string
	Password string
}

// SignIn authenticates an account
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (store.Account, error) {
	if req.Email == "" || req.Password == "" {
		return store.Account{}, errors.New("email and password are required")
	}

	account, err := s.accounts.GetAccountByEmail(ctx, req.Email)
	if err != nil {
		return store.Account{}, errors.New("invalid email or password")
	}
	if account.PasswordHash == "" {
		return store.Account{}, errors.New("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return store.Account{}, errors.New("invalid email or password")
	}

	return account, nil
}

// CreateAccountRequest contains account creation parameters
type CreateAccountRequest struct {
	WorkspaceID string
	Email       string
	Password    string
	DisplayName string
	Role        string
}

// CreateAccount creates a new account with a hashed password.
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (store.Account, error) {
	if req.Email == "" || req.Password == "" || req.DisplayName == "" {
		return store.Account{}, errors.New("email, password, and display name are required")
	}
	if len(req.Password) < 8 {
		return store.Account{}, errors.New("password must be at least 8 characters")
	}

	if _, err := s.accounts.GetAccountByEmail(ctx, req.Email); err == nil {
		return store.Account{}, errors.New("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return store.Account{}, fmt.Errorf("hash password: %w", err)
	}

	role := req.Role
	if role == "" {
		role = "member"
	}

	account := store.Account{
		ID:           util.NewID("acct"),
		WorkspaceID:  req.WorkspaceID,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		return store.Account{}, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

// BootstrapRequest contains first-run seeding parameters
type BootstrapRequest struct {
	WorkspaceID   string
	WorkspaceName string
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// Bootstrap seeds the workspace and an admin account, but only when the
// accounts table is still empty. Safe to call on every start.
func (s *Service) Bootstrap(ctx context.Context, req BootstrapRequest) (created bool, err error) {
	if err := s.accounts.EnsureWorkspace(ctx, req.WorkspaceID, req.WorkspaceName); err != nil {
		return false, err
	}

	count, err := s.accounts.CountAccounts(ctx)
	if err != nil {
		return false, fmt.Errorf("count accounts: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if req.AdminEmail == "" || req.AdminPassword == "" {
		return false, nil
	}

	_, err = s.CreateAccount(ctx, CreateAccountRequest{
		WorkspaceID: req.WorkspaceID,
		Email:       req.AdminEmail,
		Password:    req.AdminPassword,
		DisplayName: req.AdminName,
		Role:        "admin",
	})
	if err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}
	return true, nil
}
