package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AuthStore covers the account/session tables the HTTP auth layer needs.
// It runs autocommit against the pool; nothing here participates in a
// reconciliation transaction.
type AuthStore struct {
	db *sql.DB
}

func NewAuthStore(db *sql.DB) *AuthStore {
	return &AuthStore{db: db}
}

func (s *AuthStore) DB() *sql.DB {
	return s.db
}

func (s *AuthStore) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	var account Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, email, display_name, COALESCE(password_hash, ''), role
		FROM accounts
		WHERE LOWER(email)=LOWER($1)
	`, email).Scan(&account.ID, &account.WorkspaceID, &account.Email, &account.DisplayName, &account.PasswordHash, &account.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("lookup account by email: %w", err)
	}
	return account, nil
}

func (s *AuthStore) GetAccountByID(ctx context.Context, accountID string) (Account, error) {
	var account Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, email, display_name, COALESCE(password_hash, ''), role
		FROM accounts
		WHERE id=$1
	`, accountID).Scan(&account.ID, &account.WorkspaceID, &account.Email, &account.DisplayName, &account.PasswordHash, &account.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("lookup account: %w", err)
	}
	return account, nil
}

func (s *AuthStore) CreateAccount(ctx context.Context, account Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, workspace_id, email, display_name, password_hash, role)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, account.ID, account.WorkspaceID, normalizeEmail(account.Email), account.DisplayName, account.PasswordHash, account.Role)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *AuthStore) CountAccounts(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return count, nil
}

func (s *AuthStore) EnsureWorkspace(ctx context.Context, workspaceID, name string) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, workspaceID, name); err != nil {
		return fmt.Errorf("ensure workspace: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO workspace_settings (workspace_id, name, hours_per_week, revision)
		VALUES ($1, $2, 37, 0)
		ON CONFLICT (workspace_id) DO NOTHING
	`, workspaceID, name); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	return nil
}

func (s *AuthStore) SaveRefreshSession(ctx context.Context, tokenHash, accountID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, account_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET account_id=EXCLUDED.account_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, accountID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *AuthStore) LookupRefreshSession(ctx context.Context, tokenHash string) (Account, error) {
	const query = `
		SELECT a.id, a.workspace_id, a.email, a.display_name, a.role
		FROM refresh_sessions rs
		JOIN accounts a ON a.id = rs.account_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var account Account
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&account.ID, &account.WorkspaceID, &account.Email, &account.DisplayName, &account.Role)
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

func (s *AuthStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *AuthStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *AuthStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// Ping verifies the database connection is alive
func (s *AuthStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
