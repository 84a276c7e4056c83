package workspace

import (
	"context"
	"database/sql"
	"errors"

	"reportdeck/api/internal/rbac"
	"reportdeck/api/internal/store"
)

// PgRunner hands out Postgres-backed Stores. InTx binds every statement
// of fn to one transaction on one pooled connection; WithTx guarantees
// the connection is released whether fn commits or fails.
type PgRunner struct {
	db *sql.DB
}

func NewPgRunner(db *sql.DB) *PgRunner {
	return &PgRunner{db: db}
}

func (r *PgRunner) Store() Store {
	return &pgStore{WorkspaceStore: store.NewWorkspaceStore(r.db)}
}

func (r *PgRunner) InTx(ctx context.Context, fn func(Store) error) error {
	return store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&pgStore{WorkspaceStore: store.NewWorkspaceStore(tx)})
	})
}

type pgStore struct {
	*store.WorkspaceStore
}

func (s *pgStore) ResolveIdentity(ctx context.Context, ref AccountRef) (Identity, error) {
	if ref.AccountID == "" {
		return Identity{}, errAuthRequired()
	}
	account, employeeID, err := s.ResolveAccount(ctx, ref.AccountID)
	if errors.Is(err, store.ErrAccountNotFound) {
		return Identity{}, errAuthRequired()
	}
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		AccountID:   account.ID,
		EmployeeID:  employeeID,
		Email:       account.Email,
		Role:        rbac.Normalize(account.Role),
		WorkspaceID: account.WorkspaceID,
	}, nil
}
