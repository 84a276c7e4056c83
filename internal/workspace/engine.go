package workspace

import (
	"context"

	"github.com/google/uuid"
)

// Engine ties the read and write paths together over one Runner. It is
// stateless between calls; every operation re-reads from storage.
type Engine struct {
	runner Runner
	newID  func() string

	// AllowLeadSelfPromotion gates the documented lead self-promotion
	// quirk in the write path. On by default for compatibility; see
	// applyLeadPromotionPolicy.
	AllowLeadSelfPromotion bool
}

func NewEngine(runner Runner) *Engine {
	return &Engine{
		runner:                 runner,
		newID:                  uuid.NewString,
		AllowLeadSelfPromotion: true,
	}
}

// NewEngineWithIDs is NewEngine with a deterministic id source for tests.
func NewEngineWithIDs(runner Runner, newID func() string) *Engine {
	engine := NewEngine(runner)
	engine.newID = newID
	return engine
}

// ReadWorkspace assembles the caller's projected view of the workspace.
func (e *Engine) ReadWorkspace(ctx context.Context, ref AccountRef) (*Snapshot, error) {
	if ref.AccountID == "" {
		return nil, errAuthRequired()
	}
	st := e.runner.Store()
	identity, err := st.ResolveIdentity(ctx, ref)
	if err != nil {
		return nil, err
	}
	snapshot, err := loadSnapshot(ctx, st, identity.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return projectSnapshot(snapshot, identity), nil
}

// WriteWorkspace reconciles storage to the desired snapshot inside one
// transaction and returns the freshly re-read projected result. Either
// every entity reaches its desired state or the transaction rolls back
// and none do.
func (e *Engine) WriteWorkspace(ctx context.Context, desired *Snapshot, ref AccountRef) (*Snapshot, error) {
	if ref.AccountID == "" {
		return nil, errAuthRequired()
	}
	if desired == nil {
		return nil, errInvalid("missing workspace payload")
	}
	err := e.runner.InTx(ctx, func(st Store) error {
		identity, err := st.ResolveIdentity(ctx, ref)
		if err != nil {
			return err
		}
		return e.reconcile(ctx, st, desired, identity)
	})
	if err != nil {
		return nil, err
	}
	return e.ReadWorkspace(ctx, ref)
}
