package workspace

import "context"

// MutatorContext is handed to draft mutators.
type MutatorContext struct {
	// NewID returns a fresh collision-resistant identifier.
	NewID func() string
}

// Mutator edits the draft in place. current is the read-only projection
// the draft was cloned from; returning an error aborts the whole
// operation before any write happens. The returned value is passed
// through to the DraftMutate caller.
type Mutator func(draft *Snapshot, current *Snapshot, mctx MutatorContext) (any, error)

// DraftMutate is the narrow-edit path: load and project the current
// workspace, clone it as a draft, let the mutator rewrite the draft,
// then hand the whole draft to the reconciler and return the re-read
// projection together with the mutator's result.
func (e *Engine) DraftMutate(ctx context.Context, ref AccountRef, mutate Mutator) (*Snapshot, any, error) {
	if ref.AccountID == "" {
		return nil, nil, errAuthRequired()
	}
	current, err := e.ReadWorkspace(ctx, ref)
	if err != nil {
		return nil, nil, err
	}

	draft := current.Clone()
	result, err := mutate(draft, current, MutatorContext{NewID: e.newID})
	if err != nil {
		return nil, nil, err
	}

	updated, err := e.WriteWorkspace(ctx, draft, ref)
	if err != nil {
		return nil, nil, err
	}
	return updated, result, nil
}
