package mutation

import (
	"context"
	"sync"

	"tidb-nested-graphql/internal/dbexec"
)

type mutationContextKey struct{}

// MutationContext holds the shared transaction of one GraphQL mutation
// request. Every mutation field of the request writes through it.
type MutationContext struct {
	tx        dbexec.TxExecutor
	hasError  bool
	finalized bool
	mu        sync.Mutex
}

func NewMutationContext(tx dbexec.TxExecutor) *MutationContext {
	return &MutationContext{tx: tx}
}

func (mc *MutationContext) Tx() dbexec.TxExecutor {
	return mc.tx
}

// MarkError makes Finalize roll back.
func (mc *MutationContext) MarkError() {
	mc.mu.Lock()
	mc.hasError = true
	mc.mu.Unlock()
}

// HasError reports whether any field of the request failed.
func (mc *MutationContext) HasError() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.hasError
}

// Finalize commits or rolls back the transaction based on the error state.
// The lock is held through commit so a late MarkError cannot slip in.
func (mc *MutationContext) Finalize() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.finalized {
		return nil
	}
	mc.finalized = true

	if mc.hasError {
		return mc.tx.Rollback()
	}
	return mc.tx.Commit()
}

func WithMutationContext(ctx context.Context, mc *MutationContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, mutationContextKey{}, mc)
}

func FromContext(ctx context.Context) *MutationContext {
	if ctx == nil {
		return nil
	}
	mc, _ := ctx.Value(mutationContextKey{}).(*MutationContext)
	return mc
}
