package gqlrequest

import "context"

type ctxKey int

const (
	analysisKey ctxKey = iota
	execMetaKey
)

// ExecMeta is the request metadata attached to logs, spans and metrics.
type ExecMeta struct {
	// Fingerprint identifies the relation catalog the schema was built from.
	Fingerprint string

	OperationName string
	OperationType string
	OperationHash string
	InputDepth    int
}

// WithAnalysis stores the request analysis on ctx.
func WithAnalysis(ctx context.Context, analysis *Analysis) context.Context {
	return withValue(ctx, analysisKey, analysis)
}

// AnalysisFromContext returns the analysis stored by WithAnalysis, or nil.
func AnalysisFromContext(ctx context.Context) *Analysis {
	analysis, _ := value[*Analysis](ctx, analysisKey)
	return analysis
}

// WithExecMeta stores meta on ctx.
func WithExecMeta(ctx context.Context, meta ExecMeta) context.Context {
	return withValue(ctx, execMetaKey, meta)
}

// ExecMetaFromContext returns the metadata stored by WithExecMeta.
func ExecMetaFromContext(ctx context.Context) (ExecMeta, bool) {
	return value[ExecMeta](ctx, execMetaKey)
}

func withValue(ctx context.Context, key ctxKey, v any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func value[T any](ctx context.Context, key ctxKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}
