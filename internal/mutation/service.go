package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"tidb-nested-graphql/internal/assembler"
	"tidb-nested-graphql/internal/dbexec"
	"tidb-nested-graphql/internal/logging"
	"tidb-nested-graphql/internal/mutationerr"
	"tidb-nested-graphql/internal/nested"
	"tidb-nested-graphql/internal/observability"
	"tidb-nested-graphql/internal/planner"
	"tidb-nested-graphql/internal/relation"
	"tidb-nested-graphql/internal/sqlutil"
)

// Service runs nested mutations end to end: normalize, plan, execute and
// read back, all inside one transaction.
type Service struct {
	catalog    *relation.Catalog
	normalizer *nested.Normalizer
	builder    *planner.Builder
	executor   *Executor
	assembler  *assembler.Assembler
	db         dbexec.TxBeginner
	logger     *slog.Logger
	metrics    *observability.MutationMetrics
	maxDepth   int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxDepth limits nesting below the root record.
func WithMaxDepth(depth int) ServiceOption {
	return func(s *Service) {
		s.maxDepth = depth
	}
}

// WithMetrics records mutation metrics.
func WithMetrics(m *observability.MutationMetrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService wires the mutation pipeline over catalog. db opens the
// transaction when the request context carries no MutationContext.
func NewService(catalog *relation.Catalog, dialect sqlutil.Dialect, db dbexec.TxBeginner, opts ...ServiceOption) *Service {
	s := &Service{
		catalog: catalog,
		db:      db,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.normalizer = nested.NewNormalizer(catalog, nested.WithMaxDepth(s.maxDepth))
	s.builder = planner.NewBuilder(catalog)
	s.executor = NewExecutor(catalog, dialect, db, s.logger)
	s.assembler = assembler.New(catalog, dialect)
	return s
}

// Catalog returns the relation catalog the service plans against.
func (s *Service) Catalog() *relation.Catalog {
	return s.catalog
}

// Assembler returns the result assembler, for read-only queries.
func (s *Service) Assembler() *assembler.Assembler {
	return s.assembler
}

// Normalizer returns the input normalizer.
func (s *Service) Normalizer() *nested.Normalizer {
	return s.normalizer
}

// UpdateByKey patches the row of table identified by key and applies the
// nested operations in patch. key and patch use GraphQL field names.
func (s *Service) UpdateByKey(ctx context.Context, table string, key, patch map[string]any, shape *assembler.Shape) (*assembler.ResultNode, error) {
	m, err := s.normalizer.NormalizeUpdate(table, key, patch)
	if err != nil {
		return nil, s.fail(ctx, table, nested.RootUpdate, err, time.Now())
	}
	return s.run(ctx, m, shape)
}

// Create inserts a row of table with the nested operations in input.
func (s *Service) Create(ctx context.Context, table string, input map[string]any, shape *assembler.Shape) (*assembler.ResultNode, error) {
	m, err := s.normalizer.NormalizeCreate(table, input)
	if err != nil {
		return nil, s.fail(ctx, table, nested.RootCreate, err, time.Now())
	}
	return s.run(ctx, m, shape)
}

// Run plans and executes an already normalized mutation.
func (s *Service) Run(ctx context.Context, m *nested.Mutation, shape *assembler.Shape) (*assembler.ResultNode, error) {
	return s.run(ctx, m, shape)
}

func (s *Service) run(ctx context.Context, m *nested.Mutation, shape *assembler.Shape) (*assembler.ResultNode, error) {
	start := time.Now()
	plan, err := s.builder.Build(m)
	if err != nil {
		return nil, s.fail(ctx, m.Table, m.Kind, err, start)
	}
	s.log(ctx).DebugContext(ctx, "planned nested mutation",
		slog.String("table", m.Table),
		slog.String("operation", m.Kind.String()),
		slog.Int("steps", len(plan.Steps)),
		slog.String("plan", plan.String()),
	)

	var result *assembler.ResultNode
	if mc := FromContext(ctx); mc != nil && mc.Tx() != nil {
		result, err = s.runIn(ctx, mc.Tx(), plan, shape)
	} else {
		result, err = s.runOwned(ctx, plan, shape)
	}
	if err != nil {
		return nil, s.fail(ctx, m.Table, m.Kind, err, start)
	}
	s.metrics.RecordMutation(ctx, m.Table, m.Kind.String(), "success", len(plan.Steps), time.Since(start))
	return result, nil
}

func (s *Service) runOwned(ctx context.Context, plan *planner.Plan, shape *assembler.Shape) (*assembler.ResultNode, error) {
	if s.db == nil {
		return nil, fmt.Errorf("mutation service has no database")
	}
	var result *assembler.ResultNode
	_, err := s.executor.Execute(ctx, plan, func(ctx context.Context, tx dbexec.QueryExecutor, ec *ExecutionContext) error {
		var err error
		result, err = s.readBack(ctx, tx, plan, ec, shape)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// runIn executes plan and reads the result back before the caller commits.
func (s *Service) runIn(ctx context.Context, tx dbexec.QueryExecutor, plan *planner.Plan, shape *assembler.Shape) (*assembler.ResultNode, error) {
	ec, err := s.executor.Run(ctx, tx, plan)
	if err != nil {
		return nil, err
	}
	return s.readBack(ctx, tx, plan, ec, shape)
}

// readBack assembles the root row of plan and the relations in shape.
func (s *Service) readBack(ctx context.Context, tx dbexec.QueryExecutor, plan *planner.Plan, ec *ExecutionContext, shape *assembler.Shape) (*assembler.ResultNode, error) {
	out, ok := ec.Output(plan.Root)
	if !ok {
		return nil, fmt.Errorf("root step %d produced no output", plan.Root)
	}
	key := make(map[string]any)
	for _, col := range s.catalog.PrimaryKey(plan.Table) {
		key[col] = out[col]
	}
	result, err := s.assembler.Assemble(ctx, tx, plan.Table, key, shape)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%s row could not be read back after write", plan.Table)
	}
	return result, nil
}

// fail records a failed mutation and marks the request transaction for
// rollback. err is returned unchanged.
func (s *Service) fail(ctx context.Context, table string, kind nested.RootKind, err error, start time.Time) error {
	if mc := FromContext(ctx); mc != nil {
		mc.MarkError()
	}
	classified := mutationerr.Classify(err)
	level := slog.LevelWarn
	if classified.Kind == mutationerr.KindValidation {
		level = slog.LevelInfo
	}
	s.log(ctx).Log(ctx, level, "nested mutation failed",
		slog.String("table", table),
		slog.String("operation", kind.String()),
		slog.String("code", classified.Code),
		slog.String("error", err.Error()),
	)
	s.metrics.RecordMutation(ctx, table, kind.String(), classified.Code, 0, time.Since(start))
	if classified.Kind != mutationerr.KindValidation {
		s.metrics.RecordRollback(ctx, table, classified.Code)
	}
	return err
}

// log prefers the request-scoped logger so records carry the request id.
func (s *Service) log(ctx context.Context) *slog.Logger {
	if l, ok := logging.Lookup(ctx); ok {
		return l.Logger
	}
	return s.logger
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
