package observability

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tidb-nested-graphql/internal/gqlrequest"
)

// requestField is one piece of request metadata, named once for spans and
// once for logs. Empty strings are omitted, as are zero ints unless keepZero.
type requestField struct {
	spanKey  string
	logKey   string
	str      string
	num      int
	isNum    bool
	keepZero bool
}

func requestFields(analysis *gqlrequest.Analysis, meta gqlrequest.ExecMeta) []requestField {
	var fields []requestField
	if analysis != nil {
		fields = append(fields,
			requestField{spanKey: "graphql.operation.name", logKey: "operation_name", str: analysis.OperationName},
			requestField{spanKey: "graphql.operation.type", logKey: "operation_type", str: analysis.OperationType},
			requestField{spanKey: "graphql.operation.hash", logKey: "operation_hash", str: analysis.OperationHash},
			requestField{spanKey: "graphql.document.size_bytes", num: analysis.Envelope.DocumentSizeBytes, isNum: true},
		)
		if analysis.Operation != nil {
			fields = append(fields,
				requestField{spanKey: "graphql.query.field_count", num: analysis.FieldCount, isNum: true, keepZero: true},
				requestField{spanKey: "graphql.query.depth", num: analysis.SelectionDepth, isNum: true, keepZero: true},
				requestField{spanKey: "graphql.query.variable_count", num: analysis.VariableCount, isNum: true, keepZero: true},
			)
		}
		if analysis.Mutation() {
			fields = append(fields, requestField{
				spanKey: "graphql.mutation.input_depth", logKey: "input_depth",
				num: analysis.InputDepth, isNum: true, keepZero: true,
			})
		}
	}
	fields = append(fields, requestField{spanKey: "schema.fingerprint", logKey: "schema_fingerprint", str: meta.Fingerprint})
	return fields
}

func (f requestField) empty() bool {
	if f.isNum {
		return f.num == 0 && !f.keepZero
	}
	return f.str == ""
}

// GraphQLSpanAttributes builds span attributes from request analysis.
func GraphQLSpanAttributes(analysis *gqlrequest.Analysis, meta gqlrequest.ExecMeta) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for _, f := range requestFields(analysis, meta) {
		if f.empty() {
			continue
		}
		if f.isNum {
			attrs = append(attrs, attribute.Int(f.spanKey, f.num))
		} else {
			attrs = append(attrs, attribute.String(f.spanKey, f.str))
		}
	}
	if analysis != nil && analysis.Operation != nil {
		attrs = append(attrs, attribute.StringSlice("graphql.operation.root_fields", analysis.RootFields))
	}
	return attrs
}

// GraphQLLogFields builds structured log fields from request analysis.
func GraphQLLogFields(ctx context.Context, analysis *gqlrequest.Analysis, meta gqlrequest.ExecMeta) []any {
	var fields []any
	for _, f := range requestFields(analysis, meta) {
		if f.logKey == "" || f.empty() {
			continue
		}
		if f.isNum {
			fields = append(fields, slog.Int(f.logKey, f.num))
		} else {
			fields = append(fields, slog.String(f.logKey, f.str))
		}
	}
	if analysis != nil && len(analysis.RootFields) > 0 {
		fields = append(fields, slog.String("root_fields", strings.Join(analysis.RootFields, ",")))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields, slog.String("trace_id", sc.TraceID().String()))
	}
	return fields
}
