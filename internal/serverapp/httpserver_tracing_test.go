package serverapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"tidb-nested-graphql/internal/config"
)

func installSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tp.RegisterSpanProcessor(recorder)
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(original)
	})
	return recorder
}

func TestWrapHTTPHandlerNamesRootSpanByRoute(t *testing.T) {
	recorder := installSpanRecorder(t)
	cfg := &config.Config{Observability: config.ObservabilityConfig{TracingEnabled: true}}
	handler := wrapHTTPHandler(cfg, testLogger(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, target := range []string{"/graphql", "/parents/1"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Contains(t, names, "POST /graphql")
	assert.Contains(t, names, "POST /*")
}

func TestWrapHTTPHandlerUntouchedWithoutTelemetry(t *testing.T) {
	recorder := installSpanRecorder(t)
	handler := wrapHTTPHandler(&config.Config{}, testLogger(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, recorder.Ended())
}

func TestHTTPRootSpanName(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{method: http.MethodPost, path: "/graphql", want: "POST /graphql"},
		{method: http.MethodGet, path: "/health", want: "GET /health"},
		{method: http.MethodGet, path: "/metrics", want: "GET /metrics"},
		{method: http.MethodGet, path: "/", want: "GET /"},
		{method: http.MethodGet, path: "/admin/reload-schema", want: "GET /*"},
		{method: "", path: "/graphql", want: "HTTP /graphql"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.path, nil)
		r.Method = tt.method
		assert.Equal(t, tt.want, httpRootSpanName(r), tt.path)
	}
	assert.Equal(t, "HTTP /*", httpRootSpanName(nil))
}
