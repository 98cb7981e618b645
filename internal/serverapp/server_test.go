package serverapp

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidb-nested-graphql/internal/config"
	"tidb-nested-graphql/internal/naming"
)

func TestHealthHandler(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	rec := httptest.NewRecorder()
	healthHandler(db, time.Second)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","database":"ok"}`, rec.Body.String())

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	rec = httptest.NewRecorder()
	healthHandler(db, time.Second)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitForDatabaseRetriesUntilPingSucceeds(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("not yet"))
	mock.ExpectPing()

	cfg := &config.Config{Database: config.DatabaseConfig{
		ConnectionTimeout:       time.Second,
		ConnectionRetryInterval: time.Millisecond,
	}}
	require.NoError(t, waitForDatabase(context.Background(), cfg, testLogger(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitForDatabaseSingleAttemptWithoutTimeout(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("down"))

	err = waitForDatabase(context.Background(), &config.Config{}, testLogger(), db)
	assert.EqualError(t, err, "down")
}

func TestBuildRouter(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{HealthCheckTimeout: time.Second}}
	graphqlHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	mux := buildRouter(cfg, testLogger(), nil, graphqlHandler, nil)

	tests := []struct {
		path string
		want int
	}{
		{path: "/graphql", want: http.StatusTeapot},
		{path: "/", want: http.StatusFound},
		{path: "/metrics", want: http.StatusNotFound},
		{path: "/admin/reload-schema", want: http.StatusNotFound},
		{path: "/health", want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func sqliteAppConfig(path string) *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			Dialect: "sqlite",
			Path:    path,
			Pool:    config.PoolConfig{MaxOpen: 2, MaxIdle: 2, MaxLifetime: time.Minute},
		},
		Server: config.ServerConfig{
			Port:               0,
			HealthCheckTimeout: time.Second,
		},
		Mutation: config.MutationConfig{MaxDepth: 2},
		Observability: config.ObservabilityConfig{
			ServiceName: "tidb-nested-graphql",
			Logging:     config.LoggingConfig{Level: "info", Format: "text"},
		},
		Naming: naming.DefaultConfig(),
	}
}

func seedSQLite(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range []string{
		`CREATE TABLE parent (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER NOT NULL REFERENCES parent(id), name TEXT NOT NULL)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
}

func postGraphQL(t *testing.T, handler http.Handler, query string) map[string]any {
	t.Helper()
	body, err := json.Marshal(map[string]string{"query": query})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestInitServesNestedMutationsOverSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	seedSQLite(t, path)

	app, err := New(sqliteAppConfig(path), testLogger())
	require.NoError(t, err)
	require.NoError(t, app.Init(context.Background()))
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	handler := app.Handler()
	require.NotNil(t, handler)

	resp := postGraphQL(t, handler, `mutation {
		createParent(input: {parent: {id: 1, name: "p", childrenUsingId: {create: [{id: 10, name: "a"}, {id: 11, name: "b"}]}}}) {
			parent { id childrenByParentId { nodes { id } } }
		}
	}`)
	require.Nil(t, resp["errors"])

	resp = postGraphQL(t, handler, `{ allChildren { nodes { id parentId } } }`)
	require.Nil(t, resp["errors"])
	nodes := resp["data"].(map[string]any)["allChildren"].(map[string]any)["nodes"].([]any)
	assert.Len(t, nodes, 2)
}

func TestInitRollsBackWholeRequestWhenAFieldFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	seedSQLite(t, path)

	app, err := New(sqliteAppConfig(path), testLogger())
	require.NoError(t, err)
	require.NoError(t, app.Init(context.Background()))
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	handler := app.Handler()
	resp := postGraphQL(t, handler, `mutation {
		first: createParent(input: {parent: {id: 1, name: "p"}}) { parent { id } }
		second: createParent(input: {parent: {id: 1, name: "dup"}}) { parent { id } }
	}`)
	require.NotNil(t, resp["errors"])

	resp = postGraphQL(t, handler, `{ allParents { nodes { id } } }`)
	require.Nil(t, resp["errors"])
	nodes := resp["data"].(map[string]any)["allParents"].(map[string]any)["nodes"].([]any)
	assert.Empty(t, nodes)
}
