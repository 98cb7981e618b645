package assembler

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"tidb-nested-graphql/internal/dbexec"
	"tidb-nested-graphql/internal/introspection"
	"tidb-nested-graphql/internal/relation"
	"tidb-nested-graphql/internal/sqlutil"
)

func openCatalog(t *testing.T) (*dbexec.StandardExecutor, *relation.Catalog) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range []string{
		`CREATE TABLE parent (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER REFERENCES parent(id), name TEXT NOT NULL)`,
		`INSERT INTO parent (id, name) VALUES (1, 'p1'), (2, 'p2')`,
		`INSERT INTO child (id, parent_id, name) VALUES (3, 1, 'c3'), (1, 1, 'c1'), (2, NULL, 'c2')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	schema, err := introspection.IntrospectDatabaseContext(context.Background(), db, sqlutil.SQLite, "")
	require.NoError(t, err)
	return dbexec.NewStandardExecutor(db), relation.NewCatalog(schema, nil)
}

func TestAssembleReverseRelation(t *testing.T) {
	q, c := openCatalog(t)
	link, ok := c.LinkByOutputField("parent", "childrenByParentId")
	require.True(t, ok)

	shape := &Shape{}
	shape.AddColumn("name", "name")
	children := shape.AddRelation("childrenByParentId", link)
	children.AddColumn("name", "name")

	node, err := New(c, sqlutil.SQLite).Assemble(context.Background(), q, "parent", map[string]any{"id": 1}, shape)
	require.NoError(t, err)
	require.NotNil(t, node)

	assert.Equal(t, map[string]any{
		"name": "p1",
		"childrenByParentId": map[string]any{
			"nodes": []any{
				map[string]any{"name": "c1"},
				map[string]any{"name": "c3"},
			},
		},
	}, node.Map())
}

func TestAssembleForwardRelation(t *testing.T) {
	q, c := openCatalog(t)
	link, ok := c.LinkByOutputField("child", "parentByParentId")
	require.True(t, ok)

	shape := &Shape{}
	shape.AddRelation("parentByParentId", link).AddColumn("name", "name")
	a := New(c, sqlutil.SQLite)

	node, err := a.Assemble(context.Background(), q, "child", map[string]any{"id": 3}, shape)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"parentByParentId": map[string]any{"name": "p1"}}, node.Map())

	orphan, err := a.Assemble(context.Background(), q, "child", map[string]any{"id": 2}, shape)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"parentByParentId": nil}, orphan.Map())
}

func TestAssembleMissingRow(t *testing.T) {
	q, c := openCatalog(t)

	node, err := New(c, sqlutil.SQLite).Assemble(context.Background(), q, "parent", map[string]any{"id": 99}, nil)
	require.NoError(t, err)
	assert.Nil(t, node)

	_, err = New(c, sqlutil.SQLite).Assemble(context.Background(), q, "parent", nil, nil)
	assert.Error(t, err)
}

func TestAssembleAllOrdersByKey(t *testing.T) {
	q, c := openCatalog(t)

	nodes, err := New(c, sqlutil.SQLite).AssembleAll(context.Background(), q, "child", FullShape(c, "child", 0))
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	for i, node := range nodes {
		assert.Equal(t, int64(i+1), node.Values["id"])
	}
	assert.Nil(t, nodes[1].Values["parentId"])
}

func TestShapeMergesRepeatedFields(t *testing.T) {
	_, c := openCatalog(t)
	link, _ := c.LinkByOutputField("parent", "childrenByParentId")

	shape := &Shape{}
	shape.AddColumn("name", "name")
	shape.AddColumn("name", "name")
	first := shape.AddRelation("childrenByParentId", link)
	second := shape.AddRelation("childrenByParentId", link)

	assert.Len(t, shape.Columns, 1)
	assert.Len(t, shape.Relations, 1)
	assert.Same(t, first, second)
}

func TestFullShapeDepth(t *testing.T) {
	_, c := openCatalog(t)

	shallow := FullShape(c, "parent", 0)
	assert.Len(t, shallow.Columns, 2)
	assert.Empty(t, shallow.Relations)

	deep := FullShape(c, "parent", 1)
	require.Len(t, deep.Relations, 1)
	assert.Equal(t, "childrenByParentId", deep.Relations[0].Field)
	assert.Len(t, deep.Relations[0].Shape.Columns, 3)
	assert.Empty(t, deep.Relations[0].Shape.Relations)
}
