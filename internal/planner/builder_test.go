package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidb-nested-graphql/internal/introspection"
	"tidb-nested-graphql/internal/nested"
	"tidb-nested-graphql/internal/relation"
)

func testCatalog() *relation.Catalog {
	return relation.NewCatalog(&introspection.Schema{Tables: []introspection.Table{
		{
			Name: "child",
			Columns: []introspection.Column{
				{Name: "id", DataType: "integer", IsPrimaryKey: true, IsAutoIncrement: true},
				{Name: "parent_id", DataType: "integer"},
				{Name: "name", DataType: "text"},
			},
			ForeignKeys: []introspection.ForeignKey{
				{ColumnName: "parent_id", ReferencedTable: "parent", ReferencedColumn: "id", ConstraintName: "child_parent_id_fkey", OrdinalPosition: 1},
			},
		},
		{
			Name: "parent",
			Columns: []introspection.Column{
				{Name: "id", DataType: "integer", IsPrimaryKey: true, IsAutoIncrement: true},
				{Name: "name", DataType: "text"},
			},
		},
		{
			Name: "toy",
			Columns: []introspection.Column{
				{Name: "id", DataType: "integer", IsPrimaryKey: true, IsAutoIncrement: true},
				{Name: "child_id", DataType: "integer"},
				{Name: "label", DataType: "text"},
			},
			ForeignKeys: []introspection.ForeignKey{
				{ColumnName: "child_id", ReferencedTable: "child", ReferencedColumn: "id", ConstraintName: "toy_child_id_fkey", OrdinalPosition: 1},
			},
		},
	}}, nil)
}

func normalizeUpdate(t *testing.T, c *relation.Catalog, table string, key, patch map[string]any) *nested.Mutation {
	t.Helper()
	m, err := nested.NewNormalizer(c).NormalizeUpdate(table, key, patch)
	require.NoError(t, err)
	return m
}

func TestBuildReverseCreates(t *testing.T) {
	c := testCatalog()
	m := normalizeUpdate(t, c, "parent", map[string]any{"id": 1}, map[string]any{
		"childrenUsingId": map[string]any{
			"create": []any{
				map[string]any{"name": "a"},
				map[string]any{"name": "b"},
			},
		},
	})

	plan, err := NewBuilder(c).Build(m)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 3)
	assert.Equal(t, StepID(0), plan.Root)

	root := plan.Steps[0]
	assert.Equal(t, StepUpdateByKey, root.Kind)
	assert.Equal(t, map[string]any{"id": 1}, root.Key)
	assert.Empty(t, root.Values)
	assert.Contains(t, root.Exports, "id")

	for i, name := range []string{"a", "b"} {
		step := plan.Steps[i+1]
		assert.Equal(t, StepInsert, step.Kind)
		assert.Equal(t, "child", step.Table)
		assert.Equal(t, name, step.Values["name"])
		assert.Equal(t, Ref{Step: 0, Column: "id"}, step.Values["parent_id"])
		assert.Equal(t, []StepID{0}, step.DependsOn)
		assert.Equal(t, "childrenUsingId", step.Via)
	}
}

func TestBuildDeleteOthersRunsLast(t *testing.T) {
	c := testCatalog()
	m := normalizeUpdate(t, c, "parent", map[string]any{"id": 1}, map[string]any{
		"childrenUsingId": map[string]any{
			"deleteOthers": true,
			"updateById": map[string]any{
				"id":         5,
				"childPatch": map[string]any{"name": "kept"},
			},
			"create": []any{map[string]any{"name": "a"}, map[string]any{"name": "b"}},
		},
	})

	plan, err := NewBuilder(c).Build(m)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 5)

	kinds := make([]StepKind, len(plan.Steps))
	for i, s := range plan.Steps {
		kinds[i] = s.Kind
	}
	assert.Equal(t, []StepKind{StepUpdateByKey, StepInsert, StepInsert, StepUpdateByKey, StepDeleteExcluding}, kinds)

	update := plan.Steps[3]
	assert.Equal(t, map[string]any{"id": 5}, update.Key)
	assert.Equal(t, map[string]any{"parent_id": Ref{Step: 0, Column: "id"}}, update.Scope)

	del := plan.Steps[4]
	assert.Equal(t, "child", del.Table)
	assert.Equal(t, []StepID{1, 2, 3}, del.Exclude)
	assert.Equal(t, []string{"id"}, del.KeyColumns)
	assert.Equal(t, map[string]any{"parent_id": Ref{Step: 0, Column: "id"}}, del.Scope)
	assert.Equal(t, []StepID{0, 1, 2, 3}, del.DependsOn)
	for _, id := range del.Exclude {
		assert.Contains(t, plan.Steps[id].Exports, "id")
	}
	assert.Contains(t, plan.String(), "4 delete_excluding child scope={parent_id=$0.id} keep=[1 2 3]")
}

func TestBuildDeleteOthersKeepsUpdatedRowByStep(t *testing.T) {
	c := testCatalog()
	m := normalizeUpdate(t, c, "parent", map[string]any{"id": 1}, map[string]any{
		"childrenUsingId": map[string]any{
			"deleteOthers": true,
			"updateById": []any{map[string]any{
				"id":         1,
				"childPatch": map[string]any{"id": 5, "name": "moved"},
			}},
		},
	})

	plan, err := NewBuilder(c).Build(m)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 3)

	update, del := plan.Steps[1], plan.Steps[2]
	assert.Equal(t, map[string]any{"id": 1}, update.Key)
	assert.Equal(t, 5, update.Values["id"])
	assert.Equal(t, []StepID{update.ID}, del.Exclude, "the delete keeps the row by the key it has after the patch")
}

func TestBuildForwardUpdateRunsBeforeRoot(t *testing.T) {
	c := testCatalog()
	m := normalizeUpdate(t, c, "child", map[string]any{"id": 1}, map[string]any{
		"parentToParentId": map[string]any{
			"updateById": map[string]any{
				"id":          1,
				"parentPatch": map[string]any{"name": "renamed parent"},
			},
		},
	})

	plan, err := NewBuilder(c).Build(m)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)

	parent, child := plan.Steps[0], plan.Steps[1]
	assert.Equal(t, "parent", parent.Table)
	assert.Equal(t, StepUpdateByKey, parent.Kind)
	assert.Contains(t, parent.Exports, "id")
	assert.Equal(t, "child", child.Table)
	assert.Equal(t, StepID(1), plan.Root)
	assert.Equal(t, map[string]any{"parent_id": Ref{Step: 0, Column: "id"}}, child.Values,
		"the child references the parent it updated")
	assert.Equal(t, []StepID{0}, child.DependsOn)
}

func TestBuildForwardUpdateInCreateFillsForeignKey(t *testing.T) {
	c := testCatalog()
	m, err := nested.NewNormalizer(c).NormalizeCreate("child", map[string]any{
		"name": "new child",
		"parentToParentId": map[string]any{
			"updateById": map[string]any{
				"id":          2,
				"parentPatch": map[string]any{"name": "adopted"},
			},
		},
	})
	require.NoError(t, err)

	plan, err := NewBuilder(c).Build(m)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, map[string]any{"id": 2}, plan.Steps[0].Key)
	assert.Equal(t, StepInsert, plan.Steps[1].Kind)
	assert.Equal(t, Ref{Step: 0, Column: "id"}, plan.Steps[1].Values["parent_id"])
}

func TestBuildForwardCreateFillsForeignKey(t *testing.T) {
	c := testCatalog()
	m, err := nested.NewNormalizer(c).NormalizeCreate("toy", map[string]any{
		"label": "ball",
		"childToChildId": map[string]any{
			"create": map[string]any{
				"name": "new child",
				"parentToParentId": map[string]any{
					"create": map[string]any{"name": "new parent"},
				},
			},
		},
	})
	require.NoError(t, err)

	plan, err := NewBuilder(c).Build(m)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 3)

	assert.Equal(t, "parent", plan.Steps[0].Table)
	assert.Equal(t, "child", plan.Steps[1].Table)
	assert.Equal(t, Ref{Step: 0, Column: "id"}, plan.Steps[1].Values["parent_id"])
	assert.Equal(t, "toy", plan.Steps[2].Table)
	assert.Equal(t, Ref{Step: 1, Column: "id"}, plan.Steps[2].Values["child_id"])
	assert.Equal(t, StepID(2), plan.Root)
	assert.Equal(t, []StepID{1}, plan.Steps[2].DependsOn)
	assert.Contains(t, plan.Steps[0].Exports, "id")
}

func TestBuildTwoLevelReverse(t *testing.T) {
	c := testCatalog()
	m := normalizeUpdate(t, c, "parent", map[string]any{"id": 1}, map[string]any{
		"childrenUsingId": map[string]any{
			"create": []any{map[string]any{
				"name": "c",
				"toysUsingId": map[string]any{
					"create": []any{map[string]any{"label": "t"}},
				},
			}},
		},
	})

	plan, err := NewBuilder(c).Build(m)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 3)
	assert.Equal(t, "toy", plan.Steps[2].Table)
	assert.Equal(t, Ref{Step: 1, Column: "id"}, plan.Steps[2].Values["child_id"])

	for _, s := range plan.Steps {
		for _, dep := range s.DependsOn {
			assert.Less(t, int(dep), int(s.ID), "steps only depend on earlier steps")
		}
	}
	assert.Contains(t, plan.String(), "2 insert toy")
}

func TestBuildNilMutation(t *testing.T) {
	_, err := NewBuilder(testCatalog()).Build(nil)
	assert.Error(t, err)
}

func TestPlanStep(t *testing.T) {
	p := &Plan{Steps: []WriteStep{{ID: 0, Table: "parent"}}}
	s, ok := p.Step(0)
	require.True(t, ok)
	assert.Equal(t, "parent", s.Table)
	_, ok = p.Step(1)
	assert.False(t, ok)
	_, ok = p.Step(-1)
	assert.False(t, ok)
}
