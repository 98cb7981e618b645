package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidb-nested-graphql/internal/introspection"
)

func parentChildSchema() *introspection.Schema {
	return &introspection.Schema{Tables: []introspection.Table{
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
			Name: "employee",
			Columns: []introspection.Column{
				{Name: "id", DataType: "integer", IsPrimaryKey: true},
				{Name: "manager_id", DataType: "integer", IsNullable: true},
			},
			ForeignKeys: []introspection.ForeignKey{
				{ColumnName: "manager_id", ReferencedTable: "employee", ReferencedColumn: "id", ConstraintName: "employee_manager_fkey", OrdinalPosition: 1},
			},
		},
		{
			Name: "note",
			Columns: []introspection.Column{
				{Name: "parent_id", DataType: "integer"},
				{Name: "body", DataType: "text"},
			},
			ForeignKeys: []introspection.ForeignKey{
				{ColumnName: "parent_id", ReferencedTable: "parent", ReferencedColumn: "id", ConstraintName: "note_parent_id_fkey", OrdinalPosition: 1},
			},
		},
		{
			Name: "parent",
			Columns: []introspection.Column{
				{Name: "id", DataType: "integer", IsPrimaryKey: true, IsAutoIncrement: true},
				{Name: "name", DataType: "text"},
			},
		},
	}}
}

func TestResolveAndDirection(t *testing.T) {
	c := NewCatalog(parentChildSchema(), nil)

	con, err := c.Resolve("child", "child_parent_id_fkey")
	require.NoError(t, err)
	assert.Equal(t, "child", con.OwningTable)
	assert.Equal(t, []string{"parent_id"}, con.OwningColumns)
	assert.Equal(t, "parent", con.ReferencedTable)
	assert.Equal(t, []string{"id"}, con.ReferencedColumns)
	assert.Equal(t, Forward, c.Direction(con, "child"))

	fromParent, err := c.Resolve("parent", "child_parent_id_fkey")
	require.NoError(t, err)
	assert.Equal(t, con, fromParent)
	assert.Equal(t, Reverse, c.Direction(con, "parent"))

	_, err = c.Resolve("note", "child_parent_id_fkey")
	assert.ErrorIs(t, err, ErrUnknownConstraint)
	_, err = c.Resolve("child", "missing")
	assert.ErrorIs(t, err, ErrUnknownConstraint)
}

func TestHasPrimaryKey(t *testing.T) {
	c := NewCatalog(parentChildSchema(), nil)

	assert.True(t, c.HasPrimaryKey("child"))
	assert.False(t, c.HasPrimaryKey("note"))
	assert.False(t, c.HasPrimaryKey("missing"))
	assert.Equal(t, []string{"id"}, c.PrimaryKey("parent"))
	assert.Nil(t, c.PrimaryKey("note"))
}

func TestLinks(t *testing.T) {
	c := NewCatalog(parentChildSchema(), nil)

	parentLinks := c.Links("parent")
	require.Len(t, parentLinks, 2)
	assert.Equal(t, Reverse, parentLinks[0].Direction)
	assert.Equal(t, "child", parentLinks[0].RelatedTable)
	assert.Equal(t, "childrenUsingId", parentLinks[0].InputField)
	assert.Equal(t, "childrenByParentId", parentLinks[0].OutputField)
	assert.Equal(t, []string{"id"}, parentLinks[0].LocalColumns())
	assert.Equal(t, []string{"parent_id"}, parentLinks[0].RemoteColumns())
	assert.Equal(t, "notesUsingId", parentLinks[1].InputField)

	childLinks := c.Links("child")
	require.Len(t, childLinks, 1)
	assert.Equal(t, Forward, childLinks[0].Direction)
	assert.Equal(t, "parentToParentId", childLinks[0].InputField)
	assert.Equal(t, "parentByParentId", childLinks[0].OutputField)
	assert.Equal(t, []string{"parent_id"}, childLinks[0].LocalColumns())
	assert.Equal(t, []string{"id"}, childLinks[0].RemoteColumns())
	assert.True(t, childLinks[0].Inverse(parentLinks[0]))
	assert.False(t, childLinks[0].Inverse(parentLinks[1]))

	link, ok := c.LinkByInputField("parent", "childrenUsingId")
	require.True(t, ok)
	assert.Equal(t, "child_parent_id_fkey", link.Constraint.Name)
	_, ok = c.LinkByOutputField("child", "parentByParentId")
	assert.True(t, ok)
	_, ok = c.LinkByInputField("child", "childrenUsingId")
	assert.False(t, ok)
}

func TestSelfReferenceHasBothDirections(t *testing.T) {
	c := NewCatalog(parentChildSchema(), nil)

	links := c.Links("employee")
	require.Len(t, links, 2)
	assert.Equal(t, Forward, links[0].Direction)
	assert.Equal(t, "employeeToManagerId", links[0].InputField)
	assert.Equal(t, Reverse, links[1].Direction)
	assert.Equal(t, "employeesUsingId", links[1].InputField)
	assert.Equal(t, "employeesByManagerId", links[1].OutputField)
}

func TestFieldMapping(t *testing.T) {
	c := NewCatalog(parentChildSchema(), nil)

	assert.Equal(t, "parentId", c.FieldName("child", "parent_id"))
	col, ok := c.ColumnForField("child", "parentId")
	require.True(t, ok)
	assert.Equal(t, "parent_id", col.Name)
	_, ok = c.ColumnForField("child", "parent_id")
	assert.False(t, ok)
	assert.Equal(t, "Child", c.TypeName("child"))
}
