package naming

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeAndFieldNames(t *testing.T) {
	namer := Default()

	assert.Equal(t, "Parent", namer.TypeName("parent"))
	assert.Equal(t, "Child", namer.TypeName("children"))
	assert.Equal(t, "OrderItem", namer.TypeName("order_items"))
	assert.Equal(t, "parentId", namer.FieldName("parent_id"))
	assert.Equal(t, "name", namer.FieldName("name"))
	assert.Equal(t, "children", namer.PluralField("child"))
	assert.Equal(t, "orderItems", namer.PluralField("order_items"))
}

func TestRelationFieldNames(t *testing.T) {
	namer := Default()

	assert.Equal(t, "parentByParentId", namer.ForwardOutputField("parent", []string{"parent_id"}))
	assert.Equal(t, "childrenByParentId", namer.ReverseOutputField("child", []string{"parent_id"}))
	assert.Equal(t, "parentToParentId", namer.ForwardInputField("parent", []string{"parent_id"}))
	assert.Equal(t, "childrenUsingId", namer.ReverseInputField("child", []string{"id"}))
	assert.Equal(t, "childrenByTenantIdAndParentId",
		namer.ReverseOutputField("child", []string{"tenant_id", "parent_id"}))
}

func TestOperationNames(t *testing.T) {
	namer := Default()

	assert.Equal(t, "updateById", namer.UpdateByKeyField([]string{"id"}))
	assert.Equal(t, "parentPatch", namer.PatchField("parent"))
	assert.Equal(t, "updateParentById", namer.UpdateMutationName("parent", []string{"id"}))
	assert.Equal(t, "createChild", namer.CreateMutationName("child"))
	assert.Equal(t, "parentById", namer.ByKeyQueryName("parent", []string{"id"}))
	assert.Equal(t, "allParents", namer.AllQueryName("parent"))
	assert.Equal(t, "allChildren", namer.AllQueryName("children"))
}

func TestPluralOverrides(t *testing.T) {
	namer := New(Config{
		PluralOverrides:   map[string]string{"person": "people"},
		SingularOverrides: map[string]string{"data": "datum"},
	}, nil)

	assert.Equal(t, "people", namer.Pluralize("person"))
	assert.Equal(t, "datum", namer.Singularize("data"))
	assert.Equal(t, "peopleUsingId", namer.ReverseInputField("person", []string{"id"}))
}

func TestReservedTypeNamesAreSuffixed(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	namer := New(DefaultConfig(), logger)

	assert.Equal(t, "Query_", namer.TypeName("query"))
	assert.Equal(t, "UserInput_", namer.TypeName("user_input"))
	assert.Contains(t, buf.String(), "auto-suffixed")
}

func TestRegisterFieldCollision(t *testing.T) {
	namer := Default()

	assert.Equal(t, "childrenByParentId", namer.RegisterField("Parent", "childrenByParentId", "fk:a"))
	assert.Equal(t, "childrenByParentId2", namer.RegisterField("Parent", "childrenByParentId", "fk:b"))
	assert.Equal(t, "childrenByParentId", namer.RegisterField("Parent", "childrenByParentId", "fk:a"), "same source is stable")

	assert.Equal(t, "Parent", namer.RegisterType("parent"))
	assert.Equal(t, "Parent2", namer.RegisterType("parents"))

	namer.Reset()
	assert.Equal(t, "Parent", namer.RegisterType("parents"))
}

func TestConstraintTypeName(t *testing.T) {
	n := Default()
	assert.Equal(t, "ChildParentIdFkey", n.ConstraintTypeName("child", "child_parent_id_fkey"))
	assert.Equal(t, "ChildParentIdFkey", n.ConstraintTypeName("child", "child_parent_id_fkey"), "same constraint keeps its name")
	assert.Equal(t, "FkParent", n.ConstraintTypeName("child", "FK_PARENT"))
	assert.NotEqual(t, "FkParent", n.ConstraintTypeName("toy", "fk_parent"), "same name on another table is suffixed")
}

func TestInflectionOnLastSegment(t *testing.T) {
	n := New(Config{PluralOverrides: map[string]string{"person": "people"}}, nil)
	assert.Equal(t, "order_line_items", n.Pluralize("order_line_item"))
	assert.Equal(t, "project_people", n.Pluralize("project_person"))
	assert.Equal(t, "keyless_child", n.Singularize("keyless_children"))
}
