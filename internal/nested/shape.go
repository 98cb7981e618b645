package nested

import (
	"tidb-nested-graphql/internal/introspection"
	"tidb-nested-graphql/internal/relation"
)

// Nested input field names shared by every relation input.
const (
	FieldCreate       = "create"
	FieldDeleteOthers = "deleteOthers"
)

// Capabilities lists what a nested input for a link accepts. The GraphQL
// schema and the normalizer both derive the accepted input shape from it.
type Capabilities struct {
	Create bool
	// CreateMany is set for reverse links, whose create takes a list.
	CreateMany bool
	// UpdateField names the update-by-key field, empty when not offered.
	UpdateField  string
	DeleteOthers bool
}

// CapabilitiesOf returns the accepted operations for link.
func CapabilitiesOf(c *relation.Catalog, link relation.Link) Capabilities {
	caps := Capabilities{Create: true}
	keyed := c.HasPrimaryKey(link.RelatedTable)
	if keyed {
		caps.UpdateField = c.Namer().UpdateByKeyField(c.PrimaryKey(link.RelatedTable))
	}
	if link.Direction == relation.Reverse {
		caps.CreateMany = true
		caps.DeleteOthers = keyed
	}
	return caps
}

// Fields returns the accepted field names in schema order.
func (caps Capabilities) Fields() []string {
	var fields []string
	if caps.Create {
		fields = append(fields, FieldCreate)
	}
	if caps.UpdateField != "" {
		fields = append(fields, caps.UpdateField)
	}
	if caps.DeleteOthers {
		fields = append(fields, FieldDeleteOthers)
	}
	return fields
}

// RecordColumns returns the columns a create or patch of table accepts when
// reached through via (nil at the root). Foreign key columns filled from
// the parent row and generated columns are not accepted.
func RecordColumns(c *relation.Catalog, table string, via *relation.Link) []introspection.Column {
	t, ok := c.Table(table)
	if !ok {
		return nil
	}
	filled := make(map[string]bool)
	if via != nil && via.Direction == relation.Reverse {
		for _, col := range via.RemoteColumns() {
			filled[col] = true
		}
	}
	var cols []introspection.Column
	for _, col := range t.Columns {
		if col.IsGenerated || filled[col.Name] {
			continue
		}
		cols = append(cols, col)
	}
	return cols
}

// RecordLinks returns the nested relations a record of table accepts when
// reached through via. The way back to the parent is not offered.
func RecordLinks(c *relation.Catalog, table string, via *relation.Link) []relation.Link {
	var links []relation.Link
	for _, l := range c.Links(table) {
		if via != nil && l.Inverse(*via) {
			continue
		}
		links = append(links, l)
	}
	return links
}
