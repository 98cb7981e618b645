// Package introspection discovers the relation catalog (tables, columns,
// primary keys and foreign-key constraints) used by the nested mutation core.
// Loaders exist for MySQL/TiDB, PostgreSQL and SQLite.
package introspection

// Column represents a database column
type Column struct {
	Name            string
	DataType        string
	IsNullable      bool
	IsPrimaryKey    bool
	IsGenerated     bool
	IsAutoIncrement bool
	HasDefault      bool
	ColumnDefault   string
	Comment         string
}

// ForeignKey represents one column of a foreign key constraint.
type ForeignKey struct {
	ColumnName       string // e.g., "parent_id"
	ReferencedTable  string // e.g., "parent"
	ReferencedColumn string // e.g., "id"
	ConstraintName   string // e.g., "child_parent_id_fkey"
	OrdinalPosition  int    // Column position within the FK constraint
}

// Table represents a database table
type Table struct {
	Name        string
	Comment     string
	Columns     []Column
	ForeignKeys []ForeignKey
}

// Schema represents the introspected database schema
type Schema struct {
	Tables []Table
}

// TableByName returns the table with the given name.
func (s *Schema) TableByName(name string) (*Table, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// ColumnByName returns the column with the given name.
func (t *Table) ColumnByName(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// IsRequiredInsertColumn reports whether an insert must supply a value for col.
// Nullable, defaulted, generated and auto-increment columns are optional.
func IsRequiredInsertColumn(col Column) bool {
	if col.IsGenerated || col.IsNullable || col.HasDefault || col.IsAutoIncrement {
		return false
	}
	return true
}
