package introspection

// PrimaryKeyColumns returns all primary key columns for a table in column order.
// Returns an empty slice if the table has no primary key.
func PrimaryKeyColumns(table Table) []Column {
	var cols []Column
	for _, col := range table.Columns {
		if col.IsPrimaryKey {
			cols = append(cols, col)
		}
	}
	return cols
}

// PrimaryKeyColumnNames returns the primary key column names in column order.
func PrimaryKeyColumnNames(table Table) []string {
	var names []string
	for _, col := range table.Columns {
		if col.IsPrimaryKey {
			names = append(names, col.Name)
		}
	}
	return names
}

// HasPrimaryKey reports whether rows of the table can be addressed by key.
func HasPrimaryKey(table Table) bool {
	for _, col := range table.Columns {
		if col.IsPrimaryKey {
			return true
		}
	}
	return false
}

func markPrimaryKeys(columns []Column, primaryKeys []string) {
	for i := range columns {
		for _, pk := range primaryKeys {
			if columns[i].Name == pk {
				columns[i].IsPrimaryKey = true
				break
			}
		}
	}
}
