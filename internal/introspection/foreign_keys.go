package introspection

import (
	"cmp"
	"slices"
)

// ForeignKeyConstraint is one foreign key with its columns in key order.
type ForeignKeyConstraint struct {
	ConstraintName    string
	ReferencedTable   string
	ColumnNames       []string
	ReferencedColumns []string
}

// ForeignKeyConstraints folds the per-column rows of table.ForeignKeys into
// constraints. Named constraints come first, ordered by name; rows without
// a constraint name each form their own constraint, in row order.
func ForeignKeyConstraints(table Table) []ForeignKeyConstraint {
	if len(table.ForeignKeys) == 0 {
		return nil
	}

	groups := make(map[string][]ForeignKey)
	var names []string
	var unnamed []ForeignKey
	for _, fk := range table.ForeignKeys {
		if fk.ConstraintName == "" {
			unnamed = append(unnamed, fk)
			continue
		}
		if _, seen := groups[fk.ConstraintName]; !seen {
			names = append(names, fk.ConstraintName)
		}
		groups[fk.ConstraintName] = append(groups[fk.ConstraintName], fk)
	}
	slices.Sort(names)

	result := make([]ForeignKeyConstraint, 0, len(names)+len(unnamed))
	for _, name := range names {
		rows := groups[name]
		slices.SortStableFunc(rows, func(a, b ForeignKey) int {
			return cmp.Compare(a.OrdinalPosition, b.OrdinalPosition)
		})
		result = append(result, constraintFromRows(rows))
	}
	for _, fk := range unnamed {
		result = append(result, constraintFromRows([]ForeignKey{fk}))
	}
	return result
}

func constraintFromRows(rows []ForeignKey) ForeignKeyConstraint {
	c := ForeignKeyConstraint{
		ConstraintName:    rows[0].ConstraintName,
		ReferencedTable:   rows[0].ReferencedTable,
		ColumnNames:       make([]string, len(rows)),
		ReferencedColumns: make([]string, len(rows)),
	}
	for i, fk := range rows {
		c.ColumnNames[i] = fk.ColumnName
		c.ReferencedColumns[i] = fk.ReferencedColumn
	}
	return c
}
