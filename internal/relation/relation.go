// Package relation resolves foreign-key constraints into directed links
// between tables. Direction is always derived from the table currently being
// mutated: a table that holds the foreign key sees a forward link, the table
// it references sees a reverse link.
package relation

import (
	"errors"
	"fmt"
)

// ErrUnknownConstraint is returned when a constraint name does not involve the table.
var ErrUnknownConstraint = errors.New("unknown constraint")

// Direction of a relation relative to the current table.
type Direction int

const (
	// Forward: the current table holds the foreign key.
	Forward Direction = iota
	// Reverse: related rows hold a foreign key pointing at the current table.
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Constraint is a named foreign key. The owning table always holds the FK
// values; columns are positional pairs.
type Constraint struct {
	Name              string
	OwningTable       string
	OwningColumns     []string
	ReferencedTable   string
	ReferencedColumns []string
}

// DirectionFrom returns the direction of c as seen from currentTable.
// Self references resolve as Forward.
func DirectionFrom(c Constraint, currentTable string) Direction {
	if currentTable == c.OwningTable {
		return Forward
	}
	return Reverse
}

// Link is a constraint viewed from one table, with its GraphQL field names.
type Link struct {
	Constraint Constraint
	Direction  Direction
	// Table is the table the link is viewed from.
	Table string
	// RelatedTable is the table on the other side.
	RelatedTable string
	// InputField is the nested input field name on Table's patch and create types.
	InputField string
	// OutputField is the read-back field name on Table's object type.
	OutputField string
}

// LocalColumns are the link's columns on Table.
func (l Link) LocalColumns() []string {
	if l.Direction == Forward {
		return l.Constraint.OwningColumns
	}
	return l.Constraint.ReferencedColumns
}

// RemoteColumns are the link's columns on RelatedTable, positionally paired
// with LocalColumns.
func (l Link) RemoteColumns() []string {
	if l.Direction == Forward {
		return l.Constraint.ReferencedColumns
	}
	return l.Constraint.OwningColumns
}

// Inverse reports whether other is the same constraint seen from the other side.
func (l Link) Inverse(other Link) bool {
	return l.Constraint.Name == other.Constraint.Name &&
		l.Constraint.OwningTable == other.Constraint.OwningTable &&
		l.Direction != other.Direction
}

func (l Link) String() string {
	return fmt.Sprintf("%s %s->%s (%s)", l.Constraint.Name, l.Table, l.RelatedTable, l.Direction)
}
