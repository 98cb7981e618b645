// Package sqltype maps SQL column types onto GraphQL scalar categories and
// normalizes scanned driver values to match.
package sqltype

import (
	"strconv"
	"strings"
	"time"
)

// GraphQLType represents the category of GraphQL scalar type for a SQL column.
type GraphQLType int

const (
	// TypeString is the default type for text, dates, and unknown SQL types.
	TypeString GraphQLType = iota
	// TypeInt represents integer numeric types.
	TypeInt
	// TypeFloat represents floating-point and fixed-point numeric types.
	TypeFloat
	// TypeBoolean represents boolean types.
	TypeBoolean
)

// MapToGraphQL converts a SQL data type string to its GraphQL type category.
// Matching is case-insensitive and ignores size specifiers like (10,2).
// MySQL, PostgreSQL and SQLite type names are recognized.
func MapToGraphQL(sqlType string) GraphQLType {
	if idx := strings.Index(sqlType, "("); idx != -1 {
		sqlType = sqlType[:idx]
	}
	switch strings.ToUpper(strings.TrimSpace(sqlType)) {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT",
		"SERIAL", "BIGSERIAL", "SMALLSERIAL", "BIT", "INT2", "INT4", "INT8":
		return TypeInt
	case "FLOAT", "DOUBLE", "REAL", "DOUBLE PRECISION", "FLOAT4", "FLOAT8",
		"DECIMAL", "NUMERIC":
		return TypeFloat
	case "BOOL", "BOOLEAN":
		return TypeBoolean
	default:
		return TypeString
	}
}

// String returns the GraphQL scalar type name for schema generation.
func (t GraphQLType) String() string {
	switch t {
	case TypeInt:
		return "Int"
	case TypeFloat:
		return "Float"
	case TypeBoolean:
		return "Boolean"
	default:
		return "String"
	}
}

// Coerce converts a scanned driver value into the Go type GraphQL expects
// for t. Drivers using the text protocol hand back []byte for every column.
func Coerce(value any, t GraphQLType) any {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return Coerce(string(v), t)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case string:
		switch t {
		case TypeInt:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n
			}
		case TypeFloat:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		case TypeBoolean:
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
		return v
	case int64:
		switch t {
		case TypeBoolean:
			return v != 0
		case TypeFloat:
			return float64(v)
		case TypeString:
			return strconv.FormatInt(v, 10)
		}
		return v
	default:
		return v
	}
}
