// Package mutationerr defines the error taxonomy of nested mutations:
// validation failures, missing update targets and database errors.
package mutationerr

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Kind is the machine-checkable error category.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindDatabase   Kind = "database"
)

// Extension codes reported to GraphQL clients.
const (
	CodeInvalidInput         = "invalid_input"
	CodeMissingKey           = "missing_key"
	CodeMissingRequiredField = "missing_required_field"
	CodeConflictingEdit      = "conflicting_relation_edit"
	CodeNotFound             = "not_found"
	CodeUniqueViolation      = "unique_violation"
	CodeForeignKeyViolation  = "foreign_key_violation"
	CodeNotNullViolation     = "not_null_violation"
	CodeAccessDenied         = "access_denied"
	CodeDatabase             = "database_error"
)

// Error is a classified mutation error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Err is the underlying driver error for KindDatabase.
	Err error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Extensions exposes the error code to graphql-go responses.
func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code": e.Code,
		"kind": string(e.Kind),
	}
}

// NotDefined reports a field that is absent from the accepted input shape.
func NotDefined(field string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidInput,
		Message: fmt.Sprintf("%q is not defined", field),
	}
}

// MissingKey reports an update that does not carry every key field.
func MissingKey(typeName, field string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeMissingKey,
		Message: fmt.Sprintf("missing key field %q for %s", field, typeName),
	}
}

// MissingRequiredField reports a create payload without a required column.
func MissingRequiredField(typeName, field string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeMissingRequiredField,
		Message: fmt.Sprintf("missing required field %q for %s", field, typeName),
	}
}

// Validationf builds a validation error with a custom code.
func Validationf(code, format string, args ...any) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// NotFound reports an update-by-key whose target row does not exist.
func NotFound(table string, key map[string]any) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("no row in %s matches %s", table, formatKey(key)),
	}
}

// IsKind reports whether err is a mutation error of the given kind.
func IsKind(err error, kind Kind) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind == kind
	}
	return false
}

func formatKey(key map[string]any) string {
	cols := make([]string, 0, len(key))
	for col := range key {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		parts = append(parts, fmt.Sprintf("%s=%v", col, key[col]))
	}
	return strings.Join(parts, ", ")
}

var unknownFieldPattern = regexp.MustCompile(`In field "([^"]+)": Unknown field\.`)

// NormalizeMessage rewrites a GraphQL input validation message about an
// unknown input field to the form the normalizer reports, so both layers
// describe a missing capability the same way.
func NormalizeMessage(msg string) (string, bool) {
	matches := unknownFieldPattern.FindAllStringSubmatch(msg, -1)
	if len(matches) == 0 {
		return msg, false
	}
	return NotDefined(matches[len(matches)-1][1]).Message, true
}
