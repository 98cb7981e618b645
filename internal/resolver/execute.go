package resolver

import (
	"context"

	"github.com/graphql-go/graphql"

	"tidb-nested-graphql/internal/mutationerr"
)

// Execute runs a request against schema and normalizes its error messages.
func Execute(ctx context.Context, schema graphql.Schema, request string, variables map[string]interface{}) *graphql.Result {
	result := graphql.Do(graphql.Params{
		Schema:         schema,
		RequestString:  request,
		VariableValues: variables,
		Context:        ctx,
	})
	NormalizeErrors(result)
	return result
}

// NormalizeErrors rewrites unknown input field messages to the
// `"<field>" is not defined` form and tags them invalid_input.
func NormalizeErrors(result *graphql.Result) {
	if result == nil {
		return
	}
	for i := range result.Errors {
		msg, ok := mutationerr.NormalizeMessage(result.Errors[i].Message)
		if !ok {
			continue
		}
		result.Errors[i].Message = msg
		if result.Errors[i].Extensions == nil {
			result.Errors[i].Extensions = map[string]interface{}{}
		}
		result.Errors[i].Extensions["code"] = mutationerr.CodeInvalidInput
		result.Errors[i].Extensions["kind"] = string(mutationerr.KindValidation)
	}
}
