package gqlrequest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Envelope is the GraphQL payload of an HTTP request.
type Envelope struct {
	Method      string
	ContentType string

	Query         string
	OperationName string
	Variables     map[string]any

	DocumentSizeBytes int
}

// DecodeEnvelope reads the GraphQL payload from r and rewinds the body for
// the handler that executes it.
func DecodeEnvelope(r *http.Request) (Envelope, error) {
	if r == nil {
		return Envelope{}, fmt.Errorf("request is nil")
	}
	env := Envelope{
		Method:      r.Method,
		ContentType: r.Header.Get("Content-Type"),
	}

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		env.Query = q.Get("query")
		env.OperationName = q.Get("operationName")
		if raw := q.Get("variables"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &env.Variables); err != nil {
				return env, fmt.Errorf("decode variables: %w", err)
			}
		}
	case http.MethodPost:
		if r.Body == nil {
			return env, nil
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return env, err
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err := decodeBody(&env, body); err != nil {
			return env, err
		}
	}

	env.DocumentSizeBytes = len(env.Query)
	return env, nil
}

func decodeBody(env *Envelope, body []byte) error {
	mediaType, _, err := mime.ParseMediaType(env.ContentType)
	if err != nil || mediaType == "" {
		mediaType = strings.TrimSpace(env.ContentType)
	}
	if mediaType == "application/graphql" {
		env.Query = string(body)
		return nil
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	var payload struct {
		Query         string         `json:"query"`
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables"`
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return err
	}
	env.Query = payload.Query
	env.OperationName = payload.OperationName
	env.Variables = payload.Variables
	return nil
}
