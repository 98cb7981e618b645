package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"tidb-nested-graphql/internal/mutationerr"
)

// GraphQLErrorsMiddleware rewrites unknown input field errors in GraphQL
// responses to the `"<field>" is not defined` form and tags them with the
// invalid_input code. Other responses pass through unchanged.
func GraphQLErrorsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			buffered := &bufferedResponseWriter{header: w.Header(), statusCode: http.StatusOK}
			next.ServeHTTP(buffered, r)

			body := buffered.body.Bytes()
			if rewritten, ok := normalizeResponseErrors(body); ok {
				body = rewritten
				w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			}
			w.WriteHeader(buffered.statusCode)
			_, _ = w.Write(body)
		})
	}
}

type bufferedResponseWriter struct {
	header     http.Header
	statusCode int
	written    bool
	body       bytes.Buffer
}

func (w *bufferedResponseWriter) Header() http.Header {
	return w.header
}

func (w *bufferedResponseWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
	}
}

func (w *bufferedResponseWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.body.Write(b)
}

func normalizeResponseErrors(body []byte) ([]byte, bool) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false
	}
	raw, ok := payload["errors"]
	if !ok {
		return nil, false
	}
	var errs []map[string]any
	if err := json.Unmarshal(raw, &errs); err != nil {
		return nil, false
	}

	changed := false
	for _, e := range errs {
		msg, _ := e["message"].(string)
		normalized, ok := mutationerr.NormalizeMessage(msg)
		if !ok {
			continue
		}
		changed = true
		e["message"] = normalized
		ext, _ := e["extensions"].(map[string]any)
		if ext == nil {
			ext = map[string]any{}
		}
		ext["code"] = mutationerr.CodeInvalidInput
		ext["kind"] = string(mutationerr.KindValidation)
		e["extensions"] = ext
	}
	if !changed {
		return nil, false
	}

	encoded, err := json.Marshal(errs)
	if err != nil {
		return nil, false
	}
	payload["errors"] = encoded
	out, err := json.Marshal(payload)
	if err != nil {
		return nil, false
	}
	return out, true
}
