package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"tidb-nested-graphql/internal/config"
)

func TestReportValidation(t *testing.T) {
	tests := []struct {
		name    string
		result  *config.ValidationResult
		wantErr bool
		wantLog []string
	}{
		{
			name:   "empty result passes",
			result: &config.ValidationResult{},
		},
		{
			name: "warnings alone pass",
			result: &config.ValidationResult{Warnings: []config.ValidationWarning{
				{Field: "mutation.max_depth", Message: "deep nesting"},
			}},
			wantLog: []string{"configuration warning", "mutation.max_depth"},
		},
		{
			name: "errors fail",
			result: &config.ValidationResult{Errors: []config.ValidationError{
				{Field: "database.dialect", Message: "unsupported", Hint: "use sqlite"},
			}},
			wantErr: true,
			wantLog: []string{"configuration error", "database.dialect", "use sqlite"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := reportValidation(slog.New(slog.NewTextHandler(&buf, nil)), tt.result)
			if tt.wantErr {
				assert.ErrorIs(t, err, errInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
			if len(tt.wantLog) == 0 {
				assert.Empty(t, buf.String())
			}
			for _, want := range tt.wantLog {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestVersionString(t *testing.T) {
	Version, Commit = "1.2.3", "abc123"
	t.Cleanup(func() { Version, Commit = "dev", "none" })
	assert.Equal(t, "tidb-nested-graphql 1.2.3 (abc123)", versionString())
}
