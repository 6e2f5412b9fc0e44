// Package testutil provides common test assertions for SDK tests.
package testutil

import (
	"encoding/json"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RequireCode asserts that err is an oops error carrying code.
func RequireCode(t testing.TB, err error, code string) {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	assert.Equal(t, code, oopsErr.Code())
}

// SchemaProperties decodes a JSON schema and returns its top-level type and
// property names.
func SchemaProperties(t testing.TB, schema []byte) (string, []string) {
	t.Helper()
	var s struct {
		Type       string                     `json:"type"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(schema, &s), "schema is not valid JSON")

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	return s.Type, names
}
