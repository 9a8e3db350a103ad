package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-api/internal/models"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)
	return schema
}

func validateAgainst(t *testing.T, schema *jsonschema.Schema, resp *http.Response) {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.NoError(t, schema.Validate(payload))
}

func TestLoginContract(t *testing.T) {
	schema := compileSchema(t, "login.schema.json")
	srv := newAPIServer(t)
	srv.register(t, "carol", models.RoleFaculty)

	resp, _ := srv.call(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "carol@campus.test",
		"password": "password1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	validateAgainst(t, schema, resp)
}

func TestActivityStatsContract(t *testing.T) {
	schema := compileSchema(t, "activity_stats.schema.json")
	srv := newAPIServer(t)
	srv.register(t, "root", models.RoleAdmin)
	admin := srv.login(t, "root")

	resp, _ := srv.call(t, http.MethodGet, "/api/v1/activity-logs/stats", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	validateAgainst(t, schema, resp)
}
