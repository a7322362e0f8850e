package cmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/GoCodeAlone/baseapp"
	"github.com/GoCodeAlone/baseapp/cmd/baseapp/cmd"
	"github.com/GoCodeAlone/baseapp/config"
	"github.com/GoCodeAlone/baseapp/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
app:
  name: Demo
  env: production
  timezone: UTC
  admin: ops@example.com
database:
  driver: sqlite
  dbname: "%DB%"
crypt:
  key: test-secret
cache:
  services:
    modelsCache: modelsFrontend
modelsFrontend:
  adapter: Data
  backend: modelsBackend
modelsBackend:
  adapter: Memory
paths:
  logs: "%LOGS%"
`

func writeConfig(t *testing.T) string {
	t.Helper()
	testutil.Isolate(t, config.EnvPrefix)
	dir := t.TempDir()
	content := bytes.ReplaceAll([]byte(testConfig), []byte("%DB%"), []byte(filepath.Join(dir, "app.db")))
	content = bytes.ReplaceAll(content, []byte("%LOGS%"), []byte(filepath.Join(dir, "logs")))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cmd.NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	rootCmd := cmd.NewRootCommand()
	assert.Equal(t, "baseapp", rootCmd.Use)

	out, err := run(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "frontend and backend modules")
	for _, sub := range []string{"serve", "routes", "match", "request"} {
		assert.Contains(t, out, sub)
	}
}

func TestRoutesCommand(t *testing.T) {
	out, err := run(t, "routes", "--config", writeConfig(t))
	require.NoError(t, err)

	assert.Contains(t, out, "backend.Module")
	assert.Contains(t, out, "frontend.Module")
	assert.Contains(t, out, "/admin/:controller/:action/:params")
	assert.Contains(t, out, "backend/index/index")
	assert.Contains(t, out, "frontend/:controller/:action")
}

func TestMatchCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains []string
	}{
		{
			name:     "admin rule",
			args:     []string{"match", "/admin/users/delete/42"},
			contains: []string{`"target": "backend/users/delete"`, `"42"`, `"notFound": false`},
		},
		{
			name:     "named int",
			args:     []string{"match", "/products/7"},
			contains: []string{`"target": "frontend/products/index"`, `"id": "7"`},
		},
		{
			name:     "not found",
			args:     []string{"match", "/~x", "-X", "POST"},
			contains: []string{`"target": "frontend/index/notFound"`, `"notFound": true`},
		},
	}

	cfgPath := writeConfig(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, append(tt.args, "--config", cfgPath)...)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
		})
	}
}

func TestRequestCommand(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := run(t, "request", "backend/users/count", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)

	out, err = run(t, "request", "frontend/widgets/users", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "0 users\n", out)

	_, err = run(t, "request", "backend/missing/index", "--config", cfgPath)
	assert.ErrorIs(t, err, baseapp.ErrControllerNotFound)
}

func TestParseLocation(t *testing.T) {
	loc, err := cmd.ParseLocation("/backend/users/delete/", []string{"42"})
	require.NoError(t, err)
	assert.Equal(t, baseapp.Location{Module: "backend", Controller: "users", Action: "delete", Params: []any{"42"}}, loc)

	for _, bad := range []string{"backend", "backend/users", "a/b/c/d", "a//c"} {
		_, err := cmd.ParseLocation(bad, nil)
		assert.ErrorIs(t, err, cmd.ErrInvalidLocation, bad)
	}
}

func TestBootErrorsAreReported(t *testing.T) {
	_, err := run(t, "serve", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = run(t, "routes", "--config", writeConfig(t), "--log-format", "xml")
	assert.ErrorContains(t, err, "unknown log format")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("BASEAPP_APP_TIMEZONE=Mars/Olympus\n"), 0o600))
	_, err = run(t, "routes", "--config", writeConfig(t), "--env-file", envFile)
	var bootErr *baseapp.BootError
	require.ErrorAs(t, err, &bootErr)
	assert.Equal(t, "timezone", bootErr.Step)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := cmd.NewLogger(&buf, cmd.LogFormatAuto, "production")
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	logger, err = cmd.NewLogger(&buf, cmd.LogFormatAuto, "development")
	require.NoError(t, err)
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}
