package feeders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appSection struct {
	Env      string `yaml:"env" toml:"env" json:"env"`
	Timezone string `yaml:"timezone" toml:"timezone" json:"timezone"`
}

type fileConfig struct {
	App   appSection        `yaml:"app" toml:"app" json:"app"`
	Cache map[string]string `yaml:"cache" toml:"cache" json:"cache"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestYamlFeeder(t *testing.T) {
	path := writeFile(t, "config.yaml", `
app:
  env: production
  timezone: Europe/Warsaw
cache:
  viewCache: viewFrontend
`)

	var cfg fileConfig
	require.NoError(t, NewYamlFeeder(path).Feed(&cfg))
	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, "Europe/Warsaw", cfg.App.Timezone)
	assert.Equal(t, map[string]string{"viewCache": "viewFrontend"}, cfg.Cache)

	var app appSection
	require.NoError(t, NewYamlFeeder(path).FeedKey("app", &app))
	assert.Equal(t, "production", app.Env)

	var missing appSection
	require.NoError(t, NewYamlFeeder(path).FeedKey("nope", &missing))
	assert.Empty(t, missing.Env)
}

func TestYamlFeeder_Errors(t *testing.T) {
	var cfg fileConfig
	assert.ErrorIs(t, YamlFeeder{}.Feed(&cfg), ErrEmptyPath)
	assert.Error(t, NewYamlFeeder(filepath.Join(t.TempDir(), "absent.yaml")).Feed(&cfg))
	assert.Error(t, NewYamlFeeder(writeFile(t, "bad.yaml", "app: [unclosed")).Feed(&cfg))
}

func TestForFile(t *testing.T) {
	tests := []struct {
		path string
		want any
	}{
		{"a.yaml", YamlFeeder{}},
		{"a.YML", YamlFeeder{}},
		{"a.toml", TomlFeeder{}},
		{"a.json", JSONFeeder{}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f, err := ForFile(tt.path)
			require.NoError(t, err)
			assert.IsType(t, tt.want, f)
		})
	}

	_, err := ForFile("config.ini")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
