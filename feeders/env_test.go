package feeders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envApp struct {
	Env   string `env:"ENV"`
	Admin string `env:"ADMIN"`
}

type envConfig struct {
	App  envApp `envPrefix:"APP_"`
	Port int    `env:"PORT"`
}

func TestEnvFeeder_OverlaysOnlyPresentVariables(t *testing.T) {
	cfg := envConfig{App: envApp{Env: "production", Admin: "root@example.com"}, Port: 80}
	t.Setenv("BASEAPP_APP_ENV", "development")
	t.Setenv("BASEAPP_PORT", "8080")

	require.NoError(t, NewEnvFeeder("BASEAPP_").Feed(&cfg))
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "root@example.com", cfg.App.Admin)
	assert.Equal(t, 8080, cfg.Port)
}

func TestEnvFeeder_ExplicitEnvironment(t *testing.T) {
	var cfg envConfig
	f := EnvFeeder{Prefix: "X_", Environment: map[string]string{"X_APP_ADMIN": "ops@example.com"}}
	require.NoError(t, f.Feed(&cfg))
	assert.Equal(t, "ops@example.com", cfg.App.Admin)
}

func TestEnvFeeder_InvalidValue(t *testing.T) {
	var cfg envConfig
	f := EnvFeeder{Environment: map[string]string{"PORT": "eighty"}}
	assert.Error(t, f.Feed(&cfg))
}
