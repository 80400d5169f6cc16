package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
orchestrator:
  base_url: https://api.andescap.pe
  submit_url: https://submit.andescap.pe
auth:
  roles:
    karla@andescap.pe: analyst
    admin@andescap.pe: admin
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://api.andescap.pe", cfg.Orchestrator.BaseURL)
	assert.Equal(t, "analyst", cfg.Auth.Roles["karla@andescap.pe"])
	assert.Equal(t, "viewer", cfg.Auth.DefaultRole)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 3.75, cfg.Dashboard.USDRate, 0.001)
	assert.InDelta(t, 500000, cfg.Dashboard.PlacementGoal, 0.001)
	assert.Equal(t, "migrations", cfg.Archive.MigrationsDir)
}

func TestLoad_ServiceToken(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Empty(t, cfg.Orchestrator.ServiceToken)

	cfg, err = Load(writeConfig(t, `
orchestrator:
  base_url: https://api.andescap.pe
  submit_url: https://submit.andescap.pe
  service_token: svc-tok-1
`))
	require.NoError(t, err)
	assert.Equal(t, "svc-tok-1", cfg.Orchestrator.ServiceToken)
}

func TestLoad_MissingOrchestrator(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orchestrator.base_url")
}

func TestLoad_BadDefaultRole(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+"  default_role: superuser\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_role")
}

func TestLoad_OverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
dashboard:
  placement_goal: 750000
  usd_rate: 3.6
`))
	require.NoError(t, err)
	assert.InDelta(t, 750000, cfg.Dashboard.PlacementGoal, 0.001)
	assert.InDelta(t, 3.6, cfg.Dashboard.USDRate, 0.001)
}
