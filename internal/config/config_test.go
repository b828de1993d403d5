package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaultsWhenOptionalFilesMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app_config.yaml", "sqlite_path: test.db\n")

	bundle, err := Load(DefaultPaths(dir))
	require.NoError(t, err)
	require.Equal(t, "test.db", bundle.App.SQLitePath)
	require.Equal(t, 5, bundle.App.MaxWorkers)
	require.Equal(t, "09:00", bundle.App.DigestTime)
	require.Equal(t, "UTC", bundle.App.DigestTimezone)
	require.Empty(t, bundle.Nodes)
	require.NotNil(t, bundle.Thresholds)
}

func TestLoadMissingAppConfigIsFatal(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(DefaultPaths(dir))
	require.Error(t, err)
}

func TestLoadParsesNodesProfilesAndThresholds(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app_config.yaml", "sqlite_path: test.db\n")
	writeFile(t, dir, "nodes.yaml", "nodes:\n  - host: 10.0.0.1\n    hostname: gpu-01\n    username: root\n")
	writeFile(t, dir, "profiles.yaml", "profiles:\n  nvidia_4090:\n    tasks:\n      gpu:\n        - gpu_count\n")
	writeFile(t, dir, "thresholds.yaml", "thresholds:\n  gpu_temp: 75\n")

	bundle, err := Load(DefaultPaths(dir))
	require.NoError(t, err)
	require.Len(t, bundle.Nodes, 1)
	require.Equal(t, "gpu-01", bundle.Nodes[0].Hostname)
	require.Contains(t, bundle.Profiles, "nvidia_4090")
	require.Equal(t, 75, bundle.Thresholds.GPUTemp())
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("GPU_INSPECTOR_SQLITE_PATH", "/override/path.db")
	t.Setenv("GPU_INSPECTOR_MAX_WORKERS", "12")
	t.Setenv("GPU_INSPECTOR_LOG_LEVEL", "debug")

	app := AppConfig{SQLitePath: "default.db", MaxWorkers: 5}
	applyEnvOverrides(&app)

	require.Equal(t, "/override/path.db", app.SQLitePath)
	require.Equal(t, 12, app.MaxWorkers)
	require.Equal(t, "debug", app.LogLevel)
}

func TestApplyEnvOverridesIgnoresInvalidMaxWorkers(t *testing.T) {
	t.Setenv("GPU_INSPECTOR_MAX_WORKERS", "not-a-number")
	app := AppConfig{MaxWorkers: 5}
	applyEnvOverrides(&app)
	require.Equal(t, 5, app.MaxWorkers)
}
