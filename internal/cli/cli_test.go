package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCLI(t *testing.T) {
	cmd := BuildCLI()

	assert.NotNil(t, cmd)
	assert.Equal(t, "taskexec", cmd.Use)

	commands := cmd.Commands()
	names := make(map[string]bool)
	for _, c := range commands {
		names[c.Use] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["status"])

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "configs/default.yaml", configFlag.DefValue)
}

func TestLoadConfigParsesExecutorTree(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("executor:\n  queueSize: 5\nmetrics:\n  enabled: false\n"), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.Metrics.Enabled)
	assert.NotNil(t, cfg.Executor)
}

func TestLoadConfigMissingFileIsError(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRunTaskExecutesScriptLocally(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("executor:\n  pollInterval: 10ms\n"), 0o644))
	configFile = configPath

	scriptPath := filepath.Join(dir, "script.sh")
	require.NoError(t, os.WriteFile(scriptPath, []byte("exit 0\n"), 0o755))

	require.NoError(t, runTask("local", scriptPath, filepath.Join(dir, "work"), ""))
}
