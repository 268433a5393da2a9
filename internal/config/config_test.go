// ABOUTME: Tests for configuration loading, env expansion, and validation
// ABOUTME: Covers defaults for missing files and rejection of bad values

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotEmpty(t, cfg.Database.SnapshotPath)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 2000, cfg.Defaults.KcalGoal)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Logging, cfg.Logging)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anlog.yaml")
	content := `
database:
  snapshot_path: /tmp/test-anlog.db
legacy:
  dir: /tmp/legacy
logging:
  level: debug
  format: json
defaults:
  kcal_goal: 1800
  protein_goal: 80
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test-anlog.db", cfg.Database.SnapshotPath)
	assert.Equal(t, "/tmp/legacy", cfg.Legacy.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 1800, cfg.Defaults.KcalGoal)
	assert.Equal(t, 80.0, cfg.Defaults.ProteinGoal)
	// Untouched sections keep their defaults.
	assert.Equal(t, 250.0, cfg.Defaults.CarbsGoal)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("ANLOG_TEST_DB", "/tmp/from-env.db")

	path := filepath.Join(t.TempDir(), "anlog.yaml")
	content := `
database:
  snapshot_path: ${ANLOG_TEST_DB}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.db", cfg.Database.SnapshotPath)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad level", "logging:\n  level: loud\n"},
		{"bad format", "logging:\n  format: xml\n"},
		{"empty snapshot path", "database:\n  snapshot_path: \"\"\n"},
		{"negative kcal goal", "defaults:\n  kcal_goal: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "anlog.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestDefaultConfigPathEnvOverride(t *testing.T) {
	t.Setenv("ANLOG_CONFIG", "/tmp/custom.yaml")
	assert.Equal(t, "/tmp/custom.yaml", DefaultConfigPath())
}

func TestDefaultConfigPathXDG(t *testing.T) {
	t.Setenv("ANLOG_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	assert.Equal(t, filepath.Join("/tmp/xdg-config", "anlog", "anlog.yaml"), DefaultConfigPath())
}
