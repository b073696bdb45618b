package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/crm-updater/internal/config"
)

func newFlagCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("config", "nonexistent.yml", "")
	cmd.Flags().String("env-file", "", "")
	cmd.Flags().String("database-url", "", "")
	cmd.Flags().String("updates-dir", "", "")
	cmd.Flags().Bool("verbose", false, "")

	return cmd
}

func TestMergeFlags_databaseURL_overridesConfig(t *testing.T) {
	t.Parallel()

	cfg := config.New()
	cmd := newFlagCmd()

	require.NoError(t, cmd.Flags().Set("database-url", "postgres://test:5432/db"))

	mergeFlags(cmd, cfg)
	assert.Equal(t, "postgres://test:5432/db", cfg.DatabaseURL)
}

func TestMergeFlags_updatesDir_overridesConfig(t *testing.T) {
	t.Parallel()

	cfg := config.New()
	cmd := newFlagCmd()

	require.NoError(t, cmd.Flags().Set("updates-dir", "/srv/crm/updates"))

	mergeFlags(cmd, cfg)
	assert.Equal(t, "/srv/crm/updates", cfg.UpdatesDir)
}

func TestMergeFlags_verbose_setsDebugLevel(t *testing.T) {
	t.Parallel()

	cfg := config.New()
	cmd := newFlagCmd()

	require.NoError(t, cmd.Flags().Set("verbose", "true"))

	mergeFlags(cmd, cfg)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestMergeFlags_unchangedFlags_preserveConfig(t *testing.T) {
	t.Parallel()

	cfg := config.New()
	cfg.DatabaseURL = "postgres://original:5432/db"
	cfg.UpdatesDir = "/original/dir"

	mergeFlags(newFlagCmd(), cfg)
	assert.Equal(t, "postgres://original:5432/db", cfg.DatabaseURL)
	assert.Equal(t, "/original/dir", cfg.UpdatesDir)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
}

func TestLoadConfig_missingFile_usesDefaults(t *testing.T) { // not parallel: mutates global AppConfig
	old := AppConfig
	t.Cleanup(func() { AppConfig = old })

	err := loadConfig(newFlagCmd())
	require.NoError(t, err)
	require.NotNil(t, AppConfig)
	assert.Equal(t, config.DefaultUpdatesDir, AppConfig.UpdatesDir)
	assert.Equal(t, config.DefaultCompiledDir, AppConfig.CompiledDir)
}

func TestLoadConfig_validFile_loadsValues(t *testing.T) { // not parallel: mutates global AppConfig
	old := AppConfig
	t.Cleanup(func() { AppConfig = old })

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "test-config.yml")

	yamlContent := "updates_dir: /from/yaml\nlock_timeout: 2s\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yamlContent), 0o600))

	cmd := newFlagCmd()
	require.NoError(t, cmd.Flags().Set("config", cfgPath))

	err := loadConfig(cmd)
	require.NoError(t, err)
	require.NotNil(t, AppConfig)
	assert.Equal(t, "/from/yaml", AppConfig.UpdatesDir)
	assert.Equal(t, "2s", AppConfig.LockTimeout.String())
}

func TestLoadConfig_envFile_setsSetupStatus(t *testing.T) { // not parallel: mutates env and AppConfig
	old := AppConfig
	t.Cleanup(func() { AppConfig = old })

	t.Setenv("SETUP_STATUS", "")
	require.NoError(t, os.Unsetenv("SETUP_STATUS"))

	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("SETUP_STATUS=COMPLETED\n"), 0o600))

	cmd := newFlagCmd()
	require.NoError(t, cmd.Flags().Set("env-file", envPath))

	require.NoError(t, loadConfig(cmd))
	assert.True(t, AppConfig.SetupCompleted())
}

func TestLoadConfig_flagBeatsEnv(t *testing.T) { // not parallel: mutates env and AppConfig
	old := AppConfig
	t.Cleanup(func() { AppConfig = old })

	t.Setenv("CRM_DATABASE_URL", "postgres://env:5432/db")

	cmd := newFlagCmd()
	require.NoError(t, cmd.Flags().Set("database-url", "postgres://flag:5432/db"))

	require.NoError(t, loadConfig(cmd))
	assert.Equal(t, "postgres://flag:5432/db", AppConfig.DatabaseURL)
}

func TestLoadConfig_invalidFile_returnsError(t *testing.T) { // not parallel: mutates global AppConfig
	old := AppConfig
	t.Cleanup(func() { AppConfig = old })

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad-config.yml")

	require.NoError(t, os.WriteFile(cfgPath, []byte("lock_timeout: [unclosed"), 0o600))

	cmd := newFlagCmd()
	require.NoError(t, cmd.Flags().Set("config", cfgPath))

	err := loadConfig(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading configuration")
}

func TestNewLogger_unknownFormat_returnsError(t *testing.T) {
	t.Parallel()

	cfg := config.New()
	cfg.LogFormat = "xml"

	_, err := newLogger(&cobra.Command{}, cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuring logging")
}
