package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/crm-updater/internal/config"
)

func TestNew_returnsDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.New()

	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.SetupStatus)
	assert.Equal(t, config.DefaultUpdatesDir, cfg.UpdatesDir)
	assert.Equal(t, config.DefaultCompiledDir, cfg.CompiledDir)
	assert.Equal(t, config.DefaultLockTimeout, cfg.LockTimeout)
	assert.Equal(t, config.DefaultStatementTimeout, cfg.StatementTimeout)
	assert.Equal(t, config.DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, config.DefaultLogFormat, cfg.LogFormat)
	assert.Equal(t, config.DefaultRedisPrefix, cfg.Redis.Prefix)
	assert.Empty(t, cfg.Redis.Address)
}

func TestSetupCompleted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status string
		want   bool
	}{
		{status: "COMPLETED", want: true},
		{status: "completed", want: false},
		{status: "", want: false},
		{status: "PENDING", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.status, func(t *testing.T) {
			t.Parallel()

			cfg := config.New()
			cfg.SetupStatus = tt.status

			assert.Equal(t, tt.want, cfg.SetupCompleted())
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		content      string
		allowMissing bool
		writeFile    bool
		wantErr      bool
		errContains  string
		check        func(t *testing.T, cfg *config.Config)
	}{
		{
			name:      "valid file parses all fields",
			writeFile: true,
			content: `database_url: "postgres://localhost:5432/crm"
updates_dir: "/srv/crm/updates"
setup_status: "COMPLETED"
compiled_dir: "/srv/crm/storage/cache"
lock_timeout: "10s"
statement_timeout: "1m"
http_addr: "127.0.0.1:9000"
log_level: "debug"
log_format: "console"
redis:
  address: "localhost:6379"
  password: "secret"
  db: 2
  prefix: "growcrm:"
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, "postgres://localhost:5432/crm", cfg.DatabaseURL)
				assert.Equal(t, "/srv/crm/updates", cfg.UpdatesDir)
				assert.True(t, cfg.SetupCompleted())
				assert.Equal(t, "/srv/crm/storage/cache", cfg.CompiledDir)
				assert.Equal(t, 10*time.Second, cfg.LockTimeout)
				assert.Equal(t, time.Minute, cfg.StatementTimeout)
				assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
				assert.Equal(t, "debug", cfg.LogLevel)
				assert.Equal(t, "console", cfg.LogFormat)
				assert.Equal(t, config.RedisConfig{
					Address:  "localhost:6379",
					Password: "secret",
					DB:       2,
					Prefix:   "growcrm:",
				}, cfg.Redis)
			},
		},
		{
			name:      "partial file applies defaults",
			writeFile: true,
			content:   `database_url: "postgres://localhost/crm"`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, "postgres://localhost/crm", cfg.DatabaseURL)
				assert.Equal(t, config.DefaultUpdatesDir, cfg.UpdatesDir)
				assert.Equal(t, config.DefaultLockTimeout, cfg.LockTimeout)
				assert.Equal(t, config.DefaultStatementTimeout, cfg.StatementTimeout)
				assert.Equal(t, config.DefaultRedisPrefix, cfg.Redis.Prefix)
				assert.False(t, cfg.SetupCompleted())
			},
		},
		{
			name:      "empty file returns defaults",
			writeFile: true,
			content:   "",
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, config.DefaultUpdatesDir, cfg.UpdatesDir)
				assert.Equal(t, config.DefaultLockTimeout, cfg.LockTimeout)
			},
		},
		{
			name:         "missing file with allowMissing returns defaults",
			allowMissing: true,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, config.DefaultUpdatesDir, cfg.UpdatesDir)
			},
		},
		{
			name:        "missing file without allowMissing returns error",
			wantErr:     true,
			errContains: "reading config file",
		},
		{
			name:        "invalid YAML returns error",
			writeFile:   true,
			content:     "{{{invalid yaml",
			wantErr:     true,
			errContains: "parsing config file",
		},
		{
			name:        "invalid lock_timeout duration returns error",
			writeFile:   true,
			content:     `lock_timeout: "not-a-duration"`,
			wantErr:     true,
			errContains: "parsing lock_timeout",
		},
		{
			name:        "invalid statement_timeout duration returns error",
			writeFile:   true,
			content:     `statement_timeout: "garbage"`,
			wantErr:     true,
			errContains: "parsing statement_timeout",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "crm.yml")

			if tt.writeFile {
				require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			}

			cfg, err := config.Load(path, tt.allowMissing)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestMergeEnv_overridesFields(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "overrides setup status",
			env:  map[string]string{"SETUP_STATUS": "COMPLETED"},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.True(t, cfg.SetupCompleted())
			},
		},
		{
			name: "overrides database URL",
			env:  map[string]string{"CRM_DATABASE_URL": "postgres://env-host/crm"},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, "postgres://env-host/crm", cfg.DatabaseURL)
			},
		},
		{
			name: "overrides updates dir",
			env:  map[string]string{"CRM_UPDATES_DIR": "/custom/updates"},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, "/custom/updates", cfg.UpdatesDir)
			},
		},
		{
			name: "overrides redis settings",
			env: map[string]string{
				"CRM_REDIS_ADDRESS": "cache:6379",
				"CRM_REDIS_DB":      "3",
			},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, "cache:6379", cfg.Redis.Address)
				assert.Equal(t, 3, cfg.Redis.DB)
			},
		},
		{
			name: "invalid redis db preserves original",
			env:  map[string]string{"CRM_REDIS_DB": "three"},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Zero(t, cfg.Redis.DB)
			},
		},
		{
			name: "overrides timeouts",
			env: map[string]string{
				"CRM_LOCK_TIMEOUT":      "15s",
				"CRM_STATEMENT_TIMEOUT": "2m",
			},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, 15*time.Second, cfg.LockTimeout)
				assert.Equal(t, 2*time.Minute, cfg.StatementTimeout)
			},
		},
		{
			name: "invalid duration preserves original",
			env:  map[string]string{"CRM_LOCK_TIMEOUT": "not-valid"},
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				assert.Equal(t, config.DefaultLockTimeout, cfg.LockTimeout)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg := config.New()
			config.MergeEnv(cfg)

			tt.check(t, cfg)
		})
	}
}

func TestLoadDotEnv_setsUnsetVariables(t *testing.T) {
	t.Setenv("SETUP_STATUS", "")
	require.NoError(t, os.Unsetenv("SETUP_STATUS"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SETUP_STATUS=COMPLETED\n"), 0o600))

	require.NoError(t, config.LoadDotEnv(path))

	cfg := config.New()
	config.MergeEnv(cfg)
	assert.True(t, cfg.SetupCompleted())
}

func TestLoadDotEnv_existingVariableWins(t *testing.T) {
	t.Setenv("CRM_UPDATES_DIR", "/from/env")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CRM_UPDATES_DIR=/from/dotenv\n"), 0o600))

	require.NoError(t, config.LoadDotEnv(path))
	assert.Equal(t, "/from/env", os.Getenv("CRM_UPDATES_DIR"))
}

func TestLoadDotEnv_missingFile_noError(t *testing.T) {
	t.Parallel()

	err := config.LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}

func TestLoadDotEnv_emptyPath_noError(t *testing.T) {
	t.Parallel()

	require.NoError(t, config.LoadDotEnv(""))
}
