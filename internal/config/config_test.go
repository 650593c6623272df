package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:     AppConfig{Environment: "development"},
		Logger:  LoggerConfig{Level: "info"},
		Storage: StorageConfig{DataPath: "/data", DBPath: "/data/moodtune.db"},
		Sync: SyncConfig{
			OutboxInterval:    15 * time.Minute,
			OutboxFlex:        5 * time.Minute,
			TelemetryInterval: 5 * time.Minute,
			TelemetryFlex:     2 * time.Minute,
			BatchSize:         50,
			MinBackoff:        30 * time.Second,
			MaxBackoff:        5 * time.Hour,
			RetentionDays:     30,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"DEBUG", true}, // case insensitive
		{"trace", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_SyncPolicy(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"zero batch", func(c *Config) { c.Sync.BatchSize = 0 }, "batch size"},
		{"zero retention", func(c *Config) { c.Sync.RetentionDays = 0 }, "retention"},
		{"flex wider than interval", func(c *Config) { c.Sync.OutboxFlex = time.Hour }, "flex"},
		{"max below min backoff", func(c *Config) { c.Sync.MaxBackoff = time.Second }, "backoff"},
		{"empty db path", func(c *Config) { c.Storage.DBPath = "" }, "database path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("DOCSTORE_PATH", "")
	t.Setenv("SERVER_REQUIRE_AUTH", "")

	cfg, err := LoadConfig(Flags{DataPath: dir, EnvFile: filepath.Join(dir, "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.True(t, cfg.App.IsDevelopment())
	assert.Equal(t, filepath.Join(dir, "moodtune.db"), cfg.Storage.DBPath)
	assert.Equal(t, filepath.Join(dir, "remote"), cfg.Storage.DocstorePath)
	assert.Equal(t, 15*time.Minute, cfg.Sync.OutboxInterval)
	assert.Equal(t, 5*time.Minute, cfg.Sync.OutboxFlex)
	assert.Equal(t, 5*time.Minute, cfg.Sync.TelemetryInterval)
	assert.Equal(t, 2*time.Minute, cfg.Sync.TelemetryFlex)
	assert.Equal(t, 30*time.Second, cfg.Sync.MinBackoff)
	assert.Equal(t, 5*time.Second, cfg.Sync.ImmediateTimeout)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 30*24*time.Hour, cfg.Sync.Retention())
	assert.False(t, cfg.Server.RequireAuth)
}

func TestLoadConfig_BoolFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SERVER_REQUIRE_AUTH", "true")
	t.Setenv("SESSION_TOKEN", "v4.local.abc")
	t.Setenv("SERVER_CORS_ORIGINS", "http://localhost:5173, ,https://app.example.com")

	cfg, err := LoadConfig(Flags{DataPath: dir, EnvFile: filepath.Join(dir, "missing.env")})
	require.NoError(t, err)

	assert.True(t, cfg.Server.RequireAuth)
	assert.Equal(t, "v4.local.abc", cfg.Auth.Token)
	assert.Equal(t, []string{"http://localhost:5173", "https://app.example.com"}, cfg.Server.CORSOrigins)
}

func TestLoadConfig_FlagBeatsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("SYNC_BATCH_SIZE", "10")

	cfg, err := LoadConfig(Flags{
		DataPath: dir,
		LogLevel: "debug",
		EnvFile:  filepath.Join(dir, "missing.env"),
	})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 10, cfg.Sync.BatchSize)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SYNC_OUTBOX_INTERVAL", "soon")

	_, err := LoadConfig(Flags{DataPath: dir, EnvFile: filepath.Join(dir, "missing.env")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNC_OUTBOX_INTERVAL")
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/moods", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(homeDir, "moods"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)

	got, err = expandPath("relative/path", "")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}

func TestGetConfigValue_Precedence(t *testing.T) {
	assert.Equal(t, "flag-value", getConfigValue("flag-value", "ENV_KEY", "default-value"))

	t.Setenv("TEST_ENV_KEY", "env-value")
	assert.Equal(t, "env-value", getConfigValue("", "TEST_ENV_KEY", "default-value"))

	assert.Equal(t, "default-value", getConfigValue("", "NONEXISTENT_KEY", "default-value"))
}

func TestLoadEnvFile_ValidFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")

	content := `# Test env file
MOODSYNC_TEST_ENV=staging
# Comment line
MOODSYNC_TEST_QUOTED="some value"
MOODSYNC_TEST_SINGLE='another value'
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	for _, k := range []string{"MOODSYNC_TEST_ENV", "MOODSYNC_TEST_QUOTED", "MOODSYNC_TEST_SINGLE"} {
		t.Setenv(k, "")
	}

	require.NoError(t, loadEnvFile(envFile))

	assert.Equal(t, "staging", os.Getenv("MOODSYNC_TEST_ENV"))
	assert.Equal(t, "some value", os.Getenv("MOODSYNC_TEST_QUOTED"))
	assert.Equal(t, "another value", os.Getenv("MOODSYNC_TEST_SINGLE"))
}

func TestLoadEnvFile_InvalidFormat(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")

	content := `VALID_KEY=valid_value
INVALID LINE WITHOUT EQUALS
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	err := loadEnvFile(envFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoadEnvFile_ExistingEnvVarsNotOverwritten(t *testing.T) {
	t.Setenv("MOODSYNC_TEST_VAR", "original-value")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(`MOODSYNC_TEST_VAR=new-value`), 0o644))

	require.NoError(t, loadEnvFile(envFile))
	assert.Equal(t, "original-value", os.Getenv("MOODSYNC_TEST_VAR"))
}
