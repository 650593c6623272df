// Package config loads moodsync configuration from flags, environment variables and .env files.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Remote  RemoteConfig
	Sync    SyncConfig
	Server  ServerConfig
	Auth    AuthConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// IsDevelopment reports whether destructive dev-only operations are allowed.
func (a AppConfig) IsDevelopment() bool { return a.Environment == "development" }

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
	// File enables rotating file output in addition to stdout. Optional.
	File string
}

// StorageConfig holds local storage locations.
type StorageConfig struct {
	DataPath string
	// DBPath defaults to {DataPath}/moodtune.db.
	DBPath string
	// DocstorePath is where the dev remote keeps its documents (default: {DataPath}/remote).
	DocstorePath string
}

// RemoteConfig holds the remote backend client configuration.
type RemoteConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // writes per second per collection
	Burst     int
}

// SyncConfig holds worker and scheduling policy.
type SyncConfig struct {
	OutboxInterval    time.Duration
	OutboxFlex        time.Duration
	TelemetryInterval time.Duration
	TelemetryFlex     time.Duration
	BatchSize         int
	MinBackoff        time.Duration
	MaxBackoff        time.Duration
	ImmediateTimeout  time.Duration
	RetentionDays     int
	ProbeInterval     time.Duration
}

// Retention returns the retention window for synced rows.
func (s SyncConfig) Retention() time.Duration {
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

// ServerConfig holds the dev remote server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// RequireAuth makes document routes demand a session token.
	RequireAuth bool
	// CORSOrigins are the browser origins allowed to call the API.
	CORSOrigins []string
}

// AuthConfig holds session token configuration.
type AuthConfig struct {
	// TokenKey is the hex-encoded PASETO v4 local key (32 bytes). When empty
	// the key is loaded from, or generated into, {DataPath}/session.key.
	TokenKey string
	// Token is the session token handed over by the auth collaborator.
	Token string
	// UserID is a static signed-in user for headless runs. It wins over Token.
	UserID string
}

// Flags carries command-line overrides. Empty fields fall through to env and defaults.
type Flags struct {
	Env        string
	LogLevel   string
	LogFile    string
	DataPath   string
	DBPath     string
	RemoteURL  string
	Port       string
	UserID     string
	EnvFile    string
	BatchSize  string
	Retention  string
	MinBackoff string
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(f Flags) (*Config, error) {
	envFile := f.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// Missing .env files are fine.
	_ = loadEnvFile(envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(f.Env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(f.LogLevel, "LOG_LEVEL", "info"),
			File:  getConfigValue(f.LogFile, "LOG_FILE", ""),
		},
		Storage: StorageConfig{
			DataPath:     getConfigValue(f.DataPath, "DATA_PATH", ""),
			DBPath:       getConfigValue(f.DBPath, "DB_PATH", ""),
			DocstorePath: getConfigValue("", "DOCSTORE_PATH", ""),
		},
		Remote: RemoteConfig{
			BaseURL:   getConfigValue(f.RemoteURL, "REMOTE_URL", "http://localhost:8787"),
			RateLimit: getFloatConfigValue("", "REMOTE_RATE_LIMIT", 20),
			Burst:     getIntConfigValue("", "REMOTE_BURST", 40),
		},
		Sync: SyncConfig{
			BatchSize:     getIntConfigValue(f.BatchSize, "SYNC_BATCH_SIZE", 50),
			RetentionDays: getIntConfigValue(f.Retention, "SYNC_RETENTION_DAYS", 30),
		},
		Server: ServerConfig{
			Port:        getConfigValue(f.Port, "SERVER_PORT", "8787"),
			RequireAuth: getBoolConfigValue("", "SERVER_REQUIRE_AUTH", false),
			CORSOrigins: splitList(getConfigValue("", "SERVER_CORS_ORIGINS", "")),
		},
		Auth: AuthConfig{
			TokenKey: getConfigValue("", "SESSION_TOKEN_KEY", ""),
			Token:    getConfigValue("", "SESSION_TOKEN", ""),
			UserID:   getConfigValue(f.UserID, "MOODSYNC_USER_ID", ""),
		},
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		env      string
		fallback string
	}{
		{&cfg.Remote.Timeout, "", "REMOTE_TIMEOUT", "10s"},
		{&cfg.Sync.OutboxInterval, "", "SYNC_OUTBOX_INTERVAL", "15m"},
		{&cfg.Sync.OutboxFlex, "", "SYNC_OUTBOX_FLEX", "5m"},
		{&cfg.Sync.TelemetryInterval, "", "SYNC_TELEMETRY_INTERVAL", "5m"},
		{&cfg.Sync.TelemetryFlex, "", "SYNC_TELEMETRY_FLEX", "2m"},
		{&cfg.Sync.MinBackoff, f.MinBackoff, "SYNC_MIN_BACKOFF", "30s"},
		{&cfg.Sync.MaxBackoff, "", "SYNC_MAX_BACKOFF", "5h"},
		{&cfg.Sync.ImmediateTimeout, "", "SYNC_IMMEDIATE_TIMEOUT", "5s"},
		{&cfg.Sync.ProbeInterval, "", "CONNECTIVITY_PROBE_INTERVAL", "30s"},
		{&cfg.Server.ReadTimeout, "", "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, "", "SERVER_WRITE_TIMEOUT", "15s"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.env, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.env, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandStoragePaths(); err != nil {
		return nil, fmt.Errorf("invalid storage path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.DBPath == "" {
		return errors.New("database path cannot be empty after expansion")
	}

	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("invalid sync batch size: %d", c.Sync.BatchSize)
	}
	if c.Sync.RetentionDays <= 0 {
		return fmt.Errorf("invalid retention days: %d", c.Sync.RetentionDays)
	}
	if c.Sync.OutboxFlex > c.Sync.OutboxInterval || c.Sync.TelemetryFlex > c.Sync.TelemetryInterval {
		return errors.New("flex window cannot exceed its interval")
	}
	if c.Sync.MinBackoff <= 0 || c.Sync.MaxBackoff < c.Sync.MinBackoff {
		return fmt.Errorf("invalid backoff range %s..%s", c.Sync.MinBackoff, c.Sync.MaxBackoff)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is used as-is.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandStoragePaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	dataPath, err := expandPath(c.Storage.DataPath, filepath.Join(homeDir, ".moodtune"))
	if err != nil {
		return err
	}
	c.Storage.DataPath = dataPath

	dbPath, err := expandPath(c.Storage.DBPath, filepath.Join(dataPath, "moodtune.db"))
	if err != nil {
		return err
	}
	c.Storage.DBPath = dbPath

	docPath, err := expandPath(c.Storage.DocstorePath, filepath.Join(dataPath, "remote"))
	if err != nil {
		return err
	}
	c.Storage.DocstorePath = docPath
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getBoolConfigValue accepts anything strconv.ParseBool does.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseBool(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Real env vars take precedence over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
