// Package config loads server configuration from command-line flags, environment
// variables, a .env file, and defaults, in that order of precedence.
package config

import (
	"bufio"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/neurotunes/neurotunes-server/internal/domain"
)

// Store backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Storage  StorageConfig
	Model    ModelConfig
	Server   ServerConfig
	Identity IdentityConfig
	Inbox    InboxConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig selects and tunes the record store.
type StorageConfig struct {
	DataPath        string
	Backend         string        // badger or sqlite
	BreakerFailures int           // consecutive failures before the breaker opens
	BreakerTimeout  time.Duration // how long the breaker stays open
}

// ModelConfig locates the genre classifier artifact.
type ModelConfig struct {
	Path        string // empty disables prediction
	Concurrency int    // rows classified in parallel per batch
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port                string
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	IdleTimeout         time.Duration
	UploadRatePerMinute int   // batch uploads per caregiver per minute
	MaxUploadBytes      int64 // request body cap for batch uploads
	CORSOrigins         []string
}

// IdentityConfig holds the shared-key contract with the identity provider.
type IdentityConfig struct {
	// Key is the 32-byte PASETO v4.local key. Empty means generate one under DataPath.
	Key             []byte
	Issuer          string
	Audience        string
	CaregiverEmails []string // normalized allow-list
}

// InboxConfig enables the drop-folder importer.
type InboxConfig struct {
	Path      string // empty disables the importer
	Caregiver string // caregiver recorded as owner of imported batches
}

// LoadConfig parses os.Args and the environment.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds a Config from the given command-line arguments plus the environment.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("neurotunes", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Directory for the record store and search index")
	backend := fs.String("store-backend", "", "Record store backend (badger, sqlite)")
	modelPath := fs.String("model-path", "", "Path to the genre classifier artifact")
	port := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 30s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	identityKey := fs.String("identity-key", "", "Hex PASETO v4 key shared with the identity provider")
	caregivers := fs.String("caregiver-emails", "", "Comma-separated caregiver email allow-list")
	inboxPath := fs.String("inbox-path", "", "Drop folder watched for CSV uploads")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Missing .env is fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			DataPath:        getConfigValue(*dataPath, "DATA_PATH", ""),
			Backend:         strings.ToLower(getConfigValue(*backend, "STORE_BACKEND", BackendBadger)),
			BreakerFailures: getIntConfigValue("", "STORE_BREAKER_FAILURES", 5),
		},
		Model: ModelConfig{
			Path:        getConfigValue(*modelPath, "MODEL_PATH", ""),
			Concurrency: getIntConfigValue("", "CLASSIFY_CONCURRENCY", 8),
		},
		Server: ServerConfig{
			Port:                getConfigValue(*port, "SERVER_PORT", "8080"),
			UploadRatePerMinute: getIntConfigValue("", "UPLOAD_RATE_PER_MINUTE", 30),
			MaxUploadBytes:      int64(getIntConfigValue("", "MAX_UPLOAD_BYTES", 8<<20)),
			CORSOrigins:         splitList(getConfigValue("", "CORS_ALLOWED_ORIGINS", "")),
		},
		Identity: IdentityConfig{
			Issuer:          getConfigValue("", "IDENTITY_ISSUER", "neurotunes-identity"),
			Audience:        getConfigValue("", "IDENTITY_AUDIENCE", "neurotunes-server"),
			CaregiverEmails: splitEmails(getConfigValue(*caregivers, "CAREGIVER_EMAILS", "")),
		},
		Inbox: InboxConfig{
			Path:      getConfigValue(*inboxPath, "INBOX_PATH", ""),
			Caregiver: domain.NormalizeEmail(getConfigValue("", "INBOX_CAREGIVER", "")),
		},
	}

	var err error
	if cfg.Storage.BreakerTimeout, err = getDurationConfigValue("", "STORE_BREAKER_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.Server.ReadTimeout, err = getDurationConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = getDurationConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = getDurationConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}

	if keyHex := getConfigValue(*identityKey, "IDENTITY_KEY", ""); keyHex != "" {
		key, err := decodeKey(keyHex)
		if err != nil {
			return nil, err
		}
		cfg.Identity.Key = key
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	case "":
		return errors.New("ENV is required")
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}
	if c.Storage.Backend != BackendBadger && c.Storage.Backend != BackendSQLite {
		return fmt.Errorf("invalid store backend: %s (must be badger or sqlite)", c.Storage.Backend)
	}
	if c.Storage.BreakerFailures < 1 {
		return errors.New("STORE_BREAKER_FAILURES must be at least 1")
	}
	if c.Model.Concurrency < 1 {
		return errors.New("CLASSIFY_CONCURRENCY must be at least 1")
	}
	if c.Server.UploadRatePerMinute < 1 {
		return errors.New("UPLOAD_RATE_PER_MINUTE must be at least 1")
	}
	if c.Server.MaxUploadBytes < 1024 {
		return errors.New("MAX_UPLOAD_BYTES must be at least 1024")
	}

	// A generated key can't be shared with a real identity provider.
	if c.App.Environment == "production" && len(c.Identity.Key) == 0 {
		return errors.New("IDENTITY_KEY is required in production")
	}
	if c.Identity.Issuer == "" || c.Identity.Audience == "" {
		return errors.New("IDENTITY_ISSUER and IDENTITY_AUDIENCE cannot be empty")
	}

	if c.Inbox.Path != "" && c.Inbox.Caregiver == "" {
		return errors.New("INBOX_CAREGIVER is required when INBOX_PATH is set")
	}
	return nil
}

func splitEmails(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if email := domain.NormalizeEmail(part); email != "" {
			out = append(out, email)
		}
	}
	return out
}

func splitList(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func decodeKey(keyHex string) ([]byte, error) {
	keyHex = strings.TrimSpace(keyHex)
	if len(keyHex) != 64 {
		return nil, fmt.Errorf("IDENTITY_KEY must be 64 hex characters, got %d", len(keyHex))
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("IDENTITY_KEY is not valid hex: %w", err)
	}
	return key, nil
}

func (c *Config) expandPaths() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	if c.Storage.DataPath, err = expandPath(c.Storage.DataPath, filepath.Join(home, "NeuroTunes", "data")); err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}
	if c.Model.Path, err = expandPath(c.Model.Path, ""); err != nil {
		return fmt.Errorf("invalid model path: %w", err)
	}
	if c.Inbox.Path, err = expandPath(c.Inbox.Path, ""); err != nil {
		return fmt.Errorf("invalid inbox path: %w", err)
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty the default is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = abs
	}
	return filepath.Clean(path), nil
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
// Unparseable values fall back to the default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	s := getConfigValue(flagValue, envKey, "")
	if s == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultValue
	}
	return n
}

func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	s := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, s, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments). Existing env vars win.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- operator-supplied config path
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

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}
