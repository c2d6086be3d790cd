// Package config holds operator-level configuration for a kiralog
// installation and the RetentionConfig value type that governs capture.
//
// Operator config (data directory, signing key, listen address, pattern and
// retention override files, cleanup schedule, API key, tool grant) is read through Viper from
// KIRALOG_* env vars or kiralog.config.yaml. RetentionConfig is user-facing
// and lives in the interaction store; an optional YAML file can override it
// and is hot-reloaded.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/vietanhdev/kirapilot-app-sub002/internal/cryptoutil"
)

// Viper keys. Each maps to an env var with the KIRALOG_ prefix
// (e.g. "signing_key" → KIRALOG_SIGNING_KEY) and to a YAML field
// in kiralog.config.yaml.
const (
	KeyDataDir         = "data_dir"
	KeySigningKey      = "signing_key"
	KeyPatternFile     = "pattern_file"
	KeyListenAddr      = "listen_addr"
	KeyRetentionFile   = "retention_file"
	KeyCleanupSchedule = "cleanup_schedule"
	KeyAPIKey          = "api_key"
	KeyToolCaps        = "tool_capabilities"
	KeyToolAutoApprove = "tool_auto_approve"
	KeyToolConfirm     = "tool_confirm_timeout"
)

const (
	DefaultListenAddr      = "127.0.0.1:8087"
	DefaultCleanupSchedule = "0 3 * * *"
	DefaultConfirmTimeout  = 30 * time.Second
)

// Config holds resolved operator-level configuration for a kiralog process.
type Config struct {
	DataDir         string // Base directory for all state (~/.kiralog)
	SigningKey      string // HMAC-SHA256 key for record signing (≥32 bytes)
	PatternFile     string // Optional YAML with extra privacy recognizers
	ListenAddr      string // HTTP API listen address
	RetentionFile   string // Optional YAML overriding the stored RetentionConfig
	CleanupSchedule string // Cron expression for retention cleanup
	APIKey          string // Optional shared key for the HTTP API; empty disables auth

	ToolCapabilities   []string      // Capability tiers granted to the local actor
	ToolAutoApprove    []string      // Tools that never ask for confirmation
	ToolConfirmTimeout time.Duration // How long a confirmation prompt may stay open

	usingDefaultSigningKey bool
}

// UsingDefaultSigningKey returns true if the signing key was derived (not set explicitly).
func (c *Config) UsingDefaultSigningKey() bool {
	return c.usingDefaultSigningKey
}

// InteractionsDBPath returns the full path to the interaction SQLite database.
func (c *Config) InteractionsDBPath() string {
	return filepath.Join(c.DataDir, "interactions.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

// WarnIfDefaultKeys logs a warning when the signing key is not explicitly set.
// Suppressed when KIRALOG_QUICKSTART=1 or true.
func (c *Config) WarnIfDefaultKeys() {
	if isQuickstart() {
		return
	}
	if c.usingDefaultSigningKey {
		log.Warn().Str("fix", "set KIRALOG_SIGNING_KEY via env var or config file").Msg("using_default_signing_key")
	}
}

func isQuickstart() bool {
	v := os.Getenv("KIRALOG_QUICKSTART")
	return v == "1" || v == "true" || v == "TRUE"
}

func init() {
	SetDefaults()
}

// SetDefaults binds the KIRALOG_ env prefix and registers defaults. It runs
// at init and again after viper.Reset in tests.
func SetDefaults() {
	viper.SetEnvPrefix("KIRALOG")
	viper.AutomaticEnv()
	viper.SetDefault(KeyListenAddr, DefaultListenAddr)
	viper.SetDefault(KeyCleanupSchedule, DefaultCleanupSchedule)
	viper.SetDefault(KeyToolCaps, []string{"read_only"})
	viper.SetDefault(KeyToolConfirm, DefaultConfirmTimeout)
}

// Load reads configuration from Viper (which merges env vars, config
// file, and defaults) and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:         resolveDataDir(),
		SigningKey:      viper.GetString(KeySigningKey),
		PatternFile:     viper.GetString(KeyPatternFile),
		ListenAddr:      viper.GetString(KeyListenAddr),
		RetentionFile:   viper.GetString(KeyRetentionFile),
		CleanupSchedule: viper.GetString(KeyCleanupSchedule),
		APIKey:          viper.GetString(KeyAPIKey),

		ToolCapabilities:   viper.GetStringSlice(KeyToolCaps),
		ToolAutoApprove:    viper.GetStringSlice(KeyToolAutoApprove),
		ToolConfirmTimeout: viper.GetDuration(KeyToolConfirm),
	}

	if cfg.SigningKey == "" {
		cfg.SigningKey = deriveDefaultKey(cfg.DataDir, "interaction-signing")
		cfg.usingDefaultSigningKey = true
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kiralog"
	}
	return filepath.Join(home, ".kiralog")
}

// deriveDefaultKey produces a deterministic 32-byte fallback key from the
// data directory path and a salt. It is NOT cryptographically strong; it only
// lets a fresh install sign records with a per-machine key.
func deriveDefaultKey(dataDir, salt string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("kiralog:%s:%s", dataDir, salt)))
	return hex.EncodeToString(h[:])
}

func (c *Config) validate() error {
	if err := validateSigningKey(c.SigningKey); err != nil {
		return err
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.ToolConfirmTimeout <= 0 {
		return fmt.Errorf("tool_confirm_timeout must be positive")
	}
	return nil
}

// validateSigningKey accepts either ≥32 raw bytes or ≥64 hex characters (decoded length ≥32 for HMAC-SHA256).
func validateSigningKey(key string) error {
	if _, err := cryptoutil.DecodeKey(key); err != nil {
		return fmt.Errorf("signing_key %w; set KIRALOG_SIGNING_KEY", err)
	}
	return nil
}
