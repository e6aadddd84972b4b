package keygate

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// Config holds the product-specific settings needed to validate licenses.
//
// AccountID and PublicKeyHex should be hard-coded in the application binary
// rather than loaded from the environment, so an attacker cannot redirect
// validation to a provider account they control.
type Config struct {
	// AppName identifies the embedding application (e.g. "myapp").
	AppName string

	// Product is the feature or product identifier (e.g. "pro").
	Product string

	// AccountID is the Keygen account ID.
	AccountID string

	// PublicKeyHex is the account's Ed25519 verify key, hex-encoded
	// (64 characters). It is decoded exactly once, at Manager construction.
	PublicKeyHex string

	// RequiredEntitlements lists entitlement codes the license must carry.
	// All codes must be present for access to be granted.
	RequiredEntitlements []string

	// UserAgentProduct is the product identifier sent in the User-Agent
	// header, used by the provider for crack-detection analytics.
	UserAgentProduct string

	// CacheNamespace scopes the offline cache and usage meter on disk.
	// Each product should use a unique namespace.
	CacheNamespace string

	// OfflineGrace is how long an authenticated cache record remains
	// acceptable as access proof when live validation is unavailable.
	OfflineGrace time.Duration

	// CacheDir overrides the cache location. Defaults to
	// os.UserCacheDir()/<CacheNamespace>.
	CacheDir string
}

// Validate checks the configuration for obvious errors.
func (c *Config) Validate() error {
	if c.AccountID == "" {
		return fmt.Errorf("%w: account_id cannot be empty", ErrConfig)
	}
	if len(c.PublicKeyHex) != 64 {
		return fmt.Errorf("%w: public_key_hex must be 64 hex characters, got %d", ErrConfig, len(c.PublicKeyHex))
	}
	if c.CacheNamespace == "" {
		return fmt.Errorf("%w: cache_namespace cannot be empty", ErrConfig)
	}
	if c.OfflineGrace < 0 {
		return fmt.Errorf("%w: offline_grace cannot be negative", ErrConfig)
	}
	return nil
}

// fileConfig is the on-disk YAML shape of Config. Durations are strings in
// Go syntax ("24h", "30m") so the file stays human-editable.
type fileConfig struct {
	AppName              string   `yaml:"app_name"`
	Product              string   `yaml:"product"`
	AccountID            string   `yaml:"account_id"`
	PublicKeyHex         string   `yaml:"public_key_hex"`
	RequiredEntitlements []string `yaml:"required_entitlements"`
	UserAgentProduct     string   `yaml:"user_agent_product"`
	CacheNamespace       string   `yaml:"cache_namespace"`
	OfflineGrace         string   `yaml:"offline_grace" default:"24h"`
	CacheDir             string   `yaml:"cache_dir"`
}

// LoadConfig reads a YAML configuration file, applies defaults, and
// validates the result. License keys themselves never belong in this file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config: %v", ErrConfig, err)
	}

	var fc fileConfig
	if err := defaults.Set(&fc); err != nil {
		return nil, fmt.Errorf("%w: apply defaults: %v", ErrConfig, err)
	}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", ErrConfig, err)
	}

	grace, err := time.ParseDuration(fc.OfflineGrace)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid offline_grace %q: %v", ErrConfig, fc.OfflineGrace, err)
	}

	cfg := &Config{
		AppName:              fc.AppName,
		Product:              fc.Product,
		AccountID:            fc.AccountID,
		PublicKeyHex:         fc.PublicKeyHex,
		RequiredEntitlements: fc.RequiredEntitlements,
		UserAgentProduct:     fc.UserAgentProduct,
		CacheNamespace:       fc.CacheNamespace,
		OfflineGrace:         grace,
		CacheDir:             fc.CacheDir,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
