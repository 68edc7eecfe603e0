/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package config provides configuration management for pagedb.

The configuration system supports multiple sources with clear precedence:
 1. Command-line flags (highest priority, applied by the caller)
 2. Environment variables (PAGEDB_<KEY>)
 3. Configuration file (YAML)
 4. Default values (lowest priority)

Example configuration file:

	# pagedb configuration
	data_dir: /var/lib/pagedb   # empty keeps everything in memory
	default_database: main
	btree_degree: 8
	collation: binary           # binary, nocase or unicode
	locale: en_US
	charset: utf8               # utf8, latin1 or ascii
	encryption_enabled: false
	compression: none           # none or gzip
	statement_cache_size: 256
	log_level: info
	log_json: false
	metrics_addr: ""

The encryption passphrase is never written to the configuration file. Set it
through PAGEDB_ENCRYPTION_PASSPHRASE.
*/
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every configuration environment variable.
const EnvPrefix = "PAGEDB"

// EnvConfigFile names the environment variable holding the config file path.
const EnvConfigFile = "PAGEDB_CONFIG_FILE"

// DefaultConfigPaths are searched in order when no config file is given.
var DefaultConfigPaths = []string{
	"/etc/pagedb/pagedb.yaml",
	"$HOME/.config/pagedb/pagedb.yaml",
	"./pagedb.yaml",
}

// Config holds all configuration values for pagedb.
type Config struct {
	// Storage
	DataDir         string `mapstructure:"data_dir" yaml:"data_dir"`
	DefaultDatabase string `mapstructure:"default_database" yaml:"default_database"`
	BTreeDegree     int    `mapstructure:"btree_degree" yaml:"btree_degree"`

	// String handling
	Collation string `mapstructure:"collation" yaml:"collation"`
	Locale    string `mapstructure:"locale" yaml:"locale"`
	Charset   string `mapstructure:"charset" yaml:"charset"`

	// Encryption of table files at rest
	EncryptionEnabled    bool   `mapstructure:"encryption_enabled" yaml:"encryption_enabled"`
	EncryptionPassphrase string `mapstructure:"encryption_passphrase" yaml:"-"`

	// Compression of table files: none or gzip
	Compression string `mapstructure:"compression" yaml:"compression"`

	// Parsed statement cache (0 disables it)
	StatementCacheSize int `mapstructure:"statement_cache_size" yaml:"statement_cache_size"`

	// Logging
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" yaml:"log_json"`

	// Prometheus endpoint for the CLI front-end (empty disables it)
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`

	ConfigFile string `mapstructure:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		DataDir:            "",
		DefaultDatabase:    "main",
		BTreeDegree:        8,
		Collation:          "binary",
		Locale:             "en_US",
		Charset:            "utf8",
		EncryptionEnabled:  false,
		Compression:        "none",
		StatementCacheSize: 256,
		LogLevel:           "info",
		LogJSON:            false,
	}
}

// defaults returns the default values keyed by their configuration names.
// Registering every key with viper lets environment variables override keys
// that are absent from the file.
func defaults() map[string]interface{} {
	d := DefaultConfig()
	return map[string]interface{}{
		"data_dir":              d.DataDir,
		"default_database":      d.DefaultDatabase,
		"btree_degree":          d.BTreeDegree,
		"collation":             d.Collation,
		"locale":                d.Locale,
		"charset":               d.Charset,
		"encryption_enabled":    d.EncryptionEnabled,
		"encryption_passphrase": d.EncryptionPassphrase,
		"compression":           d.Compression,
		"statement_cache_size":  d.StatementCacheSize,
		"log_level":             d.LogLevel,
		"log_json":              d.LogJSON,
		"metrics_addr":          d.MetricsAddr,
	}
}

// Manager handles configuration loading, validation, and access.
type Manager struct {
	config *Config
	mu     sync.RWMutex

	onReload []func(*Config)
}

// NewManager creates a new configuration manager with default values.
func NewManager() *Manager {
	return &Manager{config: DefaultConfig()}
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := *m.config
	return &cfg
}

// Set replaces the configuration.
func (m *Manager) Set(cfg *Config) {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
}

// OnReload registers a callback to be called when configuration is reloaded.
func (m *Manager) OnReload(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReload = append(m.onReload, fn)
}

func (m *Manager) notifyReload() {
	m.mu.RLock()
	callbacks := append([]func(*Config){}, m.onReload...)
	cfg := *m.config
	m.mu.RUnlock()

	for _, fn := range callbacks {
		fn(&cfg)
	}
}

// Load reads the configuration from path (or the first default path that
// exists when path is empty) and then applies environment overrides.
// A missing file is not an error; an unreadable or invalid one is.
func (m *Manager) Load(path string) error {
	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = FindConfigFile()
	}
	if path != "" {
		v.SetConfigFile(os.ExpandEnv(path))
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.ConfigFile = path
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.Set(cfg)
	return nil
}

// Reload re-reads the configuration from the file it was loaded from and
// notifies the OnReload callbacks.
func (m *Manager) Reload() error {
	if err := m.Load(m.Get().ConfigFile); err != nil {
		return err
	}
	m.notifyReload()
	return nil
}

// FindConfigFile searches for a configuration file in default locations.
// Returns the path to the first file found, or empty string if none found.
func FindConfigFile() string {
	if envPath := os.Getenv(EnvConfigFile); envPath != "" {
		if _, err := os.Stat(os.ExpandEnv(envPath)); err == nil {
			return os.ExpandEnv(envPath)
		}
	}
	for _, path := range DefaultConfigPaths {
		expanded := os.ExpandEnv(path)
		if _, err := os.Stat(expanded); err == nil {
			return expanded
		}
	}
	return ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.DefaultDatabase == "" {
		errs = append(errs, "default_database cannot be empty")
	}
	if c.BTreeDegree < 2 {
		errs = append(errs, fmt.Sprintf("invalid btree_degree: %d (must be at least 2)", c.BTreeDegree))
	}
	switch strings.ToLower(c.Collation) {
	case "binary", "nocase", "unicode":
	default:
		errs = append(errs, fmt.Sprintf("invalid collation: %s (must be binary, nocase, or unicode)", c.Collation))
	}
	switch strings.ToLower(c.Charset) {
	case "utf8", "latin1", "ascii":
	default:
		errs = append(errs, fmt.Sprintf("invalid charset: %s (must be utf8, latin1, or ascii)", c.Charset))
	}
	switch strings.ToLower(c.Compression) {
	case "", "none", "gzip":
	default:
		errs = append(errs, fmt.Sprintf("invalid compression: %s (must be none or gzip)", c.Compression))
	}
	if c.StatementCacheSize < 0 {
		errs = append(errs, "statement_cache_size cannot be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}
	if c.EncryptionEnabled {
		if c.DataDir == "" {
			errs = append(errs, "encryption_enabled requires data_dir")
		}
		if c.EncryptionPassphrase == "" {
			errs = append(errs, "encryption_enabled requires PAGEDB_ENCRYPTION_PASSPHRASE")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ToYAML renders the configuration as a YAML document.
func (c *Config) ToYAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return "# pagedb configuration\n" + string(data), nil
}

// SaveToFile writes the configuration to path.
func (c *Config) SaveToFile(path string) error {
	data, err := c.ToYAML()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// String returns a human-readable summary without secrets.
func (c *Config) String() string {
	dataDir := c.DataDir
	if dataDir == "" {
		dataDir = "(memory)"
	}
	return fmt.Sprintf("data_dir=%s default_database=%s btree_degree=%d collation=%s charset=%s encryption=%v compression=%s log_level=%s",
		dataDir, c.DefaultDatabase, c.BTreeDegree, c.Collation, c.Charset, c.EncryptionEnabled, c.Compression, c.LogLevel)
}
