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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DataDir != "" {
		t.Errorf("Expected in-memory default, got data_dir %q", cfg.DataDir)
	}
	if cfg.DefaultDatabase != "main" {
		t.Errorf("Expected default database 'main', got '%s'", cfg.DefaultDatabase)
	}
	if cfg.BTreeDegree != 8 {
		t.Errorf("Expected default btree_degree 8, got %d", cfg.BTreeDegree)
	}
	if cfg.Collation != "binary" {
		t.Errorf("Expected default collation 'binary', got '%s'", cfg.Collation)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"degree too small", func(c *Config) { c.BTreeDegree = 1 }, "btree_degree"},
		{"bad collation", func(c *Config) { c.Collation = "klingon" }, "collation"},
		{"bad charset", func(c *Config) { c.Charset = "ebcdic" }, "charset"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"negative cache", func(c *Config) { c.StatementCacheSize = -1 }, "statement_cache_size"},
		{"bad compression", func(c *Config) { c.Compression = "lz4" }, "compression"},
		{"encryption without passphrase", func(c *Config) {
			c.DataDir = "/tmp/x"
			c.EncryptionEnabled = true
		}, "PAGEDB_ENCRYPTION_PASSPHRASE"},
		{"encryption without data dir", func(c *Config) {
			c.EncryptionEnabled = true
			c.EncryptionPassphrase = "secret"
		}, "requires data_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pagedb.yaml")
	content := "data_dir: " + dir + "\ndefault_database: shop\nbtree_degree: 4\ncollation: nocase\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("PAGEDB_LOG_LEVEL", "debug")
	t.Setenv("PAGEDB_BTREE_DEGREE", "16")

	m := NewManager()
	if err := m.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := m.Get()

	if cfg.DataDir != dir || cfg.DefaultDatabase != "shop" || cfg.Collation != "nocase" {
		t.Errorf("File values not applied: %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected env log_level 'debug', got '%s'", cfg.LogLevel)
	}
	if cfg.BTreeDegree != 16 {
		t.Errorf("Expected env to override file btree_degree, got %d", cfg.BTreeDegree)
	}
	if cfg.ConfigFile != path {
		t.Errorf("Expected ConfigFile %q, got %q", path, cfg.ConfigFile)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("collation: klingon\n"), 0o600)

	if err := NewManager().Load(path); err == nil {
		t.Fatal("Expected validation error for invalid collation")
	}
}

func TestSaveToFileOmitsPassphrase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EncryptionPassphrase = "hunter2"
	path := filepath.Join(t.TempDir(), "out.yaml")

	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "hunter2") {
		t.Error("Passphrase must not be persisted")
	}

	m := NewManager()
	if err := m.Load(path); err != nil {
		t.Fatalf("Saved file does not load back: %v", err)
	}
	if m.Get().BTreeDegree != cfg.BTreeDegree {
		t.Errorf("Round trip lost btree_degree")
	}
}

func TestReloadNotifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagedb.yaml")
	os.WriteFile(path, []byte("btree_degree: 4\n"), 0o600)

	m := NewManager()
	if err := m.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	var seen int
	m.OnReload(func(c *Config) { seen = c.BTreeDegree })

	os.WriteFile(path, []byte("btree_degree: 6\n"), 0o600)
	if err := m.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if seen != 6 {
		t.Errorf("Expected reload callback with degree 6, got %d", seen)
	}
}
