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

package sql

import (
	"fmt"

	"pagedb/internal/cache"
	"pagedb/internal/compression"
	"pagedb/internal/config"
	"pagedb/internal/logging"
	"pagedb/internal/metrics"
	"pagedb/internal/storage"
)

// Engine is the shared state of every session: the schema and row storage,
// the table lock manager, the parsed statement cache and the metrics.
// An Engine is safe for concurrent use; each of its sessions is not.
type Engine struct {
	cfg       *config.Config
	storage   *storage.Manager
	locks     *storage.LockManager
	metrics   *metrics.Metrics
	cache     *cache.LRU[Statement]
	collation string
	logger    *logging.Logger
}

// NewEngine opens the storage described by cfg. A nil cfg uses the
// defaults, which keep everything in memory; a nil m gets fresh metrics.
func NewEngine(cfg *config.Config, m *metrics.Metrics) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.New()
	}
	logger := logging.NewLogger("engine")

	collation, err := storage.ParseCollation(cfg.Collation)
	if err != nil {
		return nil, err
	}
	charset, err := storage.ParseCharset(cfg.Charset)
	if err != nil {
		return nil, err
	}

	opts := storage.Options{
		DataDir:     cfg.DataDir,
		BTreeDegree: cfg.BTreeDegree,
		Collator:    storage.GetCollator(collation, cfg.Locale),
		Charset:     charset,
	}
	if cfg.EncryptionEnabled {
		salt, err := storage.LoadOrCreateSalt(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load encryption salt: %w", err)
		}
		enc, err := storage.NewEncryptor(storage.EncryptionConfig{
			Passphrase: cfg.EncryptionPassphrase,
			Salt:       salt,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize encryption: %w", err)
		}
		opts.Encryptor = enc
	}

	algo, err := compression.ParseAlgorithm(cfg.Compression)
	if err != nil {
		return nil, err
	}
	if algo != compression.AlgorithmNone {
		c := compression.DefaultConfig()
		c.Algorithm = algo
		opts.Compressor = compression.NewCompressor(c)
	}

	mgr := storage.NewManager(opts)
	if err := mgr.Open(); err != nil {
		return nil, err
	}
	if _, err := mgr.CreateDatabase(cfg.DefaultDatabase, true); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		storage:   mgr,
		locks:     storage.NewLockManager(),
		metrics:   m,
		cache:     cache.New[Statement](cfg.StatementCacheSize),
		collation: collation.String(),
		logger:    logger,
	}
	e.locks.OnConflict = func(mode storage.LockMode) {
		m.RecordLockConflict(mode.String())
	}
	m.Tables.Set(float64(mgr.TableCount()))

	logger.Info("Engine started",
		"data_dir", cfg.DataDir,
		"persistent", mgr.Persistent(),
		"databases", len(mgr.Databases()),
		"tables", mgr.TableCount(),
		"collation", e.collation,
		"charset", charset.String(),
		"encrypted", cfg.EncryptionEnabled)
	return e, nil
}

// NewSession opens a session positioned on the default database.
func (e *Engine) NewSession() *Session {
	return &Session{
		engine:   e,
		database: e.cfg.DefaultDatabase,
		logger:   logging.NewLogger("session"),
	}
}

// Storage returns the schema and row storage.
func (e *Engine) Storage() *storage.Manager { return e.storage }

// Locks returns the table lock manager.
func (e *Engine) Locks() *storage.LockManager { return e.locks }

// Metrics returns the engine's collectors.
func (e *Engine) Metrics() *metrics.Metrics { return e.metrics }

// Check reports whether the engine's storage is usable.
func (e *Engine) Check() error { return e.storage.Check() }

// CacheStats reports the parsed statement cache counters.
func (e *Engine) CacheStats() cache.Stats { return e.cache.Stats() }

// Close writes every table to disk.
func (e *Engine) Close() error {
	if err := e.storage.FlushAll(); err != nil {
		e.logger.Error("Failed to flush tables", "error", err)
		return err
	}
	e.logger.Info("Engine stopped", "tables", e.storage.TableCount())
	return nil
}

// parse returns the statement for sql, from the cache when possible.
func (e *Engine) parse(sql string) (Statement, error) {
	if stmt, ok := e.cache.Get(sql); ok {
		e.metrics.CacheHits.Inc()
		return stmt, nil
	}
	e.metrics.CacheMisses.Inc()
	stmt, err := Parse(sql)
	if err != nil {
		return nil, err
	}
	e.cache.Put(sql, stmt)
	return stmt, nil
}
