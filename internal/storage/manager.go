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

package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"pagedb/internal/compression"
	dberrors "pagedb/internal/errors"
	"pagedb/internal/logging"
)

// Options configures a Manager.
type Options struct {
	// DataDir is the directory table files are kept in. Empty keeps
	// everything in memory.
	DataDir string

	// BTreeDegree is the minimum degree of index B-trees.
	BTreeDegree int

	Collator Collator
	Charset  Charset

	// Encryptor seals table files when set.
	Encryptor *Encryptor

	// Compressor compresses table files when set.
	Compressor *compression.Compressor
}

type database struct {
	name   string
	tables map[string]*Table
}

// Manager owns the databases and tables of an engine. Its own mutex only
// guards the catalog maps; row data is protected by table locks.
type Manager struct {
	mu   sync.RWMutex
	opts Options
	dbs  map[string]*database

	logger *logging.Logger
}

// NewManager creates a manager with no databases.
func NewManager(opts Options) *Manager {
	if opts.BTreeDegree < 2 {
		opts.BTreeDegree = DefaultBTreeDegree
	}
	if opts.Collator == nil {
		opts.Collator = &BinaryCollator{}
	}
	if opts.Charset == CharsetDefault {
		opts.Charset = CharsetUTF8
	}
	return &Manager{
		opts:   opts,
		dbs:    make(map[string]*database),
		logger: logging.NewLogger("storage"),
	}
}

// Check verifies that the data directory is still a usable directory.
// Memory-only managers always pass.
func (m *Manager) Check() error {
	if m.opts.DataDir == "" {
		return nil
	}
	info, err := os.Stat(m.opts.DataDir)
	if err != nil {
		return dberrors.NewStorageError("data directory unavailable").WithCause(err)
	}
	if !info.IsDir() {
		return dberrors.NewStorageError("data directory is not a directory").WithDetail(m.opts.DataDir)
	}
	return nil
}

// Collator returns the collator of the engine.
func (m *Manager) Collator() Collator { return m.opts.Collator }

// Charset returns the default charset of the engine.
func (m *Manager) Charset() Charset { return m.opts.Charset }

// Persistent reports whether tables are written to disk.
func (m *Manager) Persistent() bool { return m.opts.DataDir != "" }

func validName(kind, name string) error {
	if name == "" {
		return dberrors.MissingRequired(kind + " name")
	}
	if len(name) > NameWidth {
		return dberrors.FieldOverflow(kind+" name", NameWidth, len(name))
	}
	if name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return dberrors.InvalidValue(kind+" name", "contains a path separator")
	}
	return nil
}

// Open loads every database directory and table file under the data
// directory. Directories are databases, *.pdb files are tables.
func (m *Manager) Open() error {
	if !m.Persistent() {
		return nil
	}
	if err := os.MkdirAll(m.opts.DataDir, 0o755); err != nil {
		return dberrors.IOError(m.opts.DataDir, err)
	}
	entries, err := os.ReadDir(m.opts.DataDir)
	if err != nil {
		return dberrors.IOError(m.opts.DataDir, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		db := &database{name: e.Name(), tables: make(map[string]*Table)}
		dir := filepath.Join(m.opts.DataDir, e.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return dberrors.IOError(dir, err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), TableFileExt) {
				continue
			}
			path := filepath.Join(dir, f.Name())
			t, err := readTableFile(path, db.name, m.opts.Encryptor, m.opts.BTreeDegree, m.opts.Collator, m.opts.Charset)
			if err != nil {
				m.logger.Error("Failed to load table", "path", path, "error", err)
				return err
			}
			db.tables[strings.ToLower(t.Schema.Name)] = t
		}
		m.dbs[strings.ToLower(db.name)] = db
		m.logger.Info("Loaded database", "database", db.name, "tables", len(db.tables))
	}
	return nil
}

func (m *Manager) dbDir(name string) string {
	return filepath.Join(m.opts.DataDir, name)
}

func (m *Manager) tablePath(s *TableSchema) string {
	return filepath.Join(m.dbDir(s.Database), s.Name+TableFileExt)
}

// CreateDatabase creates a database. Reports whether it was created; with
// ifNotExists an existing database is not an error.
func (m *Manager) CreateDatabase(name string, ifNotExists bool) (bool, error) {
	if err := validName("database", name); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.dbs[strings.ToLower(name)]; ok {
		if ifNotExists {
			return false, nil
		}
		return false, dberrors.DatabaseExists(name)
	}
	if m.Persistent() {
		if err := os.MkdirAll(m.dbDir(name), 0o755); err != nil {
			return false, dberrors.IOError(m.dbDir(name), err)
		}
	}
	m.dbs[strings.ToLower(name)] = &database{name: name, tables: make(map[string]*Table)}
	m.logger.Debug("Created database", "database", name)
	return true, nil
}

// DropDatabase removes a database and all of its tables.
func (m *Manager) DropDatabase(name string, ifExists bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	db, ok := m.dbs[strings.ToLower(name)]
	if !ok {
		if ifExists {
			return false, nil
		}
		return false, dberrors.DatabaseNotFound(name)
	}
	if m.Persistent() {
		if err := os.RemoveAll(m.dbDir(db.name)); err != nil {
			return false, dberrors.IOError(m.dbDir(db.name), err)
		}
	}
	delete(m.dbs, strings.ToLower(name))
	m.logger.Debug("Dropped database", "database", db.name, "tables", len(db.tables))
	return true, nil
}

// HasDatabase reports whether the database exists.
func (m *Manager) HasDatabase(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.dbs[strings.ToLower(name)]
	return ok
}

// DatabaseName returns the stored spelling of a database name.
func (m *Manager) DatabaseName(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	db, ok := m.dbs[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return db.name, true
}

// Databases returns the database names, sorted.
func (m *Manager) Databases() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.dbs))
	for _, db := range m.dbs {
		out = append(out, db.name)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) lookupDB(name string) (*database, error) {
	db, ok := m.dbs[strings.ToLower(name)]
	if !ok {
		return nil, dberrors.DatabaseNotFound(name)
	}
	return db, nil
}

// CreateTable registers a table built from schema and writes its file.
// Reports whether the table was created.
func (m *Manager) CreateTable(schema *TableSchema, ifNotExists bool) (bool, error) {
	if err := validName("table", schema.Name); err != nil {
		return false, err
	}
	if err := schema.Validate(); err != nil {
		return false, err
	}

	m.mu.Lock()
	db, err := m.lookupDB(schema.Database)
	if err != nil {
		m.mu.Unlock()
		return false, err
	}
	if _, ok := db.tables[strings.ToLower(schema.Name)]; ok {
		m.mu.Unlock()
		if ifNotExists {
			return false, nil
		}
		return false, dberrors.TableExists(db.name, schema.Name)
	}
	schema.Database = db.name
	t := NewTable(schema, m.opts.BTreeDegree, m.opts.Collator, m.opts.Charset)
	db.tables[strings.ToLower(schema.Name)] = t
	m.mu.Unlock()

	if err := m.flushTable(t); err != nil {
		m.mu.Lock()
		delete(db.tables, strings.ToLower(schema.Name))
		m.mu.Unlock()
		return false, err
	}
	m.logger.Debug("Created table", "table", schema.QualifiedName(), "columns", len(schema.Columns))
	return true, nil
}

// DropTable removes a table and its file.
func (m *Manager) DropTable(dbName, name string, ifExists bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	db, err := m.lookupDB(dbName)
	if err != nil {
		return false, err
	}
	t, ok := db.tables[strings.ToLower(name)]
	if !ok {
		if ifExists {
			return false, nil
		}
		return false, dberrors.TableNotFound(db.name, name)
	}
	if m.Persistent() {
		path := m.tablePath(t.Schema)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return false, dberrors.IOError(path, err)
		}
	}
	delete(db.tables, strings.ToLower(name))
	return true, nil
}

// Table returns the named table.
func (m *Manager) Table(dbName, name string) (*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	db, err := m.lookupDB(dbName)
	if err != nil {
		return nil, err
	}
	t, ok := db.tables[strings.ToLower(name)]
	if !ok {
		return nil, dberrors.TableNotFound(db.name, name)
	}
	return t, nil
}

// Tables returns the tables of a database sorted by name.
func (m *Manager) Tables(dbName string) ([]*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	db, err := m.lookupDB(dbName)
	if err != nil {
		return nil, err
	}
	out := make([]*Table, 0, len(db.tables))
	for _, t := range db.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Schema.Name) < strings.ToLower(out[j].Schema.Name)
	})
	return out, nil
}

// TableCount returns the number of tables across all databases.
func (m *Manager) TableCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, db := range m.dbs {
		n += len(db.tables)
	}
	return n
}

// RenameTable moves a table to a new name, possibly in another database.
func (m *Manager) RenameTable(dbName, name, toDB, toName string) error {
	if err := validName("table", toName); err != nil {
		return err
	}
	m.mu.Lock()
	src, err := m.lookupDB(dbName)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	dst, err := m.lookupDB(toDB)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	t, ok := src.tables[strings.ToLower(name)]
	if !ok {
		m.mu.Unlock()
		return dberrors.TableNotFound(src.name, name)
	}
	if _, exists := dst.tables[strings.ToLower(toName)]; exists {
		m.mu.Unlock()
		return dberrors.TableExists(dst.name, toName)
	}

	oldPath := m.tablePath(t.Schema)
	delete(src.tables, strings.ToLower(name))
	t.Schema.Database = dst.name
	t.Schema.Name = toName
	dst.tables[strings.ToLower(toName)] = t
	m.mu.Unlock()

	if !m.Persistent() {
		return nil
	}
	if err := m.flushTable(t); err != nil {
		return err
	}
	if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
		return dberrors.IOError(oldPath, err)
	}
	return nil
}

// Flush writes the named table to its file. A no-op without a data
// directory or for MEMORY tables.
func (m *Manager) Flush(dbName, name string) error {
	t, err := m.Table(dbName, name)
	if err != nil {
		return err
	}
	return m.flushTable(t)
}

// FlushAll writes every table.
func (m *Manager) FlushAll() error {
	for _, name := range m.Databases() {
		tables, err := m.Tables(name)
		if err != nil {
			return err
		}
		for _, t := range tables {
			if err := m.flushTable(t); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) flushTable(t *Table) error {
	if !m.Persistent() || t.Schema.Engine == TableEngineMemory {
		return nil
	}
	path := m.tablePath(t.Schema)
	if err := writeTableFile(path, t, m.opts.Encryptor, m.opts.Compressor); err != nil {
		m.logger.Error("Failed to write table", "path", path, "error", err)
		return err
	}
	return nil
}
