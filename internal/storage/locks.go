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
Table Locks
===========

Statements declare the tables they mutate (exclusive) and the tables they
only read (shared). LockManager.Acquire grants the whole set or nothing:

  - exclusive conflicts with any other holder of the same table
  - shared conflicts only with an exclusive holder
  - a request that cannot be granted fails immediately with a conflict
    error; there is no waiting and no deadlock detection

A lock on a whole database uses an empty table name. It conflicts with
locks on every table of that database, and those conflict with it.

The returned LockSet is released exactly once, normally with defer, so the
locks go away on every exit path of the statement.
*/
package storage

import (
	"sort"
	"strings"
	"sync"

	dberrors "pagedb/internal/errors"
)

// LockMode is the mode a table is locked in.
type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
)

func (m LockMode) String() string {
	if m == LockExclusive {
		return "exclusive"
	}
	return "shared"
}

// TableRef names a table, or a whole database when Table is empty.
type TableRef struct {
	Database string
	Table    string
}

func (r TableRef) key() TableRef {
	return TableRef{Database: strings.ToLower(r.Database), Table: strings.ToLower(r.Table)}
}

func (r TableRef) String() string {
	if r.Table == "" {
		return r.Database
	}
	return r.Database + "." + r.Table
}

type lockState struct {
	exclusive uint64 // owner id, 0 when free
	shared    map[uint64]int
}

// LockManager tracks the table locks held by statements.
type LockManager struct {
	mu     sync.Mutex
	locks  map[TableRef]*lockState
	nextID uint64

	// OnConflict is called with the mode of every rejected request.
	OnConflict func(mode LockMode)
}

// NewLockManager creates an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[TableRef]*lockState)}
}

// LockSet is the set of locks granted to one statement.
type LockSet struct {
	manager   *LockManager
	owner     uint64
	exclusive []TableRef
	shared    []TableRef
	released  bool
}

// Acquire grants every requested lock or none. A table named in both lists
// is locked exclusively.
func (lm *LockManager) Acquire(exclusive, shared []TableRef) (*LockSet, error) {
	excl := dedupe(exclusive, nil)
	shr := dedupe(shared, excl)

	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.nextID++
	owner := lm.nextID

	for _, ref := range excl {
		if lm.conflicts(ref, LockExclusive, owner) {
			lm.reportConflict(LockExclusive)
			return nil, dberrors.LockConflict(ref.String(), LockExclusive.String())
		}
	}
	for _, ref := range shr {
		if lm.conflicts(ref, LockShared, owner) {
			lm.reportConflict(LockShared)
			return nil, dberrors.LockConflict(ref.String(), LockShared.String())
		}
	}

	for _, ref := range excl {
		lm.state(ref).exclusive = owner
	}
	for _, ref := range shr {
		lm.state(ref).shared[owner]++
	}
	return &LockSet{manager: lm, owner: owner, exclusive: excl, shared: shr}, nil
}

func (lm *LockManager) reportConflict(mode LockMode) {
	if lm.OnConflict != nil {
		lm.OnConflict(mode)
	}
}

func (lm *LockManager) state(ref TableRef) *lockState {
	st, ok := lm.locks[ref]
	if !ok {
		st = &lockState{shared: make(map[uint64]int)}
		lm.locks[ref] = st
	}
	return st
}

// conflicts checks ref against every held lock it overlaps with: the same
// table, the table's database lock, or, for a database lock, every table
// of that database. Must hold lm.mu.
func (lm *LockManager) conflicts(ref TableRef, mode LockMode, owner uint64) bool {
	for held, st := range lm.locks {
		if held.Database != ref.Database {
			continue
		}
		overlap := held.Table == ref.Table || held.Table == "" || ref.Table == ""
		if !overlap {
			continue
		}
		if st.exclusive != 0 && st.exclusive != owner {
			return true
		}
		if mode == LockExclusive {
			for o := range st.shared {
				if o != owner {
					return true
				}
			}
		}
	}
	return false
}

// Release frees every lock in the set. Calling it again is a no-op.
func (ls *LockSet) Release() {
	if ls == nil || ls.released {
		return
	}
	lm := ls.manager
	lm.mu.Lock()
	defer lm.mu.Unlock()

	for _, ref := range ls.exclusive {
		if st, ok := lm.locks[ref]; ok && st.exclusive == ls.owner {
			st.exclusive = 0
			lm.gc(ref, st)
		}
	}
	for _, ref := range ls.shared {
		if st, ok := lm.locks[ref]; ok {
			delete(st.shared, ls.owner)
			lm.gc(ref, st)
		}
	}
	ls.released = true
}

func (lm *LockManager) gc(ref TableRef, st *lockState) {
	if st.exclusive == 0 && len(st.shared) == 0 {
		delete(lm.locks, ref)
	}
}

// Exclusive returns the tables locked exclusively, sorted.
func (ls *LockSet) Exclusive() []TableRef { return ls.exclusive }

// Shared returns the tables locked in shared mode, sorted.
func (ls *LockSet) Shared() []TableRef { return ls.shared }

// Held reports whether any lock is currently held on ref.
func (lm *LockManager) Held(ref TableRef) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	_, ok := lm.locks[ref.key()]
	return ok
}

func dedupe(refs []TableRef, exclude []TableRef) []TableRef {
	seen := make(map[TableRef]bool, len(refs)+len(exclude))
	for _, r := range exclude {
		seen[r] = true
	}
	out := make([]TableRef, 0, len(refs))
	for _, r := range refs {
		k := r.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Database != out[j].Database {
			return out[i].Database < out[j].Database
		}
		return out[i].Table < out[j].Table
	})
	return out
}
