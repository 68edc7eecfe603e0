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
	"sync"
	"testing"

	dberrors "pagedb/internal/errors"
)

func ref(db, table string) TableRef { return TableRef{Database: db, Table: table} }

func TestLockCompatibility(t *testing.T) {
	tests := []struct {
		name      string
		firstX    []TableRef
		firstS    []TableRef
		secondX   []TableRef
		secondS   []TableRef
		conflicts bool
	}{
		{"shared shared", nil, []TableRef{ref("db", "a")}, nil, []TableRef{ref("db", "a")}, false},
		{"shared exclusive", nil, []TableRef{ref("db", "a")}, []TableRef{ref("db", "a")}, nil, true},
		{"exclusive shared", []TableRef{ref("db", "a")}, nil, nil, []TableRef{ref("db", "a")}, true},
		{"exclusive exclusive", []TableRef{ref("db", "a")}, nil, []TableRef{ref("db", "a")}, nil, true},
		{"different tables", []TableRef{ref("db", "a")}, nil, []TableRef{ref("db", "b")}, nil, false},
		{"different databases", []TableRef{ref("x", "a")}, nil, []TableRef{ref("y", "a")}, nil, false},
		{"case insensitive", []TableRef{ref("DB", "Users")}, nil, nil, []TableRef{ref("db", "users")}, true},
		{"database lock blocks table", []TableRef{ref("db", "")}, nil, nil, []TableRef{ref("db", "a")}, true},
		{"table blocks database lock", nil, []TableRef{ref("db", "a")}, []TableRef{ref("db", "")}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lm := NewLockManager()
			first, err := lm.Acquire(tt.firstX, tt.firstS)
			if err != nil {
				t.Fatalf("First acquire failed: %v", err)
			}
			defer first.Release()

			second, err := lm.Acquire(tt.secondX, tt.secondS)
			if tt.conflicts {
				if !dberrors.IsConflict(err) {
					t.Errorf("Expected conflict error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Expected no conflict, got %v", err)
			}
			second.Release()
		})
	}
}

func TestLockAllOrNothing(t *testing.T) {
	lm := NewLockManager()
	holder, err := lm.Acquire([]TableRef{ref("db", "b")}, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = lm.Acquire([]TableRef{ref("db", "a"), ref("db", "b")}, []TableRef{ref("db", "c")})
	if dberrors.GetCode(err) != dberrors.ErrCodeLockConflict {
		t.Fatalf("Expected lock conflict, got %v", err)
	}
	if lm.Held(ref("db", "a")) || lm.Held(ref("db", "c")) {
		t.Error("Expected no partial locks after a failed acquire")
	}

	holder.Release()
	if lm.Held(ref("db", "b")) {
		t.Error("Expected lock to be released")
	}

	// Releasing twice is harmless.
	holder.Release()
}

func TestLockPromotion(t *testing.T) {
	lm := NewLockManager()
	set, err := lm.Acquire([]TableRef{ref("db", "t")}, []TableRef{ref("db", "t"), ref("db", "u")})
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Exclusive()) != 1 || len(set.Shared()) != 1 || set.Shared()[0].Table != "u" {
		t.Errorf("Expected t exclusive and u shared, got %v / %v", set.Exclusive(), set.Shared())
	}
	set.Release()
}

func TestLockConflictCallback(t *testing.T) {
	lm := NewLockManager()
	var modes []LockMode
	lm.OnConflict = func(mode LockMode) { modes = append(modes, mode) }

	holder, _ := lm.Acquire([]TableRef{ref("db", "t")}, nil)
	defer holder.Release()
	lm.Acquire(nil, []TableRef{ref("db", "t")})

	if len(modes) != 1 || modes[0] != LockShared {
		t.Errorf("Expected one shared conflict, got %v", modes)
	}
}

func TestLockConcurrentReaders(t *testing.T) {
	lm := NewLockManager()
	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set, err := lm.Acquire(nil, []TableRef{ref("db", "t")})
			if err != nil {
				errs <- err
				return
			}
			set.Release()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Unexpected conflict between readers: %v", err)
	}
	if lm.Held(ref("db", "t")) {
		t.Error("Expected every shared lock to be released")
	}
}
