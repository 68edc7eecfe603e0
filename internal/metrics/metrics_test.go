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

package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordStatement(t *testing.T) {
	m := New()
	m.RecordStatement("SELECT", 2*time.Millisecond, nil)
	m.RecordStatement("SELECT", time.Millisecond, nil)
	m.RecordStatement("INSERT", time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(m.StatementsTotal.WithLabelValues("SELECT", "ok")); got != 2 {
		t.Errorf("Expected 2 successful SELECTs, got %v", got)
	}
	if got := testutil.ToFloat64(m.StatementsTotal.WithLabelValues("INSERT", "error")); got != 1 {
		t.Errorf("Expected 1 failed INSERT, got %v", got)
	}
}

func TestSeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.RecordLockConflict("exclusive")

	if got := testutil.ToFloat64(a.LockConflicts.WithLabelValues("exclusive")); got != 1 {
		t.Errorf("Expected 1 conflict on a, got %v", got)
	}
	if got := testutil.ToFloat64(b.LockConflicts.WithLabelValues("exclusive")); got != 0 {
		t.Errorf("Expected registries to be independent, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Tables.Set(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "pagedb_tables 3") {
		t.Errorf("Expected pagedb_tables in output, got:\n%s", rec.Body.String())
	}
}
