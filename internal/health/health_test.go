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

package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRunChecksStatus(t *testing.T) {
	tests := []struct {
		name    string
		storage error
		hitRate float64
		want    Status
	}{
		{"healthy", nil, 0.9, StatusHealthy},
		{"degraded", nil, 0.1, StatusDegraded},
		{"unhealthy", errors.New("gone"), 0.9, StatusUnhealthy},
		{"unhealthy wins", errors.New("gone"), 0.1, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker("test")
			c.RegisterCheck("storage", StorageCheck(func() error { return tt.storage }))
			c.RegisterCheck("cache", CacheCheck(func() (int64, float64) { return 100, tt.hitRate }, 10, 0.5))

			resp := c.RunChecks()
			if resp.Status != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, resp.Status)
			}
			if len(resp.Checks) != 2 || resp.Checks[0].Name != "cache" || resp.Checks[1].Name != "storage" {
				t.Errorf("Expected checks in name order, got %+v", resp.Checks)
			}
		})
	}
}

func TestCacheCheckNeedsLookups(t *testing.T) {
	check := CacheCheck(func() (int64, float64) { return 3, 0 }, 10, 0.5)
	if got := check().Status; got != StatusHealthy {
		t.Errorf("Expected healthy with few lookups, got %s", got)
	}
}

func TestEndpoints(t *testing.T) {
	c := NewChecker("1.0")
	var failing error
	c.RegisterCheck("storage", StorageCheck(func() error { return failing }))
	mux := http.NewServeMux()
	c.Register(mux)

	get := func(path string) (int, HealthResponse) {
		t.Helper()
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		var resp HealthResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Invalid JSON from %s: %v", path, err)
		}
		return rec.Code, resp
	}

	if code, resp := get("/health"); code != http.StatusOK || resp.Version != "1.0" {
		t.Errorf("Expected 200 with version, got %d %+v", code, resp)
	}

	failing = errors.New("data directory unavailable")
	if code, resp := get("/health/ready"); code != http.StatusServiceUnavailable || resp.Checks[0].Message != "data directory unavailable" {
		t.Errorf("Expected 503 from readiness, got %d %+v", code, resp)
	}
	if code, _ := get("/health/live"); code != http.StatusOK {
		t.Errorf("Expected liveness 200, got %d", code)
	}
}
