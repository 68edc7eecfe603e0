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
Package health provides health check endpoints for pagedb.

ENDPOINTS:
==========

	GET /health       - Overall health check
	GET /health/live  - Liveness check (is the process running?)
	GET /health/ready - Readiness check (can statements be served?)

The endpoints share the HTTP listener of the metrics server:

	checker := health.NewChecker(banner.Version)
	checker.RegisterCheck("storage", health.StorageCheck(engine.Check))
	checker.Register(metricsServer)

STATUS VALUES:
==============
  - healthy: All checks pass
  - degraded: Some non-critical checks fail
  - unhealthy: Critical checks fail
*/
package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"pagedb/internal/logging"
)

// Status represents the health status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult represents the result of a health check.
type CheckResult struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency int64  `json:"latency_ms"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    Status        `json:"status"`
	Timestamp string        `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []CheckResult `json:"checks,omitempty"`
}

// Check is a function that performs a health check.
type Check func() CheckResult

// Mux is the part of an HTTP router the endpoints are registered on.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// Checker manages health checks.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	version string
	logger  *logging.Logger
}

// NewChecker creates a new health checker.
func NewChecker(version string) *Checker {
	return &Checker{
		checks:  make(map[string]Check),
		version: version,
		logger:  logging.NewLogger("health"),
	}
}

// RegisterCheck registers a health check. A check registered under an
// existing name replaces it.
func (c *Checker) RegisterCheck(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// RunChecks runs all registered health checks in name order.
func (c *Checker) RunChecks() HealthResponse {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()
	sort.Strings(names)

	response := HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   c.version,
		Checks:    make([]CheckResult, 0, len(names)),
	}

	for _, name := range names {
		start := time.Now()
		result := checks[name]()
		result.Name = name
		result.Latency = time.Since(start).Milliseconds()
		response.Checks = append(response.Checks, result)

		if result.Status == StatusUnhealthy {
			response.Status = StatusUnhealthy
			c.logger.Warn("Health check failed", "check", name, "message", result.Message)
		} else if result.Status == StatusDegraded && response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}

	return response
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	return c.RunChecks().Status == StatusHealthy
}

// Register mounts the health endpoints on mux.
func (c *Checker) Register(mux Mux) {
	mux.Handle("/health", http.HandlerFunc(c.handleHealth))
	mux.Handle("/health/live", http.HandlerFunc(c.handleLiveness))
	mux.Handle("/health/ready", http.HandlerFunc(c.handleReadiness))
}

func writeJSON(w http.ResponseWriter, status int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// handleHealth handles the /health endpoint.
func (c *Checker) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := c.RunChecks()
	status := http.StatusOK
	if response.Status != StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// handleLiveness only reports that the process is running.
func (c *Checker) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   c.version,
	})
}

// handleReadiness handles the /health/ready endpoint. A degraded engine
// still accepts statements.
func (c *Checker) handleReadiness(w http.ResponseWriter, r *http.Request) {
	response := c.RunChecks()
	status := http.StatusOK
	if response.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// StorageCheck creates a storage health check.
func StorageCheck(checkFn func() error) Check {
	return func() CheckResult {
		if err := checkFn(); err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: err.Error(),
			}
		}
		return CheckResult{Status: StatusHealthy}
	}
}

// CacheCheck reports a degraded status when the statement cache hit rate
// falls below minHitRate after at least minLookups lookups.
func CacheCheck(stats func() (lookups int64, hitRate float64), minLookups int64, minHitRate float64) Check {
	return func() CheckResult {
		lookups, rate := stats()
		if lookups >= minLookups && rate < minHitRate {
			return CheckResult{
				Status:  StatusDegraded,
				Message: "statement cache hit rate below threshold",
			}
		}
		return CheckResult{Status: StatusHealthy}
	}
}
