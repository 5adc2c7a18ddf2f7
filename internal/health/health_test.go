// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	m := NewManager("v1.2.3")
	assert.NotNil(t, m)
	assert.Equal(t, "v1.2.3", m.version)
	assert.Empty(t, m.checkers)
}

func TestManager_Health_NoCheckers(t *testing.T) {
	m := NewManager("v1.0.0")

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.GreaterOrEqual(t, resp.Uptime, int64(0))
	assert.Nil(t, resp.Checks)
}

func TestManager_Health_WithCheckers(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "healthy", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	// Non-verbose: no checks included, liveness stays healthy
	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)

	// Verbose: checks included and aggregated
	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
	assert.Equal(t, StatusHealthy, resp.Checks["healthy"].Status)
	assert.Equal(t, StatusDegraded, resp.Checks["degraded"].Status)
}

func TestManager_Health_Unhealthy(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "unhealthy", status: StatusUnhealthy})

	resp := m.Health(context.Background(), true)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Len(t, resp.Checks, 1)
}

func TestManager_Ready_NoCheckers(t *testing.T) {
	m := NewManager("v1.0.0")

	resp := m.Ready(context.Background(), false)
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusHealthy, resp.Status)
}

func TestManager_Ready_AllHealthy(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "check1", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "check2", status: StatusHealthy})

	resp := m.Ready(context.Background(), true)
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestManager_Ready_Degraded(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	resp := m.Ready(context.Background(), false)
	assert.True(t, resp.Ready) // Degraded is still ready
	assert.Equal(t, StatusDegraded, resp.Status)
}

func TestManager_Ready_Unhealthy(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "unhealthy", status: StatusUnhealthy})

	resp := m.Ready(context.Background(), false)
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestManager_Ready_HealthOnlyCheckerIsSkipped(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "liveness-only", status: StatusUnhealthy, checkType: CheckHealth})

	resp := m.Ready(context.Background(), true)
	assert.True(t, resp.Ready)
	assert.NotContains(t, resp.Checks, "liveness-only")
}

func TestManager_ServeHealth(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "test", status: StatusHealthy})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	m.ServeHealth(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, StatusHealthy, resp.Status)
}

func TestManager_ServeReady_UnhealthyIs503(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "storage", status: StatusUnhealthy})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	m.ServeReady(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestManager_ServeReady_EncodingErrorDoesNotPanic(t *testing.T) {
	m := NewManager("v1.0.0")

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := &brokenWriter{header: make(http.Header)}
	m.ServeReady(w, req)
}

func TestStorageChecker(t *testing.T) {
	healthy := NewStorageChecker(func(context.Context) error { return nil })
	assert.Equal(t, "storage", healthy.Name())
	assert.Equal(t, StatusHealthy, healthy.Check(context.Background()).Status)

	down := NewStorageChecker(func(context.Context) error { return errors.New("connection refused") })
	res := down.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Contains(t, res.Error, "connection refused")
}

func TestBrokerChecker(t *testing.T) {
	healthy := NewBrokerChecker(func(context.Context) error { return nil })
	assert.Equal(t, "broker", healthy.Name())
	assert.Equal(t, StatusHealthy, healthy.Check(context.Background()).Status)

	down := NewBrokerChecker(func(context.Context) error { return errors.New("redis: connection pool timeout") })
	res := down.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Contains(t, res.Error, "timeout")
}

func TestManager_ReadyCachesForOneSecond(t *testing.T) {
	calls := 0
	m := NewManager("v1.0.0")
	m.RegisterChecker(&countingChecker{count: &calls})

	_ = m.Ready(context.Background(), false)
	_ = m.Ready(context.Background(), false)
	assert.Equal(t, 1, calls, "second Ready within the cache TTL should not re-run checkers")

	time.Sleep(1100 * time.Millisecond)
	_ = m.Ready(context.Background(), false)
	assert.Equal(t, 2, calls)
}

type mockChecker struct {
	name      string
	status    Status
	message   string
	err       string
	checkType CheckType
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Type() CheckType {
	if m.checkType == 0 {
		return CheckHealth | CheckReadiness
	}
	return m.checkType
}

func (m *mockChecker) Check(_ context.Context) CheckResult {
	return CheckResult{Status: m.status, Message: m.message, Error: m.err}
}

type countingChecker struct{ count *int }

func (c *countingChecker) Name() string    { return "counting" }
func (c *countingChecker) Type() CheckType { return CheckReadiness }
func (c *countingChecker) Check(context.Context) CheckResult {
	*c.count++
	return CheckResult{Status: StatusHealthy}
}

// brokenWriter always fails to write, exercising the encode-error path.
type brokenWriter struct {
	header http.Header
}

func (w *brokenWriter) Header() http.Header       { return w.header }
func (w *brokenWriter) Write([]byte) (int, error) { return 0, assert.AnError }
func (w *brokenWriter) WriteHeader(int)           {}
