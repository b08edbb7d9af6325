package shutdown

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDisabledMonitorIsPassthrough(t *testing.T) {
	m := NewIdleMonitor(IdleMonitorConfig{Timeout: 0, Logger: testLogger()})
	m.Start()
	defer m.Stop()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rec := httptest.NewRecorder()
	m.Middleware(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/balance", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
	if got := atomic.LoadInt64(&m.activeRequests); got != 0 {
		t.Errorf("activeRequests = %d, want 0", got)
	}
}

func TestMiddlewareTracksActivity(t *testing.T) {
	m := NewIdleMonitor(IdleMonitorConfig{Timeout: time.Hour, Logger: testLogger()})

	before := m.lastActivity
	time.Sleep(time.Millisecond)

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := atomic.LoadInt64(&m.activeRequests); got != 1 {
			t.Errorf("in-flight activeRequests = %d, want 1", got)
		}
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))

	if got := atomic.LoadInt64(&m.activeRequests); got != 0 {
		t.Errorf("activeRequests = %d, want 0 after request", got)
	}
	m.mu.RLock()
	after := m.lastActivity
	m.mu.RUnlock()
	if !after.After(before) {
		t.Error("lastActivity not updated by request")
	}
}

func TestMiddlewareSkipsExcludedPaths(t *testing.T) {
	m := NewIdleMonitor(IdleMonitorConfig{
		Timeout:      time.Hour,
		Logger:       testLogger(),
		ExcludePaths: []string{"/healthz", "/metrics"},
	})

	before := m.lastActivity
	time.Sleep(time.Millisecond)

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	m.mu.RLock()
	after := m.lastActivity
	m.mu.RUnlock()
	if !after.Equal(before) {
		t.Error("excluded path counted as activity")
	}
}
