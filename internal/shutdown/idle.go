// Package shutdown provides idle monitoring for scale-to-zero deployments.
package shutdown

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// PendingWorkChecker reports whether settlement work is still in flight.
// Idle shutdown is held off while it returns true so pending orders keep
// getting swept and gateway callbacks keep a live server to land on.
type PendingWorkChecker func() bool

// IdleMonitor tracks request activity and signals when the server has been
// idle long enough to stop. Platforms like Fly.io restart the machine on the
// next request.
type IdleMonitor struct {
	timeout        time.Duration
	logger         *slog.Logger
	activeRequests int64
	lastActivity   time.Time
	mu             sync.RWMutex
	shutdownChan   chan struct{}
	stopChan       chan struct{}
	excludePaths   []string
	pendingWork    PendingWorkChecker
}

// IdleMonitorConfig holds configuration for the idle monitor.
type IdleMonitorConfig struct {
	// Timeout is how long the server must be quiet before signaling
	// shutdown. Zero disables the monitor.
	Timeout time.Duration
	Logger  *slog.Logger
	// ExcludePaths are URL prefixes that do not count as activity, such as
	// health probes and metrics scrapes.
	ExcludePaths []string
	PendingWork  PendingWorkChecker
}

// NewIdleMonitor creates a new idle monitor.
func NewIdleMonitor(cfg IdleMonitorConfig) *IdleMonitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IdleMonitor{
		timeout:      cfg.Timeout,
		logger:       logger,
		lastActivity: time.Now(),
		shutdownChan: make(chan struct{}),
		stopChan:     make(chan struct{}),
		excludePaths: cfg.ExcludePaths,
		pendingWork:  cfg.PendingWork,
	}
}

// Start begins monitoring for idle periods.
func (m *IdleMonitor) Start() {
	if m.timeout <= 0 {
		return
	}
	m.logger.Info("idle monitoring started", "timeout", m.timeout, "exclude_paths", m.excludePaths)
	go m.run()
}

// Stop stops the idle monitor.
func (m *IdleMonitor) Stop() {
	if m.timeout <= 0 {
		return
	}
	close(m.stopChan)
}

// ShutdownChan returns a channel closed when the idle timeout is reached.
func (m *IdleMonitor) ShutdownChan() <-chan struct{} {
	return m.shutdownChan
}

// Middleware tracks request activity, skipping excluded paths.
func (m *IdleMonitor) Middleware(next http.Handler) http.Handler {
	if m.timeout <= 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		excluded := false
		for _, prefix := range m.excludePaths {
			if strings.HasPrefix(r.URL.Path, prefix) {
				excluded = true
				break
			}
		}

		if !excluded {
			m.requestStart()
			defer m.requestEnd()
		}

		next.ServeHTTP(w, r)
	})
}

func (m *IdleMonitor) requestStart() {
	atomic.AddInt64(&m.activeRequests, 1)
	m.touch()
}

func (m *IdleMonitor) requestEnd() {
	atomic.AddInt64(&m.activeRequests, -1)
	m.touch()
}

func (m *IdleMonitor) touch() {
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

func (m *IdleMonitor) run() {
	// Check well inside the timeout so the signal is not late, but never
	// hammer the pending-work check.
	checkInterval := m.timeout / 6
	if checkInterval < 5*time.Second {
		checkInterval = 5 * time.Second
	}
	if checkInterval > 30*time.Second {
		checkInterval = 30 * time.Second
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			active := atomic.LoadInt64(&m.activeRequests)

			busy := false
			if m.pendingWork != nil {
				busy = m.pendingWork()
			}
			// Pending settlements restart the grace period so a callback
			// arriving just after a sweep still finds the server up.
			if active > 0 || busy {
				m.touch()
				continue
			}

			m.mu.RLock()
			idleTime := time.Since(m.lastActivity)
			m.mu.RUnlock()

			if idleTime >= m.timeout {
				m.logger.Info("idle timeout reached, signaling graceful shutdown",
					"idle_time", idleTime,
					"timeout", m.timeout,
				)
				close(m.shutdownChan)
				return
			}
		}
	}
}
